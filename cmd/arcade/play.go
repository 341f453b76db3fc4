// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"
)

// REPL commands.
const (
	playQuit    = "/quit"
	playRestart = "/restart"
)

// NewPlayCmd creates the play subcommand.
func NewPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <unit>",
		Short: "Start a unit and play it interactively",
		Long: `Start a unit, then send every input line to its message() function.

Type /restart to call start() again and /quit (or EOF) to leave.
Unit errors are shown and the session continues, so a fixed unit can be
saved and tried again without leaving.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args[0])
		},
	}
}

func runPlay(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()
	client := newClient()

	reply, err := client.Start(ctx, name)
	if err != nil {
		return err
	}
	cmd.Println(titleStyle.Render("Playing " + name))
	cmd.Println(reply.Message)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print(dimStyle.Render("> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case playQuit:
			return nil
		case playRestart:
			reply, err = client.Start(ctx, name)
		default:
			reply, err = client.Send(ctx, name, line)
		}
		if err != nil {
			cmd.PrintErrln(renderError(err))
			continue
		}
		cmd.Println(reply.Message)
	}
	cmd.Println()
	return scanner.Err()
}
