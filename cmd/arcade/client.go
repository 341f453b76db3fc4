// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewUnitsCmd creates the units subcommand.
func NewUnitsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "units",
		Short: "List the units a running host can start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClient().Units(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, resp)
			}

			if len(resp.Units) == 0 {
				cmd.Println(dimStyle.Render("no units loaded"))
				return nil
			}
			cmd.Println(titleStyle.Render("Units"))
			for _, name := range resp.Units {
				marker := "  "
				if resp.Active != nil && *resp.Active == name {
					marker = okStyle.Render("▶ ")
				}
				cmd.Println(marker + unitStyle.Render(name))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// NewInspectCmd creates the inspect subcommand.
func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <unit>",
		Short: "Show the registry entry of a unit, including its last load failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := newClient().Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
}

// NewSendCmd creates the send subcommand.
func NewSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <unit> <input...>",
		Short: "Send one message to a unit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := newClient().Send(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			cmd.Println(reply.Message)
			return nil
		},
	}
}

// NewReloadCmd creates the reload subcommand.
func NewReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload <unit>",
		Short: "Reload a unit from its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := newClient().Reload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(okStyle.Render(fmt.Sprintf("reloaded %s (%d reloads)", info.Name, info.Reloads)))
			return nil
		},
	}
}

// NewResetCmd creates the reset subcommand.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the active unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClient().Reset(cmd.Context())
			if err != nil {
				return err
			}
			if resp.PreviousActive == nil {
				cmd.Println("no unit was active")
				return nil
			}
			cmd.Printf("reset (was playing %s)\n", *resp.PreviousActive)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
