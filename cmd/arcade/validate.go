// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"strings"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/spf13/cobra"

	"github.com/holomush/arcade/internal/config"
	"github.com/holomush/arcade/internal/logging"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Load every unit in a directory and report problems",
		Long: `Load every unit in a directory (default: units.dir from config) the
way serve would and report load failures and missing capabilities.
No capability is called.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, nil)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if len(args) == 1 {
				cfg.Units.Dir = args[0]
			}
			return runValidate(cmd, cfg)
		},
	}
}

func runValidate(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer hashiplug.CleanupClients()

	logger := logging.Setup("arcade", version, "text", "error", cmd.ErrOrStderr())
	reg, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close(context.Background()) }()

	if err := reg.DiscoverAndLoadAll(ctx); err != nil {
		return err
	}
	names, err := reg.Directory().Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		cmd.Println(dimStyle.Render("no units found in " + reg.Directory().Path()))
		return nil
	}

	var problems int
	for _, name := range names {
		info, ok := reg.Inspect(name)
		if !ok {
			continue
		}
		if !info.Callable {
			problems++
			cmd.Println(errStyle.Render("✗ ") + unitStyle.Render(name))
			if info.LastFailure != nil {
				cmd.Println(renderDiagnostic(info.LastFailure))
			}
			continue
		}

		missing, err := reg.MissingCapabilities(name)
		if err != nil {
			return err
		}
		detail := info.Kind
		if info.Version != "" {
			detail += " " + info.Version
		}
		if len(missing) > 0 {
			problems++
			fns := make([]string, len(missing))
			for i, c := range missing {
				fns[i] = string(c) + "()"
			}
			cmd.Println(warnStyle.Render("! ") + unitStyle.Render(name) + dimStyle.Render(" ("+detail+")"))
			cmd.Println(warnStyle.Render("  missing " + strings.Join(fns, ", ")))
			continue
		}
		cmd.Println(okStyle.Render("✓ ") + unitStyle.Render(name) + dimStyle.Render(" ("+detail+")"))
	}

	if problems > 0 {
		return fmt.Errorf("%d of %d units have problems", problems, len(names))
	}
	return nil
}
