// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/arcade/internal/api"
	"github.com/holomush/arcade/internal/config"
)

// Global flags available to all subcommands.
var (
	configFile string
	serverAddr string
)

// NewRootCmd creates the root command for the arcade CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arcade",
		Short: "Arcade - a hot-reloading host for game units",
		Long: `Arcade loads game units from a directory, serves them over HTTP and
reloads a unit in place whenever its file changes on disk.

Units are Lua scripts (.lua) or go-plugin executables (.plugin) that
provide start() and message(input).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/arcade/config.yaml)")
	cmd.PersistentFlags().StringVar(&serverAddr, "server", "", "address of a running arcade API (default: server.addr from config)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewUnitsCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewPlayCmd())
	cmd.AddCommand(NewSendCmd())
	cmd.AddCommand(NewReloadCmd())
	cmd.AddCommand(NewResetCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// newClient returns an API client for --server, falling back to the
// configured listen address.
func newClient() *api.Client {
	return api.NewClient(resolveServerAddr())
}

func resolveServerAddr() string {
	if serverAddr != "" {
		return serverAddr
	}
	if cfg, err := config.Load(configFile, nil); err == nil {
		return cfg.Server.Addr
	}
	return config.DefaultAddr
}
