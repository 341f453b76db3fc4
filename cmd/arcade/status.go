// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/holomush/arcade/internal/api"
)

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	wait       time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running arcade host",
		Long: `Show the health of a running arcade host: whether it is running,
how many units are loaded and which one is active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.wait, "wait", 0, "keep retrying until the host answers or this much time has passed")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	health, err := fetchHealth(cmd.Context(), newClient(), cfg.wait)
	if err != nil {
		return err
	}

	if cfg.jsonOutput {
		return printJSON(cmd, health)
	}

	active := dimStyle.Render("none")
	if health.Active != nil {
		active = unitStyle.Render(*health.Active)
	}
	cmd.Printf("%s  %s\n", titleStyle.Render("arcade"), okStyle.Render(health.Status))
	cmd.Printf("units loaded: %d\n", health.LoadedCount)
	cmd.Printf("active unit:  %s\n", active)
	return nil
}

// fetchHealth queries the host, retrying with backoff for up to wait.
func fetchHealth(ctx context.Context, client *api.Client, wait time.Duration) (*api.HealthResponse, error) {
	if wait <= 0 {
		return client.Health(ctx)
	}

	backoff := retry.WithMaxDuration(wait,
		retry.WithCappedDuration(time.Second, retry.NewExponential(100*time.Millisecond)))

	var health *api.HealthResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		h, err := client.Health(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		health = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("host did not become healthy within %s: %w", wait, err)
	}
	return health, nil
}
