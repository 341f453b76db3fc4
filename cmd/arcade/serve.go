// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/holomush/arcade/internal/api"
	"github.com/holomush/arcade/internal/config"
	"github.com/holomush/arcade/internal/logging"
	"github.com/holomush/arcade/internal/observability"
	"github.com/holomush/arcade/internal/plugin"
	"github.com/holomush/arcade/internal/plugin/goplugin"
	"github.com/holomush/arcade/internal/plugin/hostfunc"
	pluginlua "github.com/holomush/arcade/internal/plugin/lua"
	"github.com/holomush/arcade/internal/plugin/watch"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load units and serve the HTTP API",
		Long: `Load every unit in the units directory, serve the HTTP API and
reload units in place when their files change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cmd.Context(), cmd, cfg, nil)
		},
	}

	config.BindServeFlags(cmd.Flags())
	return cmd
}

// newRegistry builds a registry with every unit runtime.
func newRegistry(cfg *config.Config, logger *slog.Logger) (*plugin.Registry, error) {
	callTimeout, err := cfg.CallTimeoutDuration()
	if err != nil {
		return nil, err
	}

	luaLoader := pluginlua.NewLoader(
		pluginlua.WithHostFunctions(hostfunc.New(hostfunc.WithLogger(logger))),
	)
	binLoader := goplugin.NewLoader(
		goplugin.WithClientFactory(&goplugin.DefaultClientFactory{
			Logger: hclog.New(&hclog.LoggerOptions{
				Name:   "unit",
				Level:  hclog.LevelFromString(cfg.Log.Level),
				Output: os.Stderr,
			}),
		}),
	)

	return plugin.NewRegistry(cfg.Units.Dir,
		plugin.WithLoader(luaLoader),
		plugin.WithLoader(binLoader),
		plugin.WithIgnore(cfg.Units.Ignore),
		plugin.WithLogger(logger),
		plugin.WithValidator(plugin.NewValidator(
			plugin.WithTracer(otel.Tracer("github.com/holomush/arcade/internal/plugin")),
			plugin.WithCallTimeout(callTimeout),
		)),
	)
}

// runServe runs the host until ctx is canceled or a signal arrives. ready,
// if set, receives the API address once the host accepts requests.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, ready func(apiAddr string)) error {
	logger := logging.SetDefault("arcade", version, cfg.Log.Format, cfg.Log.Level)
	defer hashiplug.CleanupClients()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := newRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	defer func() {
		if closeErr := reg.Close(context.Background()); closeErr != nil {
			logger.Warn("error closing units", "error", closeErr)
		}
	}()

	var discovered atomic.Bool
	var obsServer *observability.Server
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr,
			observability.WithLogger(logger),
			observability.WithCollectors(plugin.RegisterMetrics),
			observability.WithReadinessCheck("discovery", func() error {
				if !discovered.Load() {
					return errors.New("initial unit discovery has not finished")
				}
				return nil
			}),
			observability.WithReadinessCheck("units_dir", func() error {
				_, err := os.Stat(reg.Directory().Path())
				return err
			}),
		)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer stopServer(logger, "observability", obsServer.Stop)
		go monitorServerErrors(ctx, stop, obsErrCh, "observability")
	}

	if err := reg.DiscoverAndLoadAll(ctx); err != nil {
		return fmt.Errorf("failed to load units: %w", err)
	}
	discovered.Store(true)

	if cfg.Units.Watch {
		debounce, err := cfg.DebounceDuration()
		if err != nil {
			return err
		}
		w := watch.New(reg, reg.Directory(),
			watch.WithDebounce(debounce),
			watch.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch units directory: %w", err)
		}
		defer func() {
			if closeErr := w.Close(); closeErr != nil {
				logger.Warn("error closing watcher", "error", closeErr)
			}
		}()
	}

	var apiOpts []api.Option
	apiOpts = append(apiOpts, api.WithLogger(logger))
	if obsServer != nil {
		apiOpts = append(apiOpts, api.WithObserver(obsServer.Metrics()))
	}
	apiServer := api.NewServer(cfg.Server.Addr, reg, apiOpts...)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	defer stopServer(logger, "api", apiServer.Stop)

	cmd.Printf("Serving %d units from %s on http://%s\n",
		len(reg.ListNames()), reg.Directory().Path(), apiServer.Addr())
	logger.Info("arcade ready",
		"addr", apiServer.Addr(),
		"units_dir", reg.Directory().Path(),
		"watch", cfg.Units.Watch)
	if ready != nil {
		ready(apiServer.Addr())
	}

	select {
	case err, ok := <-apiErrCh:
		if ok && err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	return nil
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels the host when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
