// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/logging"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/plugin"
	pluginlua "github.com/quillcms/quill/internal/plugin/lua"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the plugin host",
		Long: `Start the plugin host: load and activate the plugins from the
plugins directory, publish the hook namespace, and serve metrics and
health probes until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	// Flag names mirror the config tree; set flags override the file.
	cmd.Flags().String("plugins.dir", "", "plugins directory (default: XDG data dir)")
	cmd.Flags().StringSlice("plugins.disabled", nil, "plugin names to skip")
	cmd.Flags().Duration("plugins.handler_timeout", 0, "per-handler dispatch timeout (0 = none)")
	cmd.Flags().String("server.metrics_addr", "", "metrics/health HTTP address")
	cmd.Flags().String("logging.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("logging.format", "", "log format (json or text)")

	return cmd
}

// runServeWithDeps starts the host with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.LuaHostFactory == nil {
		deps.LuaHostFactory = func() plugin.UnitBuilder {
			return pluginlua.NewHost(pluginlua.WithLogger(slog.Default()))
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging format must be %q or %q, got %q", "json", "text", cfg.Logging.Format)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logging.SetDefault("quill", version, cfg.Logging.Format, level)

	slog.Info("starting quill host",
		"plugins_dir", cfg.Plugins.Dir,
		"metrics_addr", cfg.Server.MetricsAddr,
	)

	regOpts := []hook.Option{hook.WithLogger(slog.Default())}
	if cfg.Plugins.HandlerTimeout > 0 {
		regOpts = append(regOpts, hook.WithHandlerTimeout(cfg.Plugins.HandlerTimeout))
	}
	registry, err := hook.NewRegistry(quill.DefaultNamespace(), regOpts...)
	if err != nil {
		return err
	}

	manager := plugin.NewManager(cfg.Plugins.Dir, registry,
		plugin.WithLuaHost(deps.LuaHostFactory()),
		plugin.WithLogger(slog.Default()),
		plugin.WithDisabled(cfg.Plugins.Disabled),
		plugin.WithSettings(func(name string, defaults map[string]any) quill.Settings {
			return cfg.PluginSettings(name, defaults)
		}),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := manager.LoadAll(ctx); err != nil {
		return err
	}

	for _, d := range manager.List() {
		if err := manager.Activate(ctx, d.Name); err != nil {
			slog.Error("activate plugin failed", "plugin", d.Name, "error", err)
			observability.RecordLifecycle("activate", "error")
			continue
		}
		observability.RecordLifecycle("activate", "success")
	}

	// Readiness flips once startup dispatch has run.
	var ready atomic.Bool
	obsServer := deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, ready.Load)
	obsErrCh, err := obsServer.Start()
	if err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if closeErr := manager.Close(closeCtx); closeErr != nil {
			slog.Warn("failed to close plugin manager during cleanup", "error", closeErr)
		}
		return fmt.Errorf("failed to start observability server: %w", err)
	}
	// Monitor observability server errors - cancel context on error
	go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	obsServer.Metrics().SetPluginStates(stateCounts(manager.List()))

	if res, derr := registry.Dispatch(ctx, quill.HookStartup, nil); derr != nil {
		slog.Error("startup dispatch failed", "error", derr)
	} else if !res.OK() {
		slog.Warn("startup handlers reported failures", "failures", len(res.Failures()))
	}
	ready.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Quill host started")
	slog.Info("quill host ready",
		"plugins", len(manager.List()),
		"metrics_addr", obsServer.Addr(),
	)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if res, derr := registry.Dispatch(shutdownCtx, quill.HookShutdown, nil); derr != nil {
		slog.Warn("shutdown dispatch failed", "error", derr)
	} else if !res.OK() {
		slog.Warn("shutdown handlers reported failures", "failures", len(res.Failures()))
	}

	for _, d := range manager.List() {
		if d.State != plugin.StateActive {
			continue
		}
		if err := manager.Deactivate(shutdownCtx, d.Name); err != nil {
			slog.Warn("deactivate plugin failed", "plugin", d.Name, "error", err)
			observability.RecordLifecycle("deactivate", "error")
			continue
		}
		observability.RecordLifecycle("deactivate", "success")
	}

	if err := manager.Close(shutdownCtx); err != nil {
		slog.Warn("error closing plugin manager", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// stateCounts folds plugin descriptors into per-state totals for the
// state gauge.
func stateCounts(list []plugin.Descriptor) map[string]int {
	counts := make(map[string]int)
	for _, d := range list {
		counts[d.State.String()]++
	}
	return counts
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
