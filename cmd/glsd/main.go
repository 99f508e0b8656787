package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gls/internal/core/app"
	"gls/internal/core/config"
	"gls/internal/shared/observability"
	"gls/internal/ui/status"
)

var (
	configPath = flag.String("config", "./gls.toml", "Path to config file")
	once       = flag.Bool("once", false, "Discover projects, run the initial compile passes, then exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("glsd v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config; a missing default config file falls back to defaults.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) && *configPath == "./gls.toml" {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 {
		cfg.WatchPaths = flag.Args()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := app.New(cfg, nil)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	if err := a.DiscoverProjects(ctx); err != nil {
		slog.Error("project discovery failed", "error", err)
		os.Exit(1)
	}

	if *once {
		snapshot := a.Status()
		slog.Info("initial passes complete", "scopes", snapshot.Active, "compiled", snapshot.Compiled)
		return
	}

	var statusServer *status.Server
	if cfg.Status.Enabled {
		statusServer = status.NewServer(cfg.Status.Address, a)
		if err := statusServer.Start(ctx); err != nil {
			slog.Error("failed to start status server", "error", err)
			os.Exit(1)
		}
	}

	if err := a.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	slog.Info("watching", "paths", cfg.WatchPaths, "debounce", cfg.Watch.Debounce)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx := context.Background()
	if statusServer != nil {
		if err := statusServer.Stop(shutdownCtx); err != nil {
			slog.Warn("status server shutdown failed", "error", err)
		}
	}
	if err := a.Close(shutdownCtx); err != nil {
		slog.Warn("app shutdown failed", "error", err)
	}
}
