package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansearch/internal/logging"
	"github.com/Aman-CERP/amansearch/internal/mcp"
	"github.com/Aman-CERP/amansearch/pkg/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the search tool over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools: search, collections. Resource: amansearch://query_metrics when
telemetry is enabled. stdout carries JSON-RPC only; logs go to the log file
(see 'amansearch logs'). The alias file is reloaded when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if isDebug(cmd.Root()) {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.SetupServeMode(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	logger.Info("serve_starting",
		slog.String("version", version.Version),
		slog.String("data_dir", cfg.DataDir))

	a, err := openApp(cfg, logger)
	if err != nil {
		logger.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(a.engine, cfg,
		mcp.WithServerLogger(logger),
		mcp.WithHandleLister(a.resolver))
	if err != nil {
		return err
	}
	if a.metrics != nil {
		srv.SetMetrics(a.metrics)
	}

	go func() {
		if err := a.resolver.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("alias_watch_stopped", slog.String("error", err.Error()))
		}
	}()

	return srv.Serve(ctx)
}
