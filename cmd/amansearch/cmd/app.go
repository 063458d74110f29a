package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/amansearch/internal/config"
	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/search"
	"github.com/Aman-CERP/amansearch/internal/store"
	"github.com/Aman-CERP/amansearch/internal/telemetry"
)

// app wires the search engine over the on-disk catalog.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *store.Catalog
	resolver *store.AliasResolver
	engine   *search.Engine

	metricsStore *telemetry.SQLiteMetricsStore
	metrics      *telemetry.QueryMetrics
}

// openApp opens the catalog and builds the engine. Telemetry failures are
// logged and disable telemetry; everything else is fatal.
func openApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger}

	catalog, err := store.NewCatalog(cfg.DataDir, store.WithCatalogLogger(logger))
	if err != nil {
		return nil, err
	}
	a.catalog = catalog

	resolverOpts := []store.ResolverOption{
		store.WithDirectIndexes(catalog.Exists),
		store.WithResolverLogger(logger),
	}
	if cfg.AliasFile != "" {
		resolverOpts = append(resolverOpts, store.WithAliasFile(cfg.AliasFile))
	}
	a.resolver, err = store.NewAliasResolver(cfg.Collections, resolverOpts...)
	if err != nil {
		_ = a.Close()
		return nil, amerrors.ConfigError(fmt.Sprintf("failed to load alias file %s", cfg.AliasFile), err)
	}

	analyzer, err := catalog.Analyzer()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	engineOpts := []search.EngineOption{
		search.WithLogger(logger),
		search.WithReporter(amerrors.NewLogReporter(logger)),
		search.WithExecutorOptions(
			search.WithCircuitBreaker(cfg.CircuitBreaker()),
			search.WithRetry(cfg.RetryConfig()),
		),
	}
	if cfg.Telemetry.Enabled {
		if err := a.openTelemetry(); err != nil {
			logger.Warn("telemetry_disabled", slog.String("error", err.Error()))
		} else {
			engineOpts = append(engineOpts, search.WithMetrics(a.metrics))
		}
	}

	a.engine, err = search.NewEngine(a.resolver, catalog, analyzer, cfg.SearchEngineConfig(), engineOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Debug("app_opened",
		slog.String("data_dir", cfg.DataDir),
		slog.Any("handles", a.resolver.Handles()),
		slog.Bool("telemetry", a.metrics != nil))
	return a, nil
}

func (a *app) openTelemetry() error {
	ms, err := telemetry.OpenSQLiteMetricsStore(a.cfg.TelemetryDBPath())
	if err != nil {
		return err
	}
	a.metricsStore = ms
	a.metrics = telemetry.NewQueryMetrics(ms)
	return nil
}

// Close flushes telemetry and closes every index.
func (a *app) Close() error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.metricsStore != nil {
		errs = append(errs, a.metricsStore.Close())
	}
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	return errors.Join(errs...)
}
