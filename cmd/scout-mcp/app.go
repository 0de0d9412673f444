package main

import (
	"context"
	"fmt"

	"github.com/josepht96/scout-mcp/internal/config"
	"github.com/josepht96/scout-mcp/internal/executor"
	"github.com/josepht96/scout-mcp/internal/metrics"
	"github.com/josepht96/scout-mcp/internal/postman"
	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/josepht96/scout-mcp/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// app holds the wired components shared by the commands
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	client   *postman.Client
	engine   *executor.NewmanExecutor
	registry *prometheus.Registry
	metrics  *metrics.PrometheusExporter
	store    *storage.Storage
	runner   *runner.Runner
}

// newApp wires the runner. History storage is only opened when a database is configured.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.client = postman.NewClient(postman.Config{
		BaseURL:   cfg.Postman.BaseURL,
		APIKey:    cfg.Postman.APIKey,
		UserAgent: "scout-mcp/" + version,
		Timeout:   cfg.Postman.Timeout,
		Logger:    logger,
	})

	logger.Debug().Str("script", cfg.Runner.NewmanScript).Msg("newman script path")
	a.engine = executor.NewNewmanExecutor(cfg.Runner.NewmanScript, logger)
	a.engine.SetNodeExecutable(cfg.Runner.NodeExecutable)
	if !a.engine.IsAvailable() {
		return nil, fmt.Errorf("node.js is not available (%s); install Node.js to run collections", cfg.Runner.NodeExecutable)
	}
	if v, err := a.engine.Version(); err == nil {
		logger.Debug().Str("version", v).Msg("node.js detected")
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.NewPrometheusExporter(a.registry)

	observers := []runner.RunObserver{a.metrics}
	if cfg.Database.URL != "" {
		logger.Info().Str("database", config.MaskConnectionString(cfg.Database.URL)).Msg("connecting to database")
		store, err := storage.NewStorage(cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(ctx); err != nil {
			store.Close()
			return nil, err
		}
		a.store = store
		observers = append(observers, store)
	}

	a.runner = runner.New(runner.Config{
		Client:           a.client,
		Engine:           a.engine,
		Branch:           cfg.Runner.Branch,
		DisableTelemetry: !cfg.Runner.Telemetry,
		OnTelemetry:      a.metrics.TelemetryReported,
		Observers:        observers,
		Logger:           logger,
	})

	return a, nil
}

// Close waits for pending telemetry and releases the database
func (a *app) Close() {
	a.runner.Wait()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close database")
		}
	}
}
