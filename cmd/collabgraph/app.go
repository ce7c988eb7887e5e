package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/helixir/collab-graph-service/internal/catalog/openalex"
	"github.com/helixir/collab-graph-service/internal/config"
	"github.com/helixir/collab-graph-service/internal/database"
	"github.com/helixir/collab-graph-service/internal/observability"
)

// app carries what every subcommand needs.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
}

func newApp(opts *rootOptions, command string) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	}).With().Str("command", command).Logger()

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	if cfg.Metrics.Enabled {
		a.metrics = observability.NewMetrics(a.registry, cfg.Metrics.Namespace)
	}
	return a, nil
}

func (a *app) openAlex() *openalex.Client {
	return openalex.New(openalex.Config{
		BaseURL:   a.cfg.OpenAlex.BaseURL,
		Email:     a.cfg.OpenAlex.Email,
		Timeout:   a.cfg.OpenAlex.Timeout,
		RateLimit: a.cfg.OpenAlex.RateLimit,
		BurstSize: a.cfg.OpenAlex.BurstSize,
	}).WithMetrics(a.metrics)
}

// openDatabase connects to Postgres and applies pending migrations when
// database.migration_auto_run is set.
func (a *app) openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.New(ctx, &a.cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if !a.cfg.Database.MigrationAutoRun {
		return db, nil
	}

	migrator, err := database.NewMigrator(db, a.cfg.Database.MigrationPath, a.logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			a.logger.Warn().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	return db, nil
}

// flushMetrics writes the registry to metrics.textfile_path when configured.
func (a *app) flushMetrics() {
	path := a.cfg.Metrics.TextfilePath
	if !a.cfg.Metrics.Enabled || path == "" {
		return
	}
	if err := observability.WriteTextfile(a.registry, path); err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("failed to write metrics textfile")
	}
}
