// Package main applies the collaboration run schema in migrations/.
//
// Exactly one action flag is required:
//
//	migrate -up
//	migrate -down
//	migrate -steps -1
//	migrate -version
//	migrate -force 2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/collab-graph-service/internal/config"
	"github.com/helixir/collab-graph-service/internal/database"
	"github.com/helixir/collab-graph-service/internal/observability"
)

type actionKind int

const (
	actionUp actionKind = iota + 1
	actionDown
	actionSteps
	actionVersion
	actionForce
)

type options struct {
	action     actionKind
	steps      int
	force      int
	path       string
	configFile string
}

var errNoAction = errors.New("no action specified")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs reads flags and checks that exactly one action was requested.
func parseArgs(args []string, output io.Writer) (*options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(output)

	up := fs.Bool("up", false, "Run all pending migrations")
	down := fs.Bool("down", false, "Roll back all migrations")
	steps := fs.Int("steps", 0, "Run N migration steps (positive=up, negative=down)")
	version := fs.Bool("version", false, "Print the current migration version")
	force := fs.Int("force", -1, "Force set migration version (use to recover from failed migrations)")
	path := fs.String("path", "", "Override the migrations directory path")
	configFile := fs.String("config", "", "Config file (default: ./config.yaml)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{steps: *steps, force: *force, path: *path, configFile: *configFile}
	selected := 0
	pick := func(on bool, kind actionKind) {
		if on {
			selected++
			opts.action = kind
		}
	}
	pick(*up, actionUp)
	pick(*down, actionDown)
	pick(*steps != 0, actionSteps)
	pick(*version, actionVersion)
	pick(*force >= 0, actionForce)

	switch selected {
	case 0:
		fs.Usage()
		return nil, fmt.Errorf("%w: use one of -up, -down, -steps N, -version, -force V", errNoAction)
	case 1:
		return opts, nil
	default:
		return nil, fmt.Errorf("specify only one action at a time")
	}
}

func run(args []string) error {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if opts.path != "" {
		migrationDir = opts.path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := execute(migrator, opts, logger); err != nil {
		return err
	}
	printVersion(migrator, logger)
	return nil
}

func execute(m *database.Migrator, opts *options, logger zerolog.Logger) error {
	switch opts.action {
	case actionUp:
		if err := m.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case actionDown:
		if err := m.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case actionSteps:
		logger.Info().Int("steps", opts.steps).Msg("running migration steps")
		if err := m.Steps(opts.steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case actionForce:
		logger.Warn().Int("version", opts.force).Msg("forcing migration version")
		if err := m.Force(opts.force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	case actionVersion:
	default:
		return errNoAction
	}
	return nil
}

func printVersion(m *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := m.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}
