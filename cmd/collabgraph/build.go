package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/collab-graph-service/internal/collab"
	"github.com/helixir/collab-graph-service/internal/config"
	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/events"
	"github.com/helixir/collab-graph-service/internal/graphstore"
	"github.com/helixir/collab-graph-service/internal/repository"
	"github.com/helixir/collab-graph-service/internal/roster"
	"github.com/helixir/collab-graph-service/internal/sink"
)

type buildOptions struct {
	roster        string
	output        string
	fromYear      int
	failurePolicy string
	countPolicy   string
}

func newBuildCmd(root *rootOptions) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch works and write the collaboration edge list",
		Long: `Build fetches the works of every resolved roster institution, extracts
co-affiliated institution pairs and writes the aggregated edges to every
configured sink.

The resolved roster (roster.resolved_csv_path) is used when it exists;
otherwise roster.input_path is read and must already carry OpenAlex ids.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root, "build")
			if err != nil {
				return err
			}
			if err := opts.apply(a.cfg); err != nil {
				return err
			}
			return runBuild(cmd.Context(), a, opts.roster)
		},
	}

	cmd.Flags().StringVarP(&opts.roster, "roster", "r", "", "Roster CSV with OpenAlex ids")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Collaborations output file (default: output.collaborations_path)")
	cmd.Flags().IntVar(&opts.fromYear, "from-year", 0, "Earliest publication year (default: fetch.from_year)")
	cmd.Flags().StringVar(&opts.failurePolicy, "failure-policy", "", "abort or isolate (default: pipeline.failure_policy)")
	cmd.Flags().StringVar(&opts.countPolicy, "count-policy", "", "per_pass or per_work (default: pipeline.count_policy)")

	return cmd
}

// apply overlays flags on the loaded config and revalidates it.
func (o *buildOptions) apply(cfg *config.Config) error {
	if o.output != "" {
		cfg.Output.CollaborationsPath = o.output
	}
	if o.fromYear != 0 {
		cfg.Fetch.FromYear = o.fromYear
	}
	if o.failurePolicy != "" {
		cfg.Pipeline.FailurePolicy = o.failurePolicy
	}
	if o.countPolicy != "" {
		cfg.Pipeline.CountPolicy = o.countPolicy
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runBuild(ctx context.Context, a *app, rosterPath string) error {
	if rosterPath == "" {
		rosterPath = buildRosterPath(a.cfg.Roster)
	}
	// An unresolved input roster has no id column; it needs resolve first.
	rows, err := roster.LoadFile(rosterPath, roster.ColumnOpenAlexID)
	if err != nil {
		return err
	}
	a.logger.Info().Str("roster", rosterPath).Int("rows", len(rows)).Msg("roster loaded")

	// Backends are opened before any catalog request so that a bad
	// connection setting fails the run early.
	sinks, closeSinks, err := a.openSinks(ctx)
	if err != nil {
		return err
	}
	defer closeSinks()

	fetcher := collab.NewFetcher(a.openAlex(), collab.FetcherConfig{
		PageSize:  a.cfg.Fetch.PageSize,
		MaxPages:  a.cfg.Fetch.MaxPages,
		PageDelay: a.cfg.Fetch.PageDelay,
	}, nil, a.logger, a.metrics)

	pipeline := collab.NewPipeline(fetcher, collab.PipelineConfig{
		FromYear:      a.cfg.Fetch.FromYear,
		FailurePolicy: domain.FailurePolicy(a.cfg.Pipeline.FailurePolicy),
		CountPolicy:   domain.CountPolicy(a.cfg.Pipeline.CountPolicy),
	}, a.logger, a.metrics)

	report, err := pipeline.Run(ctx, rows)
	if err != nil {
		a.flushMetrics()
		return fmt.Errorf("building graph: %w", err)
	}

	if err := sinks.Write(ctx, report); err != nil {
		a.flushMetrics()
		return err
	}

	if path := a.cfg.Output.ReportPath; path != "" {
		if err := writeReport(path, report); err != nil {
			return err
		}
	}
	a.flushMetrics()

	a.logger.Info().
		Str("run_id", report.RunID.String()).
		Int("edges", len(report.Edges)).
		Int("works", report.TotalWorks()).
		Int("failed", len(report.Failed())).
		Strs("sinks", sinks.Names()).
		Dur("duration", report.CompletedAt.Sub(report.StartedAt)).
		Msg("collaboration graph built")
	return nil
}

// buildRosterPath prefers the resolved roster when it exists.
func buildRosterPath(cfg config.RosterConfig) string {
	if cfg.ResolvedCSVPath != "" {
		if _, err := os.Stat(cfg.ResolvedCSVPath); err == nil {
			return cfg.ResolvedCSVPath
		}
	}
	return cfg.InputPath
}

// openSinks builds the file sink and every enabled backend sink. The
// returned func releases backend connections in reverse order.
func (a *app) openSinks(ctx context.Context) (*sink.Multi, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	fileSink, err := sink.NewFileSink(a.cfg.Output.CollaborationsPath, a.cfg.Output.Format)
	if err != nil {
		return nil, nil, err
	}
	sinks := []sink.EdgeSink{fileSink}

	if a.cfg.Database.Enabled {
		db, err := a.openDatabase(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		sinks = append(sinks, sink.NewPostgresSink(repository.NewPgCollaborationRepository(db)))
	}

	if a.cfg.Neo4j.Enabled {
		store, err := graphstore.NewStore(ctx, graphstore.Config{
			URI:      a.cfg.Neo4j.URI,
			Username: a.cfg.Neo4j.Username,
			Password: a.cfg.Neo4j.Password,
			Database: a.cfg.Neo4j.Database,
		}, a.logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect to neo4j: %w", err)
		}
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				a.logger.Warn().Err(err).Msg("failed to close neo4j driver")
			}
		})
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, sink.NewGraphSink(store))
	}

	if a.cfg.Kafka.Enabled {
		publisher, err := events.NewKafkaPublisher(events.Config{
			Brokers:      a.cfg.Kafka.Brokers,
			Topic:        a.cfg.Kafka.Topic,
			BatchSize:    a.cfg.Kafka.BatchSize,
			BatchTimeout: a.cfg.Kafka.BatchTimeout,
		}, a.logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("failed to close kafka writer")
			}
		})
		sinks = append(sinks, sink.NewEventSink(publisher))
	}

	return sink.NewMulti(a.logger, a.metrics, sinks...), closeAll, nil
}

// writeReport writes the full run report, including per-institution
// statuses, as indented JSON.
func writeReport(path string, report *domain.RunReport) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
