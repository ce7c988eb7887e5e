package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/helixir/collab-graph-service/internal/repository"
	httpserver "github.com/helixir/collab-graph-service/internal/server/http"
	"github.com/helixir/collab-graph-service/internal/sink"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the collaboration graph over HTTP",
		Long: `Serve exposes the last written edge list, stored runs when the database is
enabled, and Prometheus metrics. It stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root, "serve")
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	fileSink, err := sink.NewFileSink(a.cfg.Output.CollaborationsPath, a.cfg.Output.Format)
	if err != nil {
		return err
	}

	var opts []httpserver.Option
	if a.cfg.Metrics.Enabled {
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, httpserver.WithGatherer(a.registry))
	}

	if a.cfg.Database.Enabled {
		db, err := a.openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts,
			httpserver.WithRuns(repository.NewPgCollaborationRepository(db)),
			httpserver.WithHealthChecker(db),
		)
	}

	srv := httpserver.NewServer(httpserver.Config{
		Address:            a.cfg.Server.HTTPAddress(),
		ReadTimeout:        a.cfg.Server.ReadTimeout,
		WriteTimeout:       a.cfg.Server.WriteTimeout,
		ShutdownTimeout:    a.cfg.Server.ShutdownTimeout,
		CORSAllowedOrigins: a.cfg.Server.CORSAllowedOrigins,
		MetricsPath:        a.cfg.Metrics.Path,
	}, fileSink, a.logger, opts...)

	return srv.Run(ctx)
}
