package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/collab-graph-service/internal/cache"
	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/roster"
)

type resolveOptions struct {
	input   string
	jsonOut string
	csvOut  string
}

func newResolveCmd(root *rootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Look up OpenAlex ids for roster institutions",
		Long: `Resolve searches OpenAlex by name for every roster row and keeps the first result.

Rows with no result keep an empty id and are skipped by build. The resolved
roster is written as JSON and CSV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(root, "resolve")
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Roster CSV (default: roster.input_path)")
	cmd.Flags().StringVar(&opts.jsonOut, "json-out", "", "Resolved JSON output (default: roster.resolved_json_path)")
	cmd.Flags().StringVar(&opts.csvOut, "csv-out", "", "Resolved CSV output (default: roster.resolved_csv_path)")

	return cmd
}

func runResolve(ctx context.Context, a *app, opts *resolveOptions) error {
	input := firstNonEmpty(opts.input, a.cfg.Roster.InputPath)
	jsonOut := firstNonEmpty(opts.jsonOut, a.cfg.Roster.ResolvedJSONPath)
	csvOut := firstNonEmpty(opts.csvOut, a.cfg.Roster.ResolvedCSVPath)

	rows, err := roster.LoadFile(input)
	if err != nil {
		return err
	}
	a.logger.Info().Str("input", input).Int("rows", len(rows)).Msg("roster loaded")

	resolver := roster.NewResolver(a.openAlex(), roster.ResolverConfig{
		ResultLimit: a.cfg.Resolver.ResultLimit,
		Delay:       a.cfg.Resolver.Delay,
	}, nil, a.logger, a.metrics)

	if a.cfg.Redis.Enabled {
		matchCache, err := cache.NewRedisMatchCache(ctx, cache.RedisConfig{
			Addr:      a.cfg.Redis.Addr,
			Password:  a.cfg.Redis.Password,
			DB:        a.cfg.Redis.DB,
			KeyPrefix: a.cfg.Redis.KeyPrefix,
			TTL:       a.cfg.Redis.TTL,
		})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer matchCache.Close()
		resolver.WithCache(matchCache)
	}

	resolved := resolver.Resolve(ctx, rows)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	if err := roster.WriteFiles(resolved, jsonOut, csvOut); err != nil {
		return err
	}
	a.flushMetrics()

	matched := 0
	for _, r := range resolved {
		if r.ID != "" {
			matched++
		}
	}
	a.logger.Info().
		Int("rows", len(resolved)).
		Int("matched", matched).
		Str("json", jsonOut).
		Str("csv", csvOut).
		Msg("roster resolved")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
