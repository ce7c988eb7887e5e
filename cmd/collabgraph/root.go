package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "collabgraph",
		Short: "Build an institution co-authorship graph from OpenAlex",
		Long: `collabgraph turns a roster of institutions into a weighted collaboration graph.

Two institutions are linked when a work published on or after the configured
year lists authors affiliated with both. Edge weights count those works.

Examples:
  collabgraph resolve --input data/institutions.csv
  collabgraph build --from-year 2021 --failure-policy isolate
  collabgraph serve --config /etc/collab-graph-service/config.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file (default: ./config.yaml)")

	cmd.AddCommand(newResolveCmd(opts))
	cmd.AddCommand(newBuildCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}
