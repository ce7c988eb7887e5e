// Command collabgraph builds the institution co-authorship graph.
//
// Usage:
//
//	collabgraph resolve            # attach OpenAlex ids to the roster
//	collabgraph build              # fetch works and write the edge list
//	collabgraph serve              # serve the edge list over HTTP
//
// Configuration is read from config.yaml and COLLABGRAPH_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
