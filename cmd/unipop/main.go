// Package main provides the unipop CLI.
//
// Usage:
//
//	unipop [--config FILE] [--output json|yaml] <command> [args]
//
// Commands:
//
//	get        - fetch edges by id
//	scan       - filtered scan over every edge
//	adjacent   - edges touching a set of vertices
//	aggregate  - group and reduce edge fields on the backend
//	create     - store a new edge
//	serve      - run the HTTP API
//
// Configuration comes from the YAML file given with --config, overlaid by
// UNIPOP_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
