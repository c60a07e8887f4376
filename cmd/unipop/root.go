package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ozadari/unipop/internal/config"
	"github.com/ozadari/unipop/internal/di"
)

type rootOptions struct {
	configPath string
	output     string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	root := &cobra.Command{
		Use:   "unipop",
		Short: "Graph queries over a document backend",
		Long: `unipop answers graph traversal queries over edges stored as documents.

Edges are stored with reserved endpoint fields (outId, outLabel, inId,
inLabel) so that adjacency scans compile to plain document filters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want json or yaml)", opts.output)
			}
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML configuration file")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "Output format: json or yaml")

	root.AddCommand(
		newGetCmd(opts),
		newScanCmd(opts),
		newAdjacentCmd(opts),
		newAggregateCmd(opts),
		newCreateCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// withContainer builds the application, runs fn and releases everything.
func (o *rootOptions) withContainer(ctx context.Context, fn func(*di.Container) error) error {
	c, cleanup, err := di.InitializeContainer(ctx, config.NewLoader(o.configPath))
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(c)
}
