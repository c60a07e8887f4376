package main

import (
	"github.com/spf13/cobra"

	"github.com/ozadari/unipop/internal/application/queries"
	"github.com/ozadari/unipop/internal/di"
	"github.com/ozadari/unipop/internal/domain/graph"
	"github.com/ozadari/unipop/internal/interfaces/http/rest"
	"github.com/ozadari/unipop/internal/query/aggregation"
)

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID...",
		Short: "Fetch edges by id",
		Long: `Fetch edges by id in a single batched lookup.

The call fails if any id is missing.`,
		Example: `  unipop get E1 E2
  unipop -o yaml get E1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				edges, err := c.Queries.LookupEdges(cmd.Context(), queries.LookupEdgesQuery{IDs: args, Step: "cli.get"})
				if err != nil {
					return err
				}
				return render(opts.out, opts.output, rest.NewEdgesResponse(edges))
			})
		},
	}
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		where []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan edges matching predicates",
		Example: `  unipop scan --where ~label:eq:knows --where weight:between:1,5
  unipop scan --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			preds, err := parseWhere(where)
			if err != nil {
				return err
			}
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				it, err := c.Queries.ScanEdges(cmd.Context(), queries.ScanEdgesQuery{
					Predicates: withLimit(graph.NewPredicates(preds...), limit),
					Step:       "cli.scan",
				})
				if err != nil {
					return err
				}
				resp, err := rest.CollectEdges(it, c.Logger)
				if err != nil {
					return err
				}
				return render(opts.out, opts.output, resp)
			})
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "Predicate key:op:value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of edges (0 = unbounded)")
	return cmd
}

func newAdjacentCmd(opts *rootOptions) *cobra.Command {
	var (
		vertices  []string
		direction string
		labels    []string
		where     []string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "adjacent",
		Short: "Edges touching a set of vertices",
		Example: `  unipop adjacent --vertex v1 --direction out
  unipop adjacent --vertex v1 --vertex v2 --direction both --label knows`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := graph.ParseDirection(direction)
			if err != nil {
				return err
			}
			preds, err := parseWhere(where)
			if err != nil {
				return err
			}
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				it, err := c.Queries.AdjacentEdges(cmd.Context(), queries.AdjacentEdgesQuery{
					VertexIDs:  vertices,
					Direction:  dir,
					Labels:     labels,
					Predicates: withLimit(graph.NewPredicates(preds...), limit),
					Step:       "cli.adjacent",
				})
				if err != nil {
					return err
				}
				resp, err := rest.CollectEdges(it, c.Logger)
				if err != nil {
					return err
				}
				return render(opts.out, opts.output, resp)
			})
		},
	}
	cmd.Flags().StringArrayVar(&vertices, "vertex", nil, "Vertex id (repeatable)")
	cmd.Flags().StringVar(&direction, "direction", "both", "Direction: in, out or both")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "Edge label (repeatable)")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Predicate key:op:value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of edges (0 = unbounded)")
	return cmd
}

func newAggregateCmd(opts *rootOptions) *cobra.Command {
	var (
		where   []string
		key     string
		values  string
		reducer string
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Group and reduce edges on the backend",
		Long: `Group matching edges by --key and reduce --values with --reducer.

Reducers: count, sum, min, max, mean, collect.`,
		Example: `  unipop aggregate --key ~label --reducer count
  unipop aggregate --where ~label:eq:knows --key outId --values weight --reducer sum`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			preds, err := parseWhere(where)
			if err != nil {
				return err
			}
			red, err := aggregation.ParseReducer(reducer)
			if err != nil {
				return err
			}
			var vf aggregation.Fragment
			if values != "" {
				vf = aggregation.ValuesOf{Field: values}
			}
			desc := aggregation.NewDescriptor(preds, aggregation.GroupBy{Field: key}, vf, aggregation.ReduceWith{Reducer: red}).
				WithStep("cli.aggregate")

			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				result, err := c.Queries.Aggregate(cmd.Context(), queries.AggregateEdgesQuery{Descriptor: desc})
				if err != nil {
					return err
				}
				return render(opts.out, opts.output, rest.NewAggregateResponse(result))
			})
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "Predicate key:op:value (repeatable)")
	cmd.Flags().StringVar(&key, "key", "", "Field to group by")
	cmd.Flags().StringVar(&values, "values", "", "Field to reduce")
	cmd.Flags().StringVar(&reducer, "reducer", "count", "Reducer")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func withLimit(p graph.Predicates, limit int) graph.Predicates {
	if limit > 0 {
		return p.WithRange(0, limit)
	}
	return p
}
