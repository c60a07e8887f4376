package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ozadari/unipop/internal/application/commands"
	"github.com/ozadari/unipop/internal/di"
	"github.com/ozadari/unipop/internal/interfaces/http/rest"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		id    string
		label string
		out   string
		in    string
		props []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new edge",
		Long: `Store a new edge. The create fails if the id already exists; a missing
--id is generated.`,
		Example: `  unipop create --label knows --out v1:person --in v2:person --prop since=2019`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outEP, err := parseEndpoint("out", out)
			if err != nil {
				return err
			}
			inEP, err := parseEndpoint("in", in)
			if err != nil {
				return err
			}
			properties, err := parseProps(props)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.New().String()
			}

			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				edge, err := c.Commands.Handle(cmd.Context(), commands.CreateEdgeCommand{
					ID:         id,
					Label:      label,
					Out:        outEP,
					In:         inEP,
					Properties: properties,
				})
				if err != nil {
					return err
				}
				return render(opts.out, opts.output, rest.ToEdgeDTO(edge))
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Edge id (generated when empty)")
	cmd.Flags().StringVar(&label, "label", "", "Edge label")
	cmd.Flags().StringVar(&out, "out", "", "Outgoing vertex as ID:LABEL")
	cmd.Flags().StringVar(&in, "in", "", "Incoming vertex as ID:LABEL")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "Property key=value (repeatable)")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
