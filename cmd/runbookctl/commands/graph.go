package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/config"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

func newGraphCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <runbook>",
		Short: "Print the action dependency graph in DOT format",
		Example: `  # Render the graph with graphviz
  runbookctl graph identity.yaml | dot -Tpng -o identity.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := config.LoadRunbook(args[0])
			if err != nil {
				return err
			}
			if err := engine.ValidateRunbook(rb); err != nil {
				return err
			}
			graph, err := engine.NewActionGraph(rb.Actions)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), graph.ToDOT(rb.Name))
			return err
		},
	}
	return cmd
}
