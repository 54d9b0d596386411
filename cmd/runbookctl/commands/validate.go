package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/config"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <runbook>",
		Short: "Validate a runbook file",
		Long: `Validate a runbook without contacting any resource.

This command checks:
  - JSON or YAML syntax and action kinds
  - Required fields of the runbook and every action
  - Unique action ids and resolvable dependsOn references
  - Dependency cycles when --topological is set`,
		Example: `  # Validate a YAML runbook
  runbookctl validate identity.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := config.LoadRunbook(args[0])
			if err != nil {
				return err
			}
			if err := engine.ValidateRunbook(rb); err != nil {
				return err
			}
			if opts.topological {
				graph, err := engine.NewActionGraph(rb.Actions)
				if err != nil {
					return err
				}
				if _, err := graph.Sorted(); err != nil {
					return err
				}
			}

			log.Debug().
				Str("runbook", rb.Name).
				Int("actions", len(rb.Actions)).
				Msg("Runbook is valid")
			fmt.Fprintf(cmd.OutOrStdout(), "runbook %s %s is valid (%d actions)\n", rb.Name, rb.Version, len(rb.Actions))
			return nil
		},
	}
	return cmd
}
