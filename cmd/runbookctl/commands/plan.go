package commands

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/config"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

func newPlanCommand(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "plan <runbook>",
		Short: "Show the changes an apply would make",
		Long: `Plan a runbook by describing every addressed resource and comparing it
with the desired spec. Nothing is changed.

Each action is reported as create, update, delete or noop together with a
before/after diff and the last applied spec hash.`,
		Example: `  # Plan and print JSON
  runbookctl plan identity.yaml

  # Re-plan on every save
  runbookctl plan identity.yaml --watch --output yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			runner, err := a.runner()
			if err != nil {
				return err
			}

			plan := func(ctx context.Context, rb *engine.Runbook) error {
				result, err := runner.Plan(ctx, rb)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.output, result)
			}

			rb, err := config.LoadRunbook(args[0])
			if err != nil {
				return err
			}
			if err := plan(ctx, rb); err != nil {
				if !watch {
					return err
				}
				log.Error().Err(err).Str("runbook", rb.Name).Msg("Plan failed")
			}
			if !watch {
				return nil
			}

			logger := a.tel.Logger.NewComponentLogger("watch").WithField("path", args[0])
			w := config.NewWatcher(logger.Zerolog(), 0)
			return w.Watch(ctx, args[0], func(ctx context.Context, rb *engine.Runbook, err error) {
				if err != nil {
					return
				}
				if err := plan(ctx, rb); err != nil {
					log.Error().Err(err).Str("runbook", rb.Name).Msg("Plan failed")
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-plan whenever the runbook file changes")
	return cmd
}
