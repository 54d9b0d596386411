package commands

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/config"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

func newApplyCommand(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply <runbook>",
		Short: "Apply a runbook",
		Long: `Plan the runbook and execute each action in order.

This command:
  - Plans every action first and aborts on any describe failure
  - Skips actions whose dependencies failed or were skipped
  - Records the applied spec hash for every successful ensure
  - Forgets the stored state of delete actions
  - Exits non-zero when any action failed`,
		Example: `  # Apply a runbook
  runbookctl apply identity.yaml

  # Report what would run without changing anything
  runbookctl apply identity.yaml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := config.LoadRunbook(args[0])
			if err != nil {
				return err
			}

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

			log.Info().
				Str("runbook", rb.Name).
				Bool("dry_run", dryRun).
				Msg("Applying runbook")

			result, err := runner.Apply(ctx, rb, engine.ApplyOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), opts.output, result); err != nil {
				return err
			}
			if result.Status == engine.RunStatusError {
				return ErrRunFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and report without making changes")
	return cmd
}
