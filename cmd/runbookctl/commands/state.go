package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and edit stored action state",
	}
	cmd.AddCommand(newStateListCommand(opts))
	cmd.AddCommand(newStateForgetCommand(opts))
	return cmd
}

func newStateListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <runbook-name>",
		Short: "List the stored spec hashes of a runbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			rows, err := a.state.List(ctx, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, rows)
		},
	}
}

func newStateForgetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <runbook-name> <action-id>",
		Short: "Remove the stored state of one action",
		Long: `Remove the stored state of one action. The next plan reports no
previous hash for it; the resource itself is not touched.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if err := a.state.Remove(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s/%s\n", args[0], args[1])
			return nil
		},
	}
}
