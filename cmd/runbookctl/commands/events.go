package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
	"github.com/ccollier86/catalyst-auth-sub001/pkg/stores"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the persisted event log",
	}
	cmd.AddCommand(newEventsListCommand(opts))
	return cmd
}

func newEventsListCommand(opts *rootOptions) *cobra.Command {
	var (
		runID     string
		runbook   string
		eventType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded events in order",
		Example: `  # Events of one run
  runbookctl events list --run-id 0b6f...

  # Apply results of a runbook
  runbookctl events list --runbook identity --type action_applied`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if a.events == nil {
				return fmt.Errorf("event log is disabled in settings")
			}

			filter := stores.EventFilter{Limit: limit}
			if runID != "" {
				filter.RunID = &runID
			}
			if runbook != "" {
				filter.Runbook = &runbook
			}
			if eventType != "" {
				t := engine.EventType(eventType)
				filter.Type = &t
			}

			events, err := a.events.List(ctx, filter)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, events)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "only events of this run")
	cmd.Flags().StringVar(&runbook, "runbook", "", "only events of this runbook")
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events (0 for all)")
	return cmd
}
