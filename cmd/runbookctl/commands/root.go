package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrRunFailed is returned when an apply finished with status error.
var ErrRunFailed = errors.New("runbook apply failed")

// rootOptions holds the persistent flags shared by all commands.
type rootOptions struct {
	configPath  string
	dbPath      string
	output      string
	topological bool
	metricsAddr string
	version     string
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &rootOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "runbookctl",
		Short: "Runbook reconciliation engine",
		Long: `runbookctl reconciles declarative runbooks against an identity system.

A runbook lists ensure and delete actions. Each run:
  - Describes every addressed resource
  - Compares the desired properties by canonical hash
  - Plans create, update, delete or noop per action
  - Applies the changes in order, skipping dependents of failed actions
  - Records the applied spec hash so unchanged actions stay noop`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "settings file path (TOML)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides settings)")
	flags.StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	flags.BoolVar(&opts.topological, "topological", false, "order actions by dependsOn before planning")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newPlanCommand(opts))
	rootCmd.AddCommand(newApplyCommand(opts))
	rootCmd.AddCommand(newGraphCommand(opts))
	rootCmd.AddCommand(newStateCommand(opts))
	rootCmd.AddCommand(newEventsCommand(opts))

	return rootCmd
}
