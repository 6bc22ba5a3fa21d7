package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes of the process: no changes, changes detected, unrecoverable
// error. Automation keys off these, so they are part of the CLI contract.
const (
	ExitNoChanges = 0
	ExitChanges   = 1
	ExitError     = 2
)

// errChangesDetected signals a successful run that found changes; Execute
// translates it into ExitChanges instead of treating it as a failure.
var errChangesDetected = errors.New("changes detected")

var (
	// Global flags
	configPath string
)

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, version, commit, buildDate string) int {
	rootCmd := newRootCommand(version, commit, buildDate)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errChangesDetected) {
			return ExitChanges
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitNoChanges
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "regionwatch",
		Short: "Monitor AWS service and feature availability in regions",
		Long: `regionwatch polls the AWS Knowledge service for the current availability
of regions, products and APIs, keeps a snapshot of the last observed state
per region, and reports what changed since the previous run.

The report is written to stdout; all progress and diagnostics go to stderr.
The exit code signals the outcome: 0 = no changes, 1 = changes detected,
2 = unrecoverable error.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
