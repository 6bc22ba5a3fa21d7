package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rodos/aws-region-watch/pkg/config"
	"github.com/rodos/aws-region-watch/pkg/knowledge"
	"github.com/rodos/aws-region-watch/pkg/report"
	"github.com/rodos/aws-region-watch/pkg/state"
	"github.com/rodos/aws-region-watch/pkg/telemetry"
	"github.com/rodos/aws-region-watch/pkg/watch"
)

func newWatchCommand() *cobra.Command {
	var (
		regions   []string
		typesFlag string
		stateDir  string
		format    string
		quiet     bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Fetch current availability and report changes since the last run",
		Long: `Fetch the current availability of the tracked resource types, compare it
against the snapshots from the previous run, persist the new snapshots, and
print a report of the differences.

The first run for an entity only establishes its baseline and reports
nothing. Corrupted state files reset the baseline for that entity; state
files written by an incompatible version must be deleted by hand.`,
		Example: `  # Watch the default region (from AWS_REGION or ~/.aws/config)
  regionwatch watch

  # Watch specific regions
  regionwatch watch --region ap-southeast-2 --region us-west-2

  # Track individual API operations as well
  regionwatch watch --type api,product

  # Machine-readable output
  regionwatch watch --quiet --format json > changes.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Flags override config file values.
			if len(regions) > 0 {
				cfg.Regions = regions
			}
			if cmd.Flags().Changed("type") {
				types, err := config.ParseTypes(typesFlag)
				if err != nil {
					return err
				}
				cfg.Types = types
			}
			if cmd.Flags().Changed("state-dir") {
				cfg.StateDir = stateDir
			}
			if cmd.Flags().Changed("format") {
				cfg.Format = format
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			if len(cfg.Regions) == 0 {
				region, ok := config.DefaultRegion()
				if !ok {
					return fmt.Errorf("no region specified and no default region found; " +
						"set one with --region, AWS_REGION, AWS_DEFAULT_REGION, or ~/.aws/config")
				}
				cfg.Regions = []string{region}
			}

			level := "info"
			if verbose {
				level = "debug"
			}
			if quiet {
				level = "warn"
			}
			logCfg := telemetry.DefaultLoggingConfig()
			logCfg.Level = level
			logger, err := telemetry.NewLogger(logCfg)
			if err != nil {
				return err
			}

			client := knowledge.New(knowledge.ClientConfig{
				Endpoint: cfg.Endpoint,
				Logger:   logger.NewComponentLogger("client"),
			})
			store := state.NewStore(cfg.StateDir, logger.NewComponentLogger("state"))
			runner := watch.NewRunner(client, store, logger.NewComponentLogger("watch"))

			outcome, err := runner.Run(cmd.Context(), watch.Options{
				Regions: cfg.Regions,
				Types:   cfg.Types,
				Format:  report.Format(cfg.Format),
			})
			if err != nil {
				return err
			}

			if outcome.Report != "" {
				fmt.Fprintln(cmd.OutOrStdout(), outcome.Report)
			}
			if outcome.Changed {
				return errChangesDetected
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&regions, "region", "r", nil,
		"region to monitor (repeatable; default from AWS_REGION, AWS_DEFAULT_REGION, or ~/.aws/config)")
	cmd.Flags().StringVarP(&typesFlag, "type", "t", strings.Join(config.DefaultTypes, ","),
		"resource types to monitor, comma-separated (region, product, api)")
	cmd.Flags().StringVar(&stateDir, "state-dir", config.DefaultStateDir, "directory for state files")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format (markdown or json)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress messages")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed progress information")

	return cmd
}
