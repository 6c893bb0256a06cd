package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     "leadflow",
	Short:   "Lead flow intelligence pipeline",
	Version: version,
	Long: `Aggregates daily lead and ad statistics per segment, plans demand against
partner capacity, moves campaign budgets toward the plan and flags
underperforming keywords and ads.

Configuration is read from LEADFLOW_* environment variables. Business
thresholds can be overridden with a YAML file named by LEADFLOW_TUNING_FILE.`,
	Example: `  # Run the scheduler and admin API
  $ leadflow serve

  # Re-run planning for a given day
  $ leadflow run plan --date 2024-05-01

  # Aggregate today's numbers
  $ leadflow run aggregate`,
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}
