package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	format    string
	quiet     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagvane",
	Short: "CLI tool for the flagvane evaluation service",
	Long: `Flagvane is a command-line tool for working with the flagvane
feature-flag evaluation service.

It can download snapshots from a running server, evaluate flags either
remotely or offline against a local snapshot file, and inspect the
deterministic bucketing used for rollouts.

Examples:
  flagvane fetch --output snapshot.json
  flagvane evaluate --flag-key new-ui --entity-id user_42
  flagvane evaluate --snapshot snapshot.json --flag-key new-ui --entity-id user_42
  flagvane list --format json
  flagvane bucket user_42 7`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Base URL of the flagvane API")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
