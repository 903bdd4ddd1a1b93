package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flagvane/flagvane/internal/cli"
	"github.com/flagvane/flagvane/internal/client"
	"github.com/flagvane/flagvane/internal/models"
	"github.com/flagvane/flagvane/internal/store"
)

var (
	listSnapshotFile string
	listEnabledOnly  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List feature flags",
	Long: `List the flags in a server's current snapshot, or in a local
snapshot file.

Examples:
  flagvane list
  flagvane list --format json
  flagvane list --snapshot snapshot.json --enabled-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var flags []models.Flag
		if listSnapshotFile != "" {
			blob, err := os.ReadFile(listSnapshotFile)
			if err != nil {
				return fmt.Errorf("failed to read snapshot file: %w", err)
			}
			flags, err = store.ParseSnapshotDocument(blob)
			if err != nil {
				return fmt.Errorf("invalid snapshot file: %w", err)
			}
		} else {
			base, err := cli.ResolveServerURL(serverURL)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			doc, err := client.NewClient(base).FetchSnapshot(context.Background(), "")
			if err != nil {
				return fmt.Errorf("failed to fetch snapshot: %w", err)
			}
			flags = doc.Flags
		}

		if listEnabledOnly {
			var enabled []models.Flag
			for _, f := range flags {
				if f.Enabled {
					enabled = append(enabled, f)
				}
			}
			flags = enabled
		}

		if quiet {
			return nil
		}
		if len(flags) == 0 {
			fmt.Println("No flags found")
			return nil
		}
		return cli.PrintFlags(os.Stdout, flags, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listSnapshotFile, "snapshot", "", "Read flags from this snapshot file instead of a server")
	listCmd.Flags().BoolVar(&listEnabledOnly, "enabled-only", false, "Show only enabled flags")
}
