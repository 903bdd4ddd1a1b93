package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagvane/flagvane/internal/cli"
	"github.com/flagvane/flagvane/internal/client"
)

var (
	fetchOutput string
	fetchETag   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a snapshot from a server",
	Long: `Download the full flag snapshot from a running server and write it
to a local file. The file can later be served by the file store or
evaluated offline with "flagvane evaluate --snapshot".

Examples:
  flagvane fetch --output snapshot.json
  flagvane fetch --output snapshot.json --etag 'W/"abc"'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := cli.ResolveServerURL(serverURL)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(base)

		doc, err := c.FetchSnapshot(context.Background(), fetchETag)
		if errors.Is(err, client.ErrNotModified) {
			if !quiet {
				fmt.Println("Snapshot unchanged")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch snapshot: %w", err)
		}

		if err := cli.WriteSnapshotFile(fetchOutput, *doc); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("Wrote %d flags to %s (etag %s)\n", len(doc.Flags), fetchOutput, doc.ETag)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchOutput, "output", "snapshot.json", "Output file path")
	fetchCmd.Flags().StringVar(&fetchETag, "etag", "", "Skip download if the server snapshot still has this ETag")
}
