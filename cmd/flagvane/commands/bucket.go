package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flagvane/flagvane/internal/engine"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket <entity-id> <flag-id>",
	Short: "Show the rollout bucket for an entity",
	Long: `Print the deterministic bucket (0..999) an entity falls into for a
flag. An entity is inside an N% rollout when its bucket is below N*10.

Examples:
  flagvane bucket user_42 7`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID := args[0]
		flagID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid flag id %q: %w", args[1], err)
		}

		fmt.Println(engine.Bucket(entityID, flagID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bucketCmd)
}
