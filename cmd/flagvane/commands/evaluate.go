package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flagvane/flagvane/internal/cli"
	"github.com/flagvane/flagvane/internal/client"
	"github.com/flagvane/flagvane/internal/engine"
	"github.com/flagvane/flagvane/internal/snapshot"
	"github.com/flagvane/flagvane/internal/store"
)

var (
	evalFlagKey      string
	evalFlagID       int64
	evalEntityID     string
	evalEntityType   string
	evalContextPairs []string
	evalDebug        bool
	evalSnapshotFile string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a feature flag",
	Long: `Evaluate a feature flag for an entity.

Without --snapshot the evaluation runs on the server. With --snapshot
the evaluation runs locally against the given snapshot file and
produces the same result the server would for the same document.

Examples:
  flagvane evaluate --flag-key new-ui --entity-id user_42
  flagvane evaluate --flag-id 7 --entity-id user_42 --context region=US --context tier=pro
  flagvane evaluate --snapshot snapshot.json --flag-key new-ui --entity-id user_42 --debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if evalEntityID == "" {
			return fmt.Errorf("--entity-id is required")
		}
		if evalFlagKey == "" && evalFlagID <= 0 {
			return fmt.Errorf("one of --flag-key or --flag-id is required")
		}

		entityContext, err := parseContextPairs(evalContextPairs)
		if err != nil {
			return err
		}

		evalCtx := engine.EvalContext{
			FlagID:        evalFlagID,
			FlagKey:       evalFlagKey,
			EntityID:      evalEntityID,
			EntityType:    evalEntityType,
			EntityContext: entityContext,
			EnableDebug:   evalDebug,
		}

		var res engine.EvalResult
		if evalSnapshotFile != "" {
			res, err = evaluateLocal(evalSnapshotFile, evalCtx)
		} else {
			res, err = evaluateRemote(evalCtx)
		}
		if err != nil {
			return err
		}

		if quiet {
			return nil
		}
		return cli.PrintResult(os.Stdout, res, cli.OutputFormat(format))
	},
}

func evaluateLocal(path string, evalCtx engine.EvalContext) (engine.EvalResult, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return engine.EvalResult{}, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	flags, err := store.ParseSnapshotDocument(blob)
	if err != nil {
		return engine.EvalResult{}, fmt.Errorf("invalid snapshot file: %w", err)
	}
	return engine.Evaluate(snapshot.Build(flags), evalCtx), nil
}

func evaluateRemote(evalCtx engine.EvalContext) (engine.EvalResult, error) {
	base, err := cli.ResolveServerURL(serverURL)
	if err != nil {
		return engine.EvalResult{}, fmt.Errorf("configuration error: %w", err)
	}
	c := client.NewClient(base)
	res, err := c.Evaluate(context.Background(), evalCtx)
	if err != nil {
		return engine.EvalResult{}, fmt.Errorf("failed to evaluate: %w", err)
	}
	return *res, nil
}

// parseContextPairs turns repeated key=value flags into an entity
// context map. Values stay strings; the constraint matcher coerces.
func parseContextPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --context value %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalFlagKey, "flag-key", "", "Flag key to evaluate")
	evaluateCmd.Flags().Int64Var(&evalFlagID, "flag-id", 0, "Flag id to evaluate")
	evaluateCmd.Flags().StringVar(&evalEntityID, "entity-id", "", "Entity id (required)")
	evaluateCmd.Flags().StringVar(&evalEntityType, "entity-type", "", "Entity type")
	evaluateCmd.Flags().StringArrayVar(&evalContextPairs, "context", nil, "Entity context attribute as key=value (repeatable)")
	evaluateCmd.Flags().BoolVar(&evalDebug, "debug", false, "Include the per-segment debug trace")
	evaluateCmd.Flags().StringVar(&evalSnapshotFile, "snapshot", "", "Evaluate offline against this snapshot file")
}
