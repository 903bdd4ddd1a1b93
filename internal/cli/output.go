package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/flagvane/flagvane/internal/engine"
	"github.com/flagvane/flagvane/internal/models"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFlags outputs flags in the specified format
func PrintFlags(w io.Writer, flags []models.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]models.Flag{"flags": flags})
	case FormatYAML:
		return printYAML(w, flags)
	case FormatTable:
		return printFlagTable(w, flags)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintResult outputs a single evaluation result in the specified format
func PrintResult(w io.Writer, res engine.EvalResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, res)
	case FormatYAML:
		return printYAML(w, res)
	case FormatTable:
		return printResultTable(w, res)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printFlagTable(w io.Writer, flags []models.Flag) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Key", "Enabled", "Segments", "Variants")

	for _, flag := range flags {
		enabled := "false"
		if flag.Enabled {
			enabled = "true"
		}
		table.Append(
			fmt.Sprintf("%d", flag.ID),
			flag.Key,
			enabled,
			fmt.Sprintf("%d", len(flag.Segments)),
			fmt.Sprintf("%d", len(flag.Variants)),
		)
	}

	return table.Render()
}

func printResultTable(w io.Writer, res engine.EvalResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("Flag", "Reason", "Variant", "Attachment")

	variant := "-"
	if res.VariantKey != "" {
		variant = res.VariantKey
	}
	attachment := "-"
	if len(res.VariantAttachment) > 0 {
		blob, _ := json.Marshal(res.VariantAttachment)
		attachment = string(blob)
	}
	flagRef := res.FlagKey
	if flagRef == "" {
		flagRef = fmt.Sprintf("%d", res.FlagID)
	}

	table.Append(flagRef, string(res.Reason), variant, attachment)
	if err := table.Render(); err != nil {
		return err
	}

	for _, line := range res.DebugLog {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteSnapshotFile writes a snapshot document to path as indented
// JSON, the same shape the export endpoint serves.
func WriteSnapshotFile(path string, doc models.SnapshotDocument) error {
	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, append(blob, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}
