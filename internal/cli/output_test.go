package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/flagvane/flagvane/internal/engine"
	"github.com/flagvane/flagvane/internal/models"
)

func sampleFlags() []models.Flag {
	return []models.Flag{
		{
			ID:      1,
			Key:     "new-ui",
			Enabled: true,
			Segments: []models.Segment{
				{ID: 10, FlagID: 1, Rank: 1, RolloutPercent: 100},
			},
			Variants: []models.Variant{
				{ID: 1000, FlagID: 1, Key: "on"},
			},
		},
		{ID: 2, Key: "legacy-ui"},
	}
}

func TestPrintFlagsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintFlags(&buf, sampleFlags(), FormatJSON); err != nil {
		t.Fatalf("PrintFlags: %v", err)
	}

	var out struct {
		Flags []models.Flag `json:"flags"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(out.Flags) != 2 || out.Flags[0].Key != "new-ui" {
		t.Fatalf("unexpected output: %+v", out.Flags)
	}
}

func TestPrintFlagsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintFlags(&buf, sampleFlags(), FormatTable); err != nil {
		t.Fatalf("PrintFlags: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"new-ui", "legacy-ui", "KEY", "ENABLED"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintFlagsYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintFlags(&buf, sampleFlags(), FormatYAML); err != nil {
		t.Fatalf("PrintFlags: %v", err)
	}
	if !strings.Contains(buf.String(), "key: new-ui") {
		t.Fatalf("yaml output missing flag key:\n%s", buf.String())
	}
}

func TestPrintFlagsUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintFlags(&buf, sampleFlags(), OutputFormat("csv")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPrintResult(t *testing.T) {
	variantID := int64(1000)
	res := engine.EvalResult{
		FlagID:     1,
		FlagKey:    "new-ui",
		VariantID:  &variantID,
		VariantKey: "on",
		Reason:     engine.ReasonMatch,
		DebugLog:   []string{"segment 10: matched"},
	}

	var buf bytes.Buffer
	if err := PrintResult(&buf, res, FormatTable); err != nil {
		t.Fatalf("PrintResult: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "MATCH") || !strings.Contains(out, "on") {
		t.Fatalf("table output missing result fields:\n%s", out)
	}
	if !strings.Contains(out, "segment 10: matched") {
		t.Fatalf("table output missing debug log:\n%s", out)
	}

	buf.Reset()
	if err := PrintResult(&buf, res, FormatJSON); err != nil {
		t.Fatalf("PrintResult json: %v", err)
	}
	var decoded engine.EvalResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output invalid: %v", err)
	}
	if decoded.Reason != engine.ReasonMatch {
		t.Fatalf("decoded reason = %q, want MATCH", decoded.Reason)
	}
}
