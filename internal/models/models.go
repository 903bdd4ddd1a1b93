// Package models defines the flag configuration model shared by the
// server, the snapshot export document, and offline SDK evaluators.
// Field names and JSON tags are part of the wire contract: disconnected
// clients deserialize the same document and must reach identical
// evaluation results, so nothing here may drift between releases.
package models

import (
	"sort"
	"time"
)

// Operator identifies a constraint comparison operator.
// The set is closed: every SDK ships the same twelve operators, and the
// string codes below are the serialized form.
type Operator string

const (
	OpEQ          Operator = "EQ"
	OpNEQ         Operator = "NEQ"
	OpLT          Operator = "LT"
	OpLTE         Operator = "LTE"
	OpGT          Operator = "GT"
	OpGTE         Operator = "GTE"
	OpIN          Operator = "IN"
	OpNOTIN       Operator = "NOTIN"
	OpCONTAINS    Operator = "CONTAINS"
	OpNOTCONTAINS Operator = "NOTCONTAINS"
	OpEREG        Operator = "EREG"
	OpNEREG       Operator = "NEREG"
)

// Flag is a named feature decision point. A disabled flag never
// produces a variant regardless of its segments.
type Flag struct {
	ID       int64     `json:"id"`
	Key      string    `json:"key"`
	Enabled  bool      `json:"enabled"`
	Segments []Segment `json:"segments"`
	Variants []Variant `json:"variants"`
}

// Segment is one ranked targeting rule block within a flag. Constraints
// are AND-ed; the rollout percent and distributions decide inclusion
// and variant assignment for entities that match.
type Segment struct {
	ID             int64          `json:"id"`
	FlagID         int64          `json:"flagId"`
	Rank           int            `json:"rank"`
	RolloutPercent int            `json:"rolloutPercent"`
	Constraints    []Constraint   `json:"constraints"`
	Distributions  []Distribution `json:"distributions"`
}

// Constraint is a single predicate over one entity-context property.
// Value is always carried as a string; numeric operators parse it as a
// float, IN/NOTIN split it on commas.
type Constraint struct {
	ID        int64    `json:"id"`
	SegmentID int64    `json:"segmentId"`
	Property  string   `json:"property"`
	Operator  Operator `json:"operator"`
	Value     string   `json:"value"`
}

// Distribution is a (variant, percent) pair used to split traffic
// within a segment. Distributions partition the segment's bucket space
// in declaration order.
type Distribution struct {
	ID         int64  `json:"id"`
	SegmentID  int64  `json:"segmentId"`
	VariantID  int64  `json:"variantId"`
	VariantKey string `json:"variantKey,omitempty"`
	Percent    int    `json:"percent"`
}

// Variant is one possible outcome of a flag evaluation. Attachment is
// an opaque payload returned verbatim to the caller.
type Variant struct {
	ID         int64             `json:"id"`
	FlagID     int64             `json:"flagId"`
	Key        string            `json:"key"`
	Attachment map[string]string `json:"attachment,omitempty"`
}

// SnapshotDocument is the portable export form of a full configuration
// snapshot. Servers publish it on the export endpoint; file stores and
// offline SDKs consume the identical document.
type SnapshotDocument struct {
	ID        string    `json:"id"`
	ETag      string    `json:"etag"`
	UpdatedAt time.Time `json:"updatedAt"`
	Flags     []Flag    `json:"flags"`
}

// SortSegments orders the flag's segments ascending by rank, the order
// the evaluator walks them in. The sort is stable so equal ranks keep
// their stored order.
func (f *Flag) SortSegments() {
	sort.SliceStable(f.Segments, func(i, j int) bool {
		return f.Segments[i].Rank < f.Segments[j].Rank
	})
}

// VariantByID returns the flag's variant with the given id, or nil.
func (f *Flag) VariantByID(id int64) *Variant {
	for i := range f.Variants {
		if f.Variants[i].ID == id {
			return &f.Variants[i]
		}
	}
	return nil
}
