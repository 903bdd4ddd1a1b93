// Package testutil provides builders for flag configuration fixtures
// used across package tests.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flagvane/flagvane/internal/models"
	"github.com/flagvane/flagvane/internal/snapshot"
)

// Flag builds a flag with the given segments. Variants referenced by
// the segments' distributions must be attached separately via Variants.
func Flag(id int64, key string, enabled bool, segments ...models.Segment) models.Flag {
	return models.Flag{
		ID:       id,
		Key:      key,
		Enabled:  enabled,
		Segments: segments,
	}
}

// Variants attaches variants to a flag and returns it.
func Variants(f models.Flag, variants ...models.Variant) models.Flag {
	f.Variants = variants
	return f
}

// Segment builds a segment for the given flag.
func Segment(id, flagID int64, rank, rolloutPercent int, constraints []models.Constraint, distributions []models.Distribution) models.Segment {
	return models.Segment{
		ID:             id,
		FlagID:         flagID,
		Rank:           rank,
		RolloutPercent: rolloutPercent,
		Constraints:    constraints,
		Distributions:  distributions,
	}
}

// Constraint builds a single targeting predicate.
func Constraint(id, segmentID int64, property string, op models.Operator, value string) models.Constraint {
	return models.Constraint{
		ID:        id,
		SegmentID: segmentID,
		Property:  property,
		Operator:  op,
		Value:     value,
	}
}

// Distribution builds a (variant, percent) pair.
func Distribution(id, segmentID, variantID int64, percent int) models.Distribution {
	return models.Distribution{
		ID:        id,
		SegmentID: segmentID,
		VariantID: variantID,
		Percent:   percent,
	}
}

// Variant builds a variant belonging to a flag.
func Variant(id, flagID int64, key string, attachment map[string]string) models.Variant {
	return models.Variant{
		ID:         id,
		FlagID:     flagID,
		Key:        key,
		Attachment: attachment,
	}
}

// Snapshot builds an immutable snapshot from the given flags.
func Snapshot(t *testing.T, flags ...models.Flag) *snapshot.Snapshot {
	t.Helper()
	return snapshot.Build(flags)
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
