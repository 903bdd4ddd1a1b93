package engine

import (
	"reflect"
	"testing"

	"github.com/flagvane/flagvane/internal/models"
	"github.com/flagvane/flagvane/internal/snapshot"
	"github.com/flagvane/flagvane/internal/testutil"
)

// fullRolloutFlag is the end-to-end fixture from the evaluation
// contract: flag f1 (enabled), segment s1 (rank 1, rollout 100, no
// constraints), one distribution assigning variant v1 at 100%.
func fullRolloutFlag(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	f := testutil.Flag(1, "f1", true,
		testutil.Segment(10, 1, 1, 100, nil, []models.Distribution{
			testutil.Distribution(100, 10, 1000, 100),
		}),
	)
	f = testutil.Variants(f, testutil.Variant(1000, 1, "v1", map[string]string{"color": "blue"}))
	return testutil.Snapshot(t, f)
}

func TestEvaluate_EndToEnd(t *testing.T) {
	snap := fullRolloutFlag(t)

	res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "user_42"})

	if res.Reason != ReasonMatch {
		t.Fatalf("reason = %s, want MATCH", res.Reason)
	}
	if res.FlagKey != "f1" || res.FlagID != 1 {
		t.Errorf("flag identity = (%d, %q), want (1, f1)", res.FlagID, res.FlagKey)
	}
	if res.SegmentID == nil || *res.SegmentID != 10 {
		t.Errorf("segmentId = %v, want 10", res.SegmentID)
	}
	if res.VariantID == nil || *res.VariantID != 1000 || res.VariantKey != "v1" {
		t.Errorf("variant = (%v, %q), want (1000, v1)", res.VariantID, res.VariantKey)
	}
	if res.VariantAttachment["color"] != "blue" {
		t.Errorf("attachment = %v, want color=blue", res.VariantAttachment)
	}
}

func TestEvaluate_ConstraintMismatch(t *testing.T) {
	f := testutil.Flag(1, "f1", true,
		testutil.Segment(10, 1, 1, 100,
			[]models.Constraint{testutil.Constraint(1, 10, "region", models.OpEQ, "US")},
			[]models.Distribution{testutil.Distribution(100, 10, 1000, 100)},
		),
	)
	f = testutil.Variants(f, testutil.Variant(1000, 1, "v1", nil))
	snap := testutil.Snapshot(t, f)

	res := Evaluate(snap, EvalContext{
		FlagKey:       "f1",
		EntityID:      "user_42",
		EntityContext: map[string]any{"region": "EU"},
	})
	if res.Reason != ReasonNoMatch {
		t.Fatalf("reason = %s, want NO_MATCH", res.Reason)
	}
	if res.VariantID != nil {
		t.Errorf("variantId = %v, want nil", res.VariantID)
	}

	res = Evaluate(snap, EvalContext{
		FlagKey:       "f1",
		EntityID:      "user_42",
		EntityContext: map[string]any{"region": "US"},
	})
	if res.Reason != ReasonMatch || res.VariantKey != "v1" {
		t.Fatalf("matching context: reason = %s variant = %q, want MATCH/v1", res.Reason, res.VariantKey)
	}
}

func TestEvaluate_FlagNotFound(t *testing.T) {
	snap := fullRolloutFlag(t)

	for _, req := range []EvalContext{
		{FlagKey: "missing", EntityID: "e"},
		{FlagID: 999, EntityID: "e"},
		{EntityID: "e"}, // neither key nor id
	} {
		res := Evaluate(snap, req)
		if res.Reason != ReasonFlagNotFound {
			t.Errorf("reason for %+v = %s, want FLAG_NOT_FOUND", req, res.Reason)
		}
	}
}

func TestEvaluate_DisabledShortCircuits(t *testing.T) {
	// Disabled flag with a fully matching, fully included segment.
	f := testutil.Flag(1, "f1", false,
		testutil.Segment(10, 1, 1, 100, nil, []models.Distribution{
			testutil.Distribution(100, 10, 1000, 100),
		}),
	)
	f = testutil.Variants(f, testutil.Variant(1000, 1, "v1", nil))
	snap := testutil.Snapshot(t, f)

	res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "user_42"})
	if res.Reason != ReasonFlagDisabled {
		t.Fatalf("reason = %s, want FLAG_DISABLED", res.Reason)
	}
	if res.VariantID != nil || res.SegmentID != nil {
		t.Error("disabled flag must not resolve a segment or variant")
	}
}

func TestEvaluate_NoSegments(t *testing.T) {
	snap := testutil.Snapshot(t, testutil.Flag(1, "f1", true))
	res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "e"})
	if res.Reason != ReasonNoSegments {
		t.Fatalf("reason = %s, want NO_SEGMENTS", res.Reason)
	}
}

func TestEvaluate_RankOrdering(t *testing.T) {
	// Both segments match and include every entity; rank 1 must always
	// win. Segments are deliberately stored rank-2-first to prove the
	// snapshot orders them.
	f := testutil.Flag(1, "f1", true,
		testutil.Segment(20, 1, 2, 100, nil, []models.Distribution{
			testutil.Distribution(200, 20, 2000, 100),
		}),
		testutil.Segment(10, 1, 1, 100, nil, []models.Distribution{
			testutil.Distribution(100, 10, 1000, 100),
		}),
	)
	f = testutil.Variants(f,
		testutil.Variant(1000, 1, "first", nil),
		testutil.Variant(2000, 1, "second", nil),
	)
	snap := testutil.Snapshot(t, f)

	for _, entity := range []string{"a", "b", "c", "user_42"} {
		res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: entity})
		if res.SegmentID == nil || *res.SegmentID != 10 || res.VariantKey != "first" {
			t.Fatalf("entity %q resolved via segment %v variant %q, want rank-1 segment 10 / first", entity, res.SegmentID, res.VariantKey)
		}
	}
}

func TestEvaluate_MatchedSegmentWithoutDistributions(t *testing.T) {
	f := testutil.Flag(1, "f1", true,
		testutil.Segment(10, 1, 1, 100, nil, nil),
	)
	snap := testutil.Snapshot(t, f)

	res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "e"})
	if res.Reason != ReasonMatch {
		t.Fatalf("reason = %s, want MATCH", res.Reason)
	}
	if res.SegmentID == nil || *res.SegmentID != 10 {
		t.Errorf("segmentId = %v, want 10", res.SegmentID)
	}
	if res.VariantID != nil {
		t.Errorf("variantId = %v, want nil (no distributions configured)", res.VariantID)
	}
}

func TestEvaluate_RolloutExclusionFallsThrough(t *testing.T) {
	// Rollout 0 on the rank-1 segment excludes everyone; the rank-2
	// segment with full rollout picks the entity up.
	f := testutil.Flag(1, "f1", true,
		testutil.Segment(10, 1, 1, 0, nil, []models.Distribution{
			testutil.Distribution(100, 10, 1000, 100),
		}),
		testutil.Segment(20, 1, 2, 100, nil, []models.Distribution{
			testutil.Distribution(200, 20, 2000, 100),
		}),
	)
	f = testutil.Variants(f,
		testutil.Variant(1000, 1, "gated", nil),
		testutil.Variant(2000, 1, "open", nil),
	)
	snap := testutil.Snapshot(t, f)

	res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "user_42"})
	if res.Reason != ReasonMatch || res.VariantKey != "open" {
		t.Fatalf("got reason=%s variant=%q, want MATCH/open", res.Reason, res.VariantKey)
	}
}

func TestEvaluate_DistributionPartition(t *testing.T) {
	// 30/70 split on flag 1. Entity user_4 hashes to bucket 6,
	// user_3 to bucket 723.
	f := testutil.Flag(1, "f1", true,
		testutil.Segment(10, 1, 1, 100, nil, []models.Distribution{
			testutil.Distribution(100, 10, 1000, 30),
			testutil.Distribution(101, 10, 2000, 70),
		}),
	)
	f = testutil.Variants(f,
		testutil.Variant(1000, 1, "a", nil),
		testutil.Variant(2000, 1, "b", nil),
	)
	snap := testutil.Snapshot(t, f)

	if res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "user_4"}); res.VariantKey != "a" {
		t.Errorf("user_4 (bucket 6): variant = %q, want a", res.VariantKey)
	}
	if res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "user_3"}); res.VariantKey != "b" {
		t.Errorf("user_3 (bucket 723): variant = %q, want b", res.VariantKey)
	}
}

func TestEvaluate_KeyWinsOverID(t *testing.T) {
	snapA := testutil.Snapshot(t,
		testutil.Flag(1, "f1", true),
		testutil.Flag(2, "f2", false),
	)
	res := Evaluate(snapA, EvalContext{FlagKey: "f2", FlagID: 1, EntityID: "e"})
	if res.FlagID != 2 {
		t.Fatalf("resolved flag %d, want key lookup to win (flag 2)", res.FlagID)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	snap := fullRolloutFlag(t)
	req := EvalContext{FlagKey: "f1", EntityID: "user_42", EntityContext: map[string]any{"x": 1}}

	a := Evaluate(snap, req)
	b := Evaluate(snap, req)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated evaluation diverged:\n%+v\n%+v", a, b)
	}
}

func TestEvaluate_DebugTrace(t *testing.T) {
	snap := fullRolloutFlag(t)

	res := Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "user_42", EnableDebug: true})
	if len(res.DebugLog) == 0 {
		t.Fatal("debug evaluation produced no trace")
	}

	res = Evaluate(snap, EvalContext{FlagKey: "f1", EntityID: "user_42"})
	if res.DebugLog != nil {
		t.Fatalf("non-debug evaluation carries trace: %v", res.DebugLog)
	}
}

func TestEvaluateBatch_OrderPreserved(t *testing.T) {
	snap := testutil.Snapshot(t,
		testutil.Flag(1, "f1", true),
		testutil.Flag(2, "f2", false),
	)

	reqs := []EvalContext{
		{FlagKey: "f2", EntityID: "e"},
		{FlagKey: "missing", EntityID: "e"},
		{FlagKey: "f1", EntityID: "e"},
	}
	results := EvaluateBatch(snap, reqs)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	wantReasons := []Reason{ReasonFlagDisabled, ReasonFlagNotFound, ReasonNoSegments}
	for i, want := range wantReasons {
		if results[i].Reason != want {
			t.Errorf("result[%d].Reason = %s, want %s", i, results[i].Reason, want)
		}
	}
}

func TestEvaluate_EmptySnapshot(t *testing.T) {
	res := Evaluate(snapshot.Empty(), EvalContext{FlagKey: "anything", EntityID: "e"})
	if res.Reason != ReasonFlagNotFound {
		t.Fatalf("reason = %s, want FLAG_NOT_FOUND on empty snapshot", res.Reason)
	}
}
