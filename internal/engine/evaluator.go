// Package engine implements deterministic flag evaluation: constraint
// matching, CRC-32 bucketing and variant selection over an immutable
// snapshot. Evaluation is a pure function of (request, snapshot); it
// performs no I/O, holds no mutable state and is safe to call from any
// goroutine, including request handlers.
package engine

import (
	"fmt"
	"time"

	"github.com/flagvane/flagvane/internal/models"
	"github.com/flagvane/flagvane/internal/snapshot"
	"github.com/flagvane/flagvane/internal/telemetry"
)

// Evaluate resolves one flag for one entity against the given snapshot.
//
// Resolution is by FlagKey when set, else by FlagID. The terminal
// reasons short-circuit in priority order: FLAG_NOT_FOUND,
// FLAG_DISABLED, NO_SEGMENTS, then the ranked segment walk ending in
// MATCH or NO_MATCH. Evaluation never returns an error: unknown flags
// and malformed targeting data are expected inputs and degrade to
// well-formed results.
func Evaluate(snap *snapshot.Snapshot, req EvalContext) EvalResult {
	start := time.Now()
	result := evaluate(snap, req)
	telemetry.EvaluationDuration.Observe(time.Since(start).Seconds())
	telemetry.EvaluationsTotal.WithLabelValues(string(result.Reason)).Inc()
	return result
}

// EvaluateBatch applies Evaluate independently to each request,
// returning results in input order. Requests do not interact, so
// callers may shard large batches across goroutines if they wish.
func EvaluateBatch(snap *snapshot.Snapshot, reqs []EvalContext) []EvalResult {
	results := make([]EvalResult, len(reqs))
	for i := range reqs {
		results[i] = Evaluate(snap, reqs[i])
	}
	return results
}

func evaluate(snap *snapshot.Snapshot, req EvalContext) EvalResult {
	result := EvalResult{
		FlagID:  req.FlagID,
		FlagKey: req.FlagKey,
	}

	dbg := newDebugLog(req.EnableDebug)

	flag := lookupFlag(snap, req)
	if flag == nil {
		result.Reason = ReasonFlagNotFound
		dbg.logf("flag not found (key=%q id=%d)", req.FlagKey, req.FlagID)
		result.DebugLog = dbg.lines
		return result
	}

	result.FlagID = flag.ID
	result.FlagKey = flag.Key

	if !flag.Enabled {
		result.Reason = ReasonFlagDisabled
		dbg.logf("flag %q is disabled", flag.Key)
		result.DebugLog = dbg.lines
		return result
	}

	if len(flag.Segments) == 0 {
		result.Reason = ReasonNoSegments
		dbg.logf("flag %q has no segments", flag.Key)
		result.DebugLog = dbg.lines
		return result
	}

	// Segments are pre-sorted ascending by rank at snapshot build time.
	for i := range flag.Segments {
		seg := &flag.Segments[i]

		if !MatchConstraints(seg.Constraints, req.EntityContext) {
			dbg.logf("segment %d (rank %d): constraints did not match", seg.ID, seg.Rank)
			continue
		}
		dbg.logf("segment %d (rank %d): constraints matched", seg.ID, seg.Rank)

		bucket := Bucket(req.EntityID, flag.ID)
		if !rolledOut(seg, bucket) {
			dbg.logf("segment %d: entity bucket %d outside rollout %d%%", seg.ID, bucket, seg.RolloutPercent)
			continue
		}
		dbg.logf("segment %d: entity bucket %d within rollout %d%%", seg.ID, bucket, seg.RolloutPercent)

		segID := seg.ID
		result.SegmentID = &segID
		result.Reason = ReasonMatch

		dist := pickDistribution(seg, bucket)
		if dist == nil {
			dbg.logf("segment %d: matched with no distributions, no variant assigned", seg.ID)
			result.DebugLog = dbg.lines
			return result
		}

		variantID := dist.VariantID
		result.VariantID = &variantID
		if v := flag.VariantByID(dist.VariantID); v != nil {
			result.VariantKey = v.Key
			result.VariantAttachment = v.Attachment
		} else if v := snap.VariantByID(dist.VariantID); v != nil {
			result.VariantKey = v.Key
			result.VariantAttachment = v.Attachment
		}
		dbg.logf("segment %d: assigned variant %d (%s)", seg.ID, dist.VariantID, result.VariantKey)
		result.DebugLog = dbg.lines
		return result
	}

	result.Reason = ReasonNoMatch
	dbg.logf("no segment matched constraints and rollout")
	result.DebugLog = dbg.lines
	return result
}

func lookupFlag(snap *snapshot.Snapshot, req EvalContext) *models.Flag {
	if req.FlagKey != "" {
		return snap.FlagByKey(req.FlagKey)
	}
	if req.FlagID != 0 {
		return snap.FlagByID(req.FlagID)
	}
	return nil
}

// debugLog collects trace lines only when enabled; when disabled the
// result's DebugLog stays nil so callers cannot rely on partial logs.
type debugLog struct {
	enabled bool
	lines   []string
}

func newDebugLog(enabled bool) *debugLog {
	return &debugLog{enabled: enabled}
}

func (d *debugLog) logf(format string, args ...any) {
	if !d.enabled {
		return
	}
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}
