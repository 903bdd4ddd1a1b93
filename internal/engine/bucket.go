package engine

import (
	"hash/crc32"
	"strconv"

	"github.com/flagvane/flagvane/internal/models"
)

// Bucketing constants are wire contract shared with every SDK: 1000
// bucket slots, so rollout and distribution percents scale by 10. Do
// not change them without versioning the snapshot document.
const (
	// TotalBuckets is the size of the bucket space.
	TotalBuckets = 1000

	// PercentMultiplier converts a 0-100 percent into bucket slots.
	PercentMultiplier = TotalBuckets / 100
)

// Bucket maps an entity/flag pair to a deterministic slot in
// [0, TotalBuckets). The hash input is the UTF-8 bytes of
// "entityID:flagID" and the hash is CRC-32 (IEEE polynomial); both are
// part of the cross-SDK contract, verified by a fixed conformance
// table rather than trusted to library defaults.
func Bucket(entityID string, flagID int64) int {
	h := crc32.ChecksumIEEE([]byte(entityID + ":" + strconv.FormatInt(flagID, 10)))
	return int(h % TotalBuckets)
}

// rolledOut reports whether the bucket falls inside the segment's
// rollout window. Percent 0 excludes every bucket, percent 100 covers
// the full space.
func rolledOut(seg *models.Segment, bucket int) bool {
	return bucket < seg.RolloutPercent*PercentMultiplier
}

// pickDistribution walks the segment's distributions in stored order,
// accumulating percent*10 thresholds, and returns the first whose
// cumulative threshold exceeds the bucket. nil means the segment has no
// distributions: "matched but no variant configured", distinct from
// rollout exclusion.
//
// When the percents sum below 100 and the bucket lands past the last
// threshold, the first distribution is returned as a defined default
// instead of no-variant. Documented policy, kept for parity with
// existing consumers.
func pickDistribution(seg *models.Segment, bucket int) *models.Distribution {
	if len(seg.Distributions) == 0 {
		return nil
	}
	threshold := 0
	for i := range seg.Distributions {
		threshold += seg.Distributions[i].Percent * PercentMultiplier
		if bucket < threshold {
			return &seg.Distributions[i]
		}
	}
	return &seg.Distributions[0]
}
