package engine

// Reason represents the terminal outcome of a flag evaluation. The
// string values are wire contract: analytics consumers key on them, not
// on variant nullability.
type Reason string

const (
	ReasonFlagNotFound Reason = "FLAG_NOT_FOUND"
	ReasonFlagDisabled Reason = "FLAG_DISABLED"
	ReasonNoSegments   Reason = "NO_SEGMENTS"
	ReasonNoMatch      Reason = "NO_MATCH"
	ReasonMatch        Reason = "MATCH"
)

// EvalContext describes one evaluation request: which flag, for which
// entity, under which context attributes. Exactly one of FlagKey or
// FlagID should be set; when both are, the key wins.
type EvalContext struct {
	FlagID  int64  `json:"flagId,omitempty"`
	FlagKey string `json:"flagKey,omitempty"`

	EntityID   string `json:"entityId"`
	EntityType string `json:"entityType,omitempty"`

	// EntityContext carries scalar attributes (string, number, bool)
	// read by constraint matching.
	EntityContext map[string]any `json:"entityContext,omitempty"`

	// EnableDebug populates EvalResult.DebugLog with per-segment
	// decisions.
	EnableDebug bool `json:"enableDebug,omitempty"`
}

// EvalResult is the deterministic output of Evaluate. "No variant" is a
// first-class outcome: VariantID is nil both for excluded entities and
// for matched segments with no distributions, and Reason tells the two
// apart from disabled or missing flags.
type EvalResult struct {
	FlagID  int64  `json:"flagId,omitempty"`
	FlagKey string `json:"flagKey,omitempty"`

	SegmentID *int64 `json:"segmentId,omitempty"`

	VariantID         *int64            `json:"variantId,omitempty"`
	VariantKey        string            `json:"variantKey,omitempty"`
	VariantAttachment map[string]string `json:"variantAttachment,omitempty"`

	Reason   Reason   `json:"reason"`
	DebugLog []string `json:"debugLog,omitempty"`
}
