package models

import "fmt"

// ValidationError describes a structural problem in a flag document.
type ValidationError struct {
	FlagKey string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.FlagKey == "" {
		return "flag validation failed: " + e.Message
	}
	return fmt.Sprintf("flag validation failed [%s]: %s", e.FlagKey, e.Message)
}

// ValidateFlags performs structural checks on a loaded flag set.
//
// This guards the read path against obviously broken documents (file
// stores, CLI imports). It is deliberately not part of evaluation: the
// evaluator must stay tolerant of odd-but-parseable configuration, so
// checks here cover only what would make a snapshot ambiguous.
func ValidateFlags(flags []Flag) error {
	seenKeys := make(map[string]int64, len(flags))
	seenIDs := make(map[int64]struct{}, len(flags))

	for i := range flags {
		f := &flags[i]
		if f.Key == "" {
			return ValidationError{Message: fmt.Sprintf("flag %d has empty key", f.ID)}
		}
		if other, dup := seenKeys[f.Key]; dup {
			return ValidationError{FlagKey: f.Key, Message: fmt.Sprintf("key duplicated by flag %d", other)}
		}
		if _, dup := seenIDs[f.ID]; dup {
			return ValidationError{FlagKey: f.Key, Message: fmt.Sprintf("id %d duplicated", f.ID)}
		}
		seenKeys[f.Key] = f.ID
		seenIDs[f.ID] = struct{}{}

		variantIDs := make(map[int64]struct{}, len(f.Variants))
		for j := range f.Variants {
			variantIDs[f.Variants[j].ID] = struct{}{}
		}

		for j := range f.Segments {
			seg := &f.Segments[j]
			if seg.RolloutPercent < 0 || seg.RolloutPercent > 100 {
				return ValidationError{FlagKey: f.Key, Message: fmt.Sprintf("segment %d rollout %d out of range", seg.ID, seg.RolloutPercent)}
			}
			for k := range seg.Distributions {
				d := &seg.Distributions[k]
				if d.Percent < 0 || d.Percent > 100 {
					return ValidationError{FlagKey: f.Key, Message: fmt.Sprintf("distribution %d percent %d out of range", d.ID, d.Percent)}
				}
				if _, ok := variantIDs[d.VariantID]; !ok {
					return ValidationError{FlagKey: f.Key, Message: fmt.Sprintf("distribution %d references unknown variant %d", d.ID, d.VariantID)}
				}
			}
		}
	}
	return nil
}
