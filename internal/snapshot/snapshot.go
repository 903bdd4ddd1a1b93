// Package snapshot holds the immutable, point-in-time view of all flag
// configuration and the cache that periodically rebuilds it from a
// storage collaborator.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/flagvane/flagvane/internal/models"
)

// Snapshot is a fully-resolved, immutable view of every flag as of one
// load from storage. It is built wholesale, published by pointer swap,
// and never mutated afterwards, which is what lets evaluation read it
// without locking.
type Snapshot struct {
	id        string
	etag      string
	updatedAt time.Time

	flags        []models.Flag
	flagsByID    map[int64]*models.Flag
	flagsByKey   map[string]*models.Flag
	variantsByID map[int64]*models.Variant
}

// Build constructs a snapshot from a fully joined flag set. Segments
// are ordered by rank during construction so the evaluator never sorts
// on the hot path. The input slice is owned by the snapshot afterwards.
func Build(flags []models.Flag) *Snapshot {
	s := &Snapshot{
		id:           uuid.NewString(),
		updatedAt:    time.Now().UTC(),
		flags:        flags,
		flagsByID:    make(map[int64]*models.Flag, len(flags)),
		flagsByKey:   make(map[string]*models.Flag, len(flags)),
		variantsByID: make(map[int64]*models.Variant),
	}

	sort.SliceStable(s.flags, func(i, j int) bool { return s.flags[i].ID < s.flags[j].ID })

	for i := range s.flags {
		f := &s.flags[i]
		f.SortSegments()
		s.flagsByID[f.ID] = f
		if f.Key != "" {
			s.flagsByKey[f.Key] = f
		}
		for j := range f.Variants {
			s.variantsByID[f.Variants[j].ID] = &f.Variants[j]
		}
	}

	s.etag = computeETag(s.flags)
	return s
}

// Empty returns a snapshot with no flags. The cache serves it before
// the first successful load so early evaluations resolve to
// FLAG_NOT_FOUND instead of dereferencing nil.
func Empty() *Snapshot {
	return Build(nil)
}

// ID returns the unique identifier assigned at build time.
func (s *Snapshot) ID() string { return s.id }

// ETag returns the content hash of the snapshot's flag set. Two
// snapshots built from identical configuration carry the same ETag.
func (s *Snapshot) ETag() string { return s.etag }

// UpdatedAt returns the build time of the snapshot.
func (s *Snapshot) UpdatedAt() time.Time { return s.updatedAt }

// Len returns the number of flags in the snapshot.
func (s *Snapshot) Len() int { return len(s.flags) }

// FlagByID resolves a flag by numeric id, or nil.
func (s *Snapshot) FlagByID(id int64) *models.Flag { return s.flagsByID[id] }

// FlagByKey resolves a flag by key, or nil.
func (s *Snapshot) FlagByKey(key string) *models.Flag { return s.flagsByKey[key] }

// VariantByID resolves a variant by id across all flags, or nil.
func (s *Snapshot) VariantByID(id int64) *models.Variant { return s.variantsByID[id] }

// Flags returns the snapshot's flags ordered by id. Callers must treat
// the returned slice as read-only.
func (s *Snapshot) Flags() []models.Flag { return s.flags }

// Document renders the snapshot in its portable export form.
func (s *Snapshot) Document() models.SnapshotDocument {
	return models.SnapshotDocument{
		ID:        s.id,
		ETag:      s.etag,
		UpdatedAt: s.updatedAt,
		Flags:     s.flags,
	}
}

// FromDocument rebuilds a snapshot from an export document, preserving
// the original id and build time so offline evaluators report the same
// provenance the server published.
func FromDocument(doc models.SnapshotDocument) (*Snapshot, error) {
	if err := models.ValidateFlags(doc.Flags); err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}
	s := Build(doc.Flags)
	if doc.ID != "" {
		s.id = doc.ID
	}
	if !doc.UpdatedAt.IsZero() {
		s.updatedAt = doc.UpdatedAt
	}
	return s, nil
}

// computeETag hashes the canonical JSON form of the flag set. The flags
// are already sorted by id, so the encoding is stable for a given
// configuration.
func computeETag(flags []models.Flag) string {
	blob, _ := json.Marshal(flags)
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(blob))
}
