package store

import (
	"context"
	"sync"

	"github.com/flagvane/flagvane/internal/models"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[int64]models.Flag // id -> Flag
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags: make(map[int64]models.Flag),
	}
}

// LoadSnapshot returns a copy of every stored flag. The copy is deep
// enough that the snapshot cache can take ownership of the result while
// writers keep mutating the store.
func (m *MemoryStore) LoadSnapshot(ctx context.Context) ([]models.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Flag, 0, len(m.flags))
	for _, flag := range m.flags {
		result = append(result, copyFlag(flag))
	}
	return result, nil
}

// UpsertFlag creates or replaces a flag by id.
func (m *MemoryStore) UpsertFlag(ctx context.Context, flag models.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[flag.ID] = copyFlag(flag)
	return nil
}

// GetFlag retrieves a flag by id.
func (m *MemoryStore) GetFlag(ctx context.Context, id int64) (*models.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[id]
	if !exists {
		return nil, ErrFlagNotFound
	}
	out := copyFlag(flag)
	return &out, nil
}

// DeleteFlag removes a flag by id. Idempotent: no error if the flag
// doesn't exist.
func (m *MemoryStore) DeleteFlag(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, id)
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}

// copyFlag clones a flag with its nested slices so callers on either
// side of the store boundary never share backing arrays.
func copyFlag(f models.Flag) models.Flag {
	out := f
	if f.Segments != nil {
		out.Segments = make([]models.Segment, len(f.Segments))
		for i, seg := range f.Segments {
			cp := seg
			cp.Constraints = append([]models.Constraint(nil), seg.Constraints...)
			cp.Distributions = append([]models.Distribution(nil), seg.Distributions...)
			out.Segments[i] = cp
		}
	}
	if f.Variants != nil {
		out.Variants = make([]models.Variant, len(f.Variants))
		for i, v := range f.Variants {
			cp := v
			if v.Attachment != nil {
				cp.Attachment = make(map[string]string, len(v.Attachment))
				for k, val := range v.Attachment {
					cp.Attachment[k] = val
				}
			}
			out.Variants[i] = cp
		}
	}
	return out
}
