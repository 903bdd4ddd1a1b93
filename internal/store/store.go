// Package store provides the storage collaborators the snapshot cache
// loads from. Every implementation returns the full, self-consistent
// flag graph in one call; incremental or streaming loads are not part
// of the contract.
package store

import (
	"context"
	"errors"

	"github.com/flagvane/flagvane/internal/models"
)

// ErrFlagNotFound is returned by lookups on writable stores.
var ErrFlagNotFound = errors.New("flag not found")

// Store defines the interface for snapshot loading. Implementations
// must be safe for concurrent use: the cache's refresh loop and tests
// may call LoadSnapshot from different goroutines.
type Store interface {
	// LoadSnapshot retrieves every flag with its segments, constraints,
	// distributions and variants fully joined, as of a single instant.
	// The returned slice is handed off to the caller; implementations
	// must not retain or mutate it afterwards.
	LoadSnapshot(ctx context.Context) ([]models.Flag, error)

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}
