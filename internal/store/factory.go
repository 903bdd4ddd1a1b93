package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	mydb "github.com/flagvane/flagvane/internal/db"
)

// NewStore creates a new store based on the given store type.
// Supported types: "memory", "postgres", "file".
func NewStore(ctx context.Context, storeType, dbDSN, snapshotFile string, log zerolog.Logger) (Store, error) {
	switch storeType {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := mydb.NewPool(ctx, dbDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		return NewPostgresStore(pool), nil
	case "file":
		s, err := NewFileStore(snapshotFile, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot file store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
