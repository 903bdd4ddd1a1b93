package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flagvane/flagvane/internal/models"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	queryFlags = `SELECT id, key, enabled FROM flags ORDER BY id`

	queryVariants = `SELECT id, flag_id, key, COALESCE(attachment, '{}'::jsonb)
FROM variants ORDER BY flag_id, id`

	querySegments = `SELECT id, flag_id, rank, rollout_percent
FROM segments ORDER BY flag_id, rank, id`

	queryConstraints = `SELECT id, segment_id, property, operator, value
FROM constraints ORDER BY segment_id, id`

	queryDistributions = `SELECT id, segment_id, variant_id, percent
FROM distributions ORDER BY segment_id, id`
)

// LoadSnapshot reads the full flag graph inside a single repeatable-read
// transaction, so the five tables are joined against one consistent
// instant even while writers commit concurrently.
func (p *PostgresStore) LoadSnapshot(ctx context.Context) ([]models.Flag, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	flags, flagIdx, err := loadFlags(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := loadVariants(ctx, tx, flags, flagIdx); err != nil {
		return nil, err
	}
	segIdx, err := loadSegments(ctx, tx, flags, flagIdx)
	if err != nil {
		return nil, err
	}
	if err := loadConstraints(ctx, tx, flags, segIdx); err != nil {
		return nil, err
	}
	if err := loadDistributions(ctx, tx, flags, segIdx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return flags, nil
}

// segmentRef locates a segment inside the flags slice without holding
// pointers across append operations.
type segmentRef struct {
	flagIdx int
	segIdx  int
}

func loadFlags(ctx context.Context, tx pgx.Tx) ([]models.Flag, map[int64]int, error) {
	rows, err := tx.Query(ctx, queryFlags)
	if err != nil {
		return nil, nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	var flags []models.Flag
	idx := make(map[int64]int)
	for rows.Next() {
		var f models.Flag
		if err := rows.Scan(&f.ID, &f.Key, &f.Enabled); err != nil {
			return nil, nil, fmt.Errorf("scan flag: %w", err)
		}
		idx[f.ID] = len(flags)
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate flags: %w", err)
	}
	return flags, idx, nil
}

func loadVariants(ctx context.Context, tx pgx.Tx, flags []models.Flag, flagIdx map[int64]int) error {
	rows, err := tx.Query(ctx, queryVariants)
	if err != nil {
		return fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.FlagID, &v.Key, &v.Attachment); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		i, ok := flagIdx[v.FlagID]
		if !ok {
			continue // orphan row, flag deleted mid-write before FK cleanup
		}
		flags[i].Variants = append(flags[i].Variants, v)
	}
	return rows.Err()
}

func loadSegments(ctx context.Context, tx pgx.Tx, flags []models.Flag, flagIdx map[int64]int) (map[int64]segmentRef, error) {
	rows, err := tx.Query(ctx, querySegments)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	segIdx := make(map[int64]segmentRef)
	for rows.Next() {
		var s models.Segment
		if err := rows.Scan(&s.ID, &s.FlagID, &s.Rank, &s.RolloutPercent); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		i, ok := flagIdx[s.FlagID]
		if !ok {
			continue
		}
		segIdx[s.ID] = segmentRef{flagIdx: i, segIdx: len(flags[i].Segments)}
		flags[i].Segments = append(flags[i].Segments, s)
	}
	return segIdx, rows.Err()
}

func loadConstraints(ctx context.Context, tx pgx.Tx, flags []models.Flag, segIdx map[int64]segmentRef) error {
	rows, err := tx.Query(ctx, queryConstraints)
	if err != nil {
		return fmt.Errorf("query constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Constraint
		if err := rows.Scan(&c.ID, &c.SegmentID, &c.Property, &c.Operator, &c.Value); err != nil {
			return fmt.Errorf("scan constraint: %w", err)
		}
		ref, ok := segIdx[c.SegmentID]
		if !ok {
			continue
		}
		seg := &flags[ref.flagIdx].Segments[ref.segIdx]
		seg.Constraints = append(seg.Constraints, c)
	}
	return rows.Err()
}

func loadDistributions(ctx context.Context, tx pgx.Tx, flags []models.Flag, segIdx map[int64]segmentRef) error {
	rows, err := tx.Query(ctx, queryDistributions)
	if err != nil {
		return fmt.Errorf("query distributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d models.Distribution
		if err := rows.Scan(&d.ID, &d.SegmentID, &d.VariantID, &d.Percent); err != nil {
			return fmt.Errorf("scan distribution: %w", err)
		}
		ref, ok := segIdx[d.SegmentID]
		if !ok {
			continue
		}
		seg := &flags[ref.flagIdx].Segments[ref.segIdx]
		seg.Distributions = append(seg.Distributions, d)
	}
	return rows.Err()
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
