package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"amm-indexer/internal/storage"
)

// CheckpointStore is a PostgreSQL implementation of storage.CheckpointStore.
// Uses two tables:
//   - ingestion_checkpoint: single row with (block_number, block_hash)
//   - tracked_pairs: set of pair addresses whose logs are followed
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// GetLastProcessed returns the last processed block.
func (s *CheckpointStore) GetLastProcessed(ctx context.Context) (*storage.Checkpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT block_number, block_hash
		FROM ingestion_checkpoint
		LIMIT 1
	`)

	var cp storage.Checkpoint
	var block int64
	err := row.Scan(&block, &cp.BlockHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	cp.BlockNumber = uint64(block)

	return &cp, nil
}

// SetLastProcessed saves the last processed block.
func (s *CheckpointStore) SetLastProcessed(ctx context.Context, cp *storage.Checkpoint) error {
	return setLastProcessed(ctx, s.pool, cp)
}

// setLastProcessed upserts the single checkpoint row through db.
func setLastProcessed(ctx context.Context, db querier, cp *storage.Checkpoint) error {
	if cp == nil {
		return storage.ErrInvalidInput
	}

	_, err := db.Exec(ctx, `
		INSERT INTO ingestion_checkpoint (id, block_number, block_hash, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET block_number = EXCLUDED.block_number,
		    block_hash = EXCLUDED.block_hash,
		    updated_at = NOW()
	`, int64(cp.BlockNumber), cp.BlockHash)

	return err
}

// IsPairTracked checks if a pair address is being followed.
func (s *CheckpointStore) IsPairTracked(ctx context.Context, pair string) (bool, error) {
	if pair == "" {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM tracked_pairs WHERE pair = $1)
	`, pair)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// TrackPair records that a pair's logs must be followed.
func (s *CheckpointStore) TrackPair(ctx context.Context, pair string, createdAtBlock uint64) error {
	if pair == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracked_pairs (pair, created_at_block, tracked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (pair) DO NOTHING
	`, pair, int64(createdAtBlock))

	return err
}

// LoadTrackedPairs returns all tracked pairs.
func (s *CheckpointStore) LoadTrackedPairs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pair FROM tracked_pairs ORDER BY created_at_block, pair
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var pair string
		if err := rows.Scan(&pair); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	return pairs, rows.Err()
}
