package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"amm-indexer/internal/observability"
	"amm-indexer/internal/storage"
)

// Committer writes a block range's entity changes and its checkpoint in one transaction.
type Committer struct {
	pool *Pool
}

// NewCommitter creates a committer over pool.
func NewCommitter(pool *Pool) *Committer {
	return &Committer{pool: pool}
}

var _ storage.Committer = (*Committer)(nil)

// CommitRange applies changes in order and then moves the checkpoint. A failure rolls back both.
func (c *Committer) CommitRange(ctx context.Context, changes []storage.Change, cp *storage.Checkpoint) error {
	start := time.Now()
	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		store := newEntityStore(tx)
		for _, ch := range changes {
			if err := ch.Apply(ctx, store); err != nil {
				return err
			}
		}
		if cp == nil {
			return nil
		}
		return setLastProcessed(ctx, tx, cp)
	})
	observability.RecordDBQuery("postgres", "commit_range", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("commit %d changes: %w", len(changes), err)
	}
	return nil
}
