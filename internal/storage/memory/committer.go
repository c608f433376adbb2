package memory

import (
	"context"
	"fmt"

	"amm-indexer/internal/storage"
)

// Committer applies staged range changes to in-memory stores.
// Memory repositories only reject empty ids, which the stage already refuses,
// so a commit does not stop partway.
type Committer struct {
	store       *storage.EntityStore
	checkpoints storage.CheckpointStore
}

// NewCommitter creates a committer writing to store and checkpoints.
func NewCommitter(store *storage.EntityStore, checkpoints storage.CheckpointStore) *Committer {
	return &Committer{store: store, checkpoints: checkpoints}
}

var _ storage.Committer = (*Committer)(nil)

// CommitRange applies changes in order, then saves cp.
func (c *Committer) CommitRange(ctx context.Context, changes []storage.Change, cp *storage.Checkpoint) error {
	for _, ch := range changes {
		if err := ch.Apply(ctx, c.store); err != nil {
			return fmt.Errorf("apply %s %s: %w", ch.Kind, ch.ID, err)
		}
	}
	if cp == nil || c.checkpoints == nil {
		return nil
	}
	return c.checkpoints.SetLastProcessed(ctx, cp)
}
