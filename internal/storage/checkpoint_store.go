package storage

import "context"

// Checkpoint represents the last fully processed position in the chain.
type Checkpoint struct {
	BlockNumber uint64 // last block whose logs were all handled
	BlockHash   string
}

// CheckpointStore provides persistence for ingestion state.
// This enables resumption after restarts without reprocessing blocks.
type CheckpointStore interface {
	// GetLastProcessed returns the last processed block.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*Checkpoint, error)

	// SetLastProcessed saves the last processed block.
	SetLastProcessed(ctx context.Context, cp *Checkpoint) error

	// IsPairTracked checks if a pair address is being followed.
	IsPairTracked(ctx context.Context, pair string) (bool, error)

	// TrackPair records that a pair's logs must be followed.
	TrackPair(ctx context.Context, pair string, createdAtBlock uint64) error

	// LoadTrackedPairs returns all tracked pairs (for warming the in-memory set).
	LoadTrackedPairs(ctx context.Context) ([]string, error)
}
