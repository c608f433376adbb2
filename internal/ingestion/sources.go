// Package ingestion delivers decoded pool and factory events to the mapping
// handler in chain order: historical backfill in block batches and a live runner
// that follows new heads behind a confirmation depth.
package ingestion

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"

	"amm-indexer/internal/chain"
	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

// LogSource provides raw logs and the blocks they belong to.
type LogSource interface {
	// GetLogs returns logs matching the filter. Logs may be unordered;
	// the Processor enforces deterministic ordering.
	GetLogs(ctx context.Context, q chain.FilterQuery) ([]types.Log, error)

	// GetBlock returns the block header with its transaction summaries.
	GetBlock(ctx context.Context, number uint64) (*chain.Block, error)
}

// HeadSource reports the chain head.
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// HeadSubscriber streams new heads.
type HeadSubscriber interface {
	SubscribeNewHeads(ctx context.Context) (<-chan chain.Header, error)
}

// EventHandler applies one decoded event.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// RangeProcessor processes every tracked event in an inclusive block range.
type RangeProcessor interface {
	ProcessRange(ctx context.Context, from, to uint64) error

	// BlockHash returns the hash of a processed block for checkpointing.
	BlockHash(ctx context.Context, number uint64) (string, error)
}

// RangeStage holds a range's writes until they commit together with the checkpoint.
type RangeStage interface {
	Commit(ctx context.Context, cp *storage.Checkpoint) error
	Discard()
}

// Compile-time interface checks.
var (
	_ RangeStage     = (*storage.Stage)(nil)
	_ LogSource      = (*chain.HTTPClient)(nil)
	_ HeadSource     = (*chain.HTTPClient)(nil)
	_ HeadSubscriber = (*chain.WSClientImpl)(nil)
	_ RangeProcessor = (*Processor)(nil)
)
