package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"amm-indexer/internal/storage"
)

// Backfiller handles historical ingestion in fixed-size block batches.
type Backfiller struct {
	processor   RangeProcessor
	checkpoints storage.CheckpointStore
	stage       RangeStage
	batchSize   uint64
	logger      *zap.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Processor   RangeProcessor
	Checkpoints storage.CheckpointStore // optional; enables resumption

	// Stage, when set, buffers the handler's writes. Each batch commits with its
	// checkpoint and a failed batch is discarded. The stage's committer must write
	// to Checkpoints.
	Stage RangeStage

	BatchSize   uint64                  // blocks per eth_getLogs range. Default: 500
	Logger      *zap.Logger
}

// NewBackfiller creates a new historical backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 500
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backfiller{
		processor:   opts.Processor,
		checkpoints: opts.Checkpoints,
		stage:       opts.Stage,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	FromBlock uint64 // first block processed, after resuming
	ToBlock   uint64
	Batches   int
	Duration  time.Duration
}

// Run processes [from, to] batch by batch, checkpointing after each batch.
// With a stage, a batch's writes and its checkpoint land together, so rerunning
// after a failure replays the failed batch from a clean state.
// When a checkpoint lies inside the range, processing resumes after it.
func (b *Backfiller) Run(ctx context.Context, from, to uint64) (*BackfillResult, error) {
	start := time.Now()

	resume, err := b.resumeFrom(ctx, from)
	if err != nil {
		return nil, err
	}
	result := &BackfillResult{FromBlock: resume, ToBlock: to}
	if resume > to {
		b.logger.Debug("range already processed", zap.Uint64("from", from), zap.Uint64("to", to))
		return result, nil
	}

	b.logger.Info("starting backfill",
		zap.Uint64("from", resume),
		zap.Uint64("to", to),
		zap.Uint64("batch_size", b.batchSize))

	for batchStart := resume; batchStart <= to; {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batchEnd := batchStart + b.batchSize - 1
		if batchEnd > to || batchEnd < batchStart {
			batchEnd = to
		}

		if err := b.processor.ProcessRange(ctx, batchStart, batchEnd); err != nil {
			b.discard()
			return result, fmt.Errorf("process blocks %d-%d: %w", batchStart, batchEnd, err)
		}
		if err := b.checkpoint(ctx, batchEnd); err != nil {
			b.discard()
			return result, err
		}
		result.Batches++

		if batchEnd == to {
			break
		}
		batchStart = batchEnd + 1
	}

	result.Duration = time.Since(start)
	b.logger.Info("backfill complete",
		zap.Uint64("from", result.FromBlock),
		zap.Uint64("to", result.ToBlock),
		zap.Int("batches", result.Batches),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// resumeFrom returns the first block still to process.
func (b *Backfiller) resumeFrom(ctx context.Context, from uint64) (uint64, error) {
	if b.checkpoints == nil {
		return from, nil
	}
	cp, err := b.checkpoints.GetLastProcessed(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return from, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}
	if cp.BlockNumber+1 > from {
		return cp.BlockNumber + 1, nil
	}
	return from, nil
}

func (b *Backfiller) checkpoint(ctx context.Context, block uint64) error {
	if b.checkpoints == nil && b.stage == nil {
		return nil
	}
	hash, err := b.processor.BlockHash(ctx, block)
	if err != nil {
		return fmt.Errorf("checkpoint block %d: %w", block, err)
	}
	cp := &storage.Checkpoint{BlockNumber: block, BlockHash: hash}

	if b.stage != nil {
		if err := b.stage.Commit(ctx, cp); err != nil {
			return fmt.Errorf("commit blocks up to %d: %w", block, err)
		}
		return nil
	}
	if err := b.checkpoints.SetLastProcessed(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (b *Backfiller) discard() {
	if b.stage != nil {
		b.stage.Discard()
	}
}
