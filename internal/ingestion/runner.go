package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"amm-indexer/internal/chain"
	"amm-indexer/internal/observability"
	"amm-indexer/internal/storage"
)

// Runner follows the chain head, processing blocks once they are Confirmations
// deep. New heads arrive over the subscription; the poll ticker covers a quiet or
// absent WebSocket.
type Runner struct {
	backfill      *Backfiller
	checkpoints   storage.CheckpointStore
	heads         HeadSource
	subscriber    HeadSubscriber
	confirmations uint64
	pollInterval  time.Duration
	startBlock    uint64
	logger        *zap.Logger

	next uint64 // first block not yet processed
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Processor   RangeProcessor
	Checkpoints storage.CheckpointStore
	Heads       HeadSource
	Subscriber  HeadSubscriber // optional
	Stage       RangeStage     // optional; see BackfillOptions.Stage

	Confirmations uint64        // blocks behind head considered final
	BatchSize     uint64        // Default: 500
	PollInterval  time.Duration // Default: 15s
	StartBlock    uint64        // used when no checkpoint exists
	Logger        *zap.Logger
}

// NewRunner creates a new live ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 15 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		backfill: NewBackfiller(BackfillOptions{
			Processor:   opts.Processor,
			Checkpoints: opts.Checkpoints,
			Stage:       opts.Stage,
			BatchSize:   opts.BatchSize,
			Logger:      logger,
		}),
		checkpoints:   opts.Checkpoints,
		heads:         opts.Heads,
		subscriber:    opts.Subscriber,
		confirmations: opts.Confirmations,
		pollInterval:  pollInterval,
		startBlock:    opts.StartBlock,
		logger:        logger,
	}
}

// Run starts continuous ingestion.
// It blocks until context is cancelled or a block range fails.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.loadPosition(ctx); err != nil {
		return err
	}
	r.logger.Info("starting ingestion runner",
		zap.Uint64("next_block", r.next),
		zap.Uint64("confirmations", r.confirmations),
		zap.Duration("poll_interval", r.pollInterval))

	var headsCh <-chan chain.Header
	if r.subscriber != nil {
		ch, err := r.subscriber.SubscribeNewHeads(ctx)
		if err != nil {
			r.logger.Warn("newHeads subscription failed, polling only", zap.Error(err))
		} else {
			headsCh = ch
			r.logger.Info("subscribed to new heads")
		}
	}

	// Catch up before waiting for the first head.
	if err := r.poll(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping", zap.Uint64("next_block", r.next))
			return ctx.Err()

		case head, ok := <-headsCh:
			if !ok {
				r.logger.Warn("new heads channel closed, polling only")
				headsCh = nil
				continue
			}
			if err := r.advance(ctx, head.Number); err != nil {
				return err
			}

		case <-ticker.C:
			if err := r.poll(ctx); err != nil {
				return err
			}
		}
	}
}

// poll asks the node for the head and advances to it.
func (r *Runner) poll(ctx context.Context) error {
	head, err := r.heads.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Transient; the next tick retries.
		r.logger.Warn("get head failed", zap.Error(err))
		return nil
	}
	return r.advance(ctx, head)
}

// advance processes every confirmed block up to head - confirmations.
func (r *Runner) advance(ctx context.Context, head uint64) error {
	observability.UpdateHeadBlock(head)
	if head < r.confirmations {
		return nil
	}
	target := head - r.confirmations
	if target < r.next {
		return nil
	}

	if _, err := r.backfill.Run(ctx, r.next, target); err != nil {
		return err
	}
	r.next = target + 1
	return nil
}

func (r *Runner) loadPosition(ctx context.Context) error {
	r.next = r.startBlock
	if r.checkpoints == nil {
		return nil
	}
	cp, err := r.checkpoints.GetLastProcessed(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get checkpoint: %w", err)
	}
	if cp.BlockNumber+1 > r.next {
		r.next = cp.BlockNumber + 1
	}
	return nil
}
