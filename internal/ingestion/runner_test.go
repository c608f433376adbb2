package ingestion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-indexer/internal/chain"
	"amm-indexer/internal/storage"
	"amm-indexer/internal/storage/memory"
)

type fakeHeads struct {
	head atomic.Uint64
}

func (f *fakeHeads) BlockNumber(context.Context) (uint64, error) {
	return f.head.Load(), nil
}

type fakeSubscriber struct {
	ch  chan chain.Header
	err error
}

func (f *fakeSubscriber) SubscribeNewHeads(context.Context) (<-chan chain.Header, error) {
	return f.ch, f.err
}

func runAsync(ctx context.Context, r *Runner) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func TestRunner_FollowsHeadsBehindConfirmations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &fakeRanges{}
	heads := &fakeHeads{}
	heads.head.Store(5)
	sub := &fakeSubscriber{ch: make(chan chain.Header, 1)}

	r := NewRunner(RunnerOptions{
		Processor:     proc,
		Checkpoints:   memory.NewCheckpointStore(),
		Heads:         heads,
		Subscriber:    sub,
		Confirmations: 2,
		BatchSize:     100,
		PollInterval:  time.Hour,
		StartBlock:    1,
	})
	done := runAsync(ctx, r)

	require.Eventually(t, func() bool { return len(proc.processed()) == 1 }, time.Second, 5*time.Millisecond)
	sub.ch <- chain.Header{Number: 10}
	require.Eventually(t, func() bool { return len(proc.processed()) == 2 }, time.Second, 5*time.Millisecond)

	// A head inside the confirmation window changes nothing.
	sub.ch <- chain.Header{Number: 10}

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
	assert.Equal(t, [][2]uint64{{1, 3}, {4, 8}}, proc.processed())
}

func TestRunner_PollsWhenSubscriptionFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &fakeRanges{}
	heads := &fakeHeads{}
	heads.head.Store(1) // below confirmations

	r := NewRunner(RunnerOptions{
		Processor:     proc,
		Heads:         heads,
		Subscriber:    &fakeSubscriber{err: errors.New("dial failed")},
		Confirmations: 3,
		PollInterval:  5 * time.Millisecond,
		StartBlock:    1,
	})
	done := runAsync(ctx, r)

	heads.head.Store(13)
	require.Eventually(t, func() bool { return len(proc.processed()) > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, [2]uint64{1, 10}, proc.processed()[0])
}

func TestRunner_ResumesAfterCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checkpoints := memory.NewCheckpointStore()
	require.NoError(t, checkpoints.SetLastProcessed(ctx, &storage.Checkpoint{BlockNumber: 50}))

	proc := &fakeRanges{}
	heads := &fakeHeads{}
	heads.head.Store(60)

	r := NewRunner(RunnerOptions{
		Processor:    proc,
		Checkpoints:  checkpoints,
		Heads:        heads,
		PollInterval: time.Hour,
		StartBlock:   1,
	})
	done := runAsync(ctx, r)

	require.Eventually(t, func() bool { return len(proc.processed()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, [2]uint64{51, 60}, proc.processed()[0])
}

func TestRunner_RangeFailureStops(t *testing.T) {
	heads := &fakeHeads{}
	heads.head.Store(10)

	r := NewRunner(RunnerOptions{
		Processor:    &fakeRanges{failAt: 4},
		Heads:        heads,
		PollInterval: time.Hour,
		StartBlock:   1,
	})

	err := r.Run(context.Background())
	assert.ErrorContains(t, err, "rpc unavailable")
}
