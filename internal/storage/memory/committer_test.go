package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

type failingCommitter struct{ err error }

func (f failingCommitter) CommitRange(context.Context, []storage.Change, *storage.Checkpoint) error {
	return f.err
}

func TestStage_ReadsOwnWritesUntilCommit(t *testing.T) {
	ctx := context.Background()
	base := NewEntityStore()
	checkpoints := NewCheckpointStore()
	stage := storage.NewStage(base, NewPeriodStore(), NewCommitter(base, checkpoints))
	view := stage.Store()

	if err := view.Pairs.Save(ctx, &domain.Pair{ID: "p1", TxCount: 3}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pair, err := view.Pairs.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load through stage failed: %v", err)
	}
	if pair.TxCount != 3 {
		t.Errorf("Expected staged tx count 3, got %d", pair.TxCount)
	}
	if _, err := base.Pairs.Load(ctx, "p1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected base untouched before commit, got %v", err)
	}
	if stage.Pending() != 1 {
		t.Errorf("Expected 1 pending write, got %d", stage.Pending())
	}

	if err := stage.Commit(ctx, &storage.Checkpoint{BlockNumber: 7, BlockHash: "0x07"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := base.Pairs.Load(ctx, "p1"); err != nil {
		t.Errorf("Expected pair in base after commit, got %v", err)
	}
	cp, err := checkpoints.GetLastProcessed(ctx)
	if err != nil || cp.BlockNumber != 7 {
		t.Errorf("Expected checkpoint 7, got %+v (%v)", cp, err)
	}
	if stage.Pending() != 0 {
		t.Errorf("Expected empty stage after commit, got %d", stage.Pending())
	}
}

func TestStage_RemoveHidesBaseEntity(t *testing.T) {
	ctx := context.Background()
	base := NewEntityStore()
	if err := base.Mints.Save(ctx, &domain.Mint{ID: "m1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stage := storage.NewStage(base, nil, NewCommitter(base, nil))
	if err := stage.Store().Mints.Remove(ctx, "m1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := stage.Store().Mints.Load(ctx, "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected removed mint hidden, got %v", err)
	}
	if _, err := base.Mints.Load(ctx, "m1"); err != nil {
		t.Errorf("Expected base mint kept before commit, got %v", err)
	}

	if err := stage.Commit(ctx, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := base.Mints.Load(ctx, "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected mint removed after commit, got %v", err)
	}
	if stage.Periods() != nil {
		t.Error("Expected nil period store when none is configured")
	}
}

func TestStage_DiscardDropsWrites(t *testing.T) {
	ctx := context.Background()
	base := NewEntityStore()
	periods := NewPeriodStore()
	stage := storage.NewStage(base, periods, NewCommitter(base, nil))

	if err := stage.Store().Factories.Save(ctx, &domain.Factory{ID: "f", PairCount: 1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	delta := []domain.PeriodDelta{{Interval: domain.IntervalDay, EntityType: domain.PeriodFactory, EntityID: "f", VolumeUSD: decimal.NewFromInt(1), TxCount: 1}}
	if err := stage.Periods().Record(ctx, delta); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	stage.Discard()

	if _, err := stage.Store().Factories.Load(ctx, "f"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected discarded factory gone, got %v", err)
	}
	if err := stage.Commit(ctx, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	buckets, _ := periods.GetBuckets(ctx, domain.IntervalDay, domain.PeriodFactory, "f")
	if len(buckets) != 0 {
		t.Errorf("Expected no buckets after discard, got %d", len(buckets))
	}
}

func TestStage_FailedCommitKeepsBuffer(t *testing.T) {
	ctx := context.Background()
	base := NewEntityStore()
	stage := storage.NewStage(base, nil, failingCommitter{err: errors.New("connection reset")})

	if err := stage.Store().Users.Save(ctx, &domain.User{ID: "u"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := stage.Commit(ctx, &storage.Checkpoint{BlockNumber: 1}); err == nil {
		t.Fatal("Expected commit error")
	}
	if stage.Pending() != 1 {
		t.Errorf("Expected buffered write kept for the caller to discard, got %d", stage.Pending())
	}
	if _, err := base.Users.Load(ctx, "u"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected base untouched, got %v", err)
	}
}
