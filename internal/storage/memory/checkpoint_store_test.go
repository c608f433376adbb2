package memory

import (
	"context"
	"errors"
	"testing"

	"amm-indexer/internal/storage"
)

func TestCheckpointStore_LastProcessed(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if _, err := store.GetLastProcessed(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.SetLastProcessed(ctx, &storage.Checkpoint{BlockNumber: 42, BlockHash: "0xabc"}); err != nil {
		t.Fatalf("SetLastProcessed failed: %v", err)
	}

	cp, err := store.GetLastProcessed(ctx)
	if err != nil {
		t.Fatalf("GetLastProcessed failed: %v", err)
	}
	if cp.BlockNumber != 42 || cp.BlockHash != "0xabc" {
		t.Errorf("Unexpected checkpoint: %+v", cp)
	}

	if err := store.SetLastProcessed(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestCheckpointStore_TrackedPairs(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if err := store.TrackPair(ctx, "0xpair", 100); err != nil {
		t.Fatalf("TrackPair failed: %v", err)
	}
	if err := store.TrackPair(ctx, "0xpair", 200); err != nil {
		t.Fatalf("TrackPair (repeat) failed: %v", err)
	}

	tracked, err := store.IsPairTracked(ctx, "0xpair")
	if err != nil || !tracked {
		t.Errorf("Expected pair to be tracked, got %v (err %v)", tracked, err)
	}

	pairs, _ := store.LoadTrackedPairs(ctx)
	if len(pairs) != 1 {
		t.Errorf("Expected 1 tracked pair, got %d", len(pairs))
	}

	if _, err := store.IsPairTracked(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
