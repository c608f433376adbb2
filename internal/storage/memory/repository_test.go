package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

func TestRepository_SaveAndLoad(t *testing.T) {
	repo := NewRepository[*domain.Pair]()
	ctx := context.Background()

	pair := &domain.Pair{ID: "0xpair", Token0: "0xa", Token1: "0xb", Reserve0: decimal.NewFromInt(10)}
	if err := repo.Save(ctx, pair); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := repo.Load(ctx, "0xpair")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Reserve0.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected reserve0 10, got %s", loaded.Reserve0)
	}
}

func TestRepository_LoadReturnsCopy(t *testing.T) {
	repo := NewRepository[*domain.Transaction]()
	ctx := context.Background()

	if err := repo.Save(ctx, &domain.Transaction{ID: "0xtx", Mints: []string{"0xtx-0"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, _ := repo.Load(ctx, "0xtx")
	loaded.Mints = append(loaded.Mints, "0xtx-1")
	loaded.Mints[0] = "changed"

	again, _ := repo.Load(ctx, "0xtx")
	if len(again.Mints) != 1 || again.Mints[0] != "0xtx-0" {
		t.Errorf("Stored transaction was mutated through a loaded copy: %v", again.Mints)
	}
}

func TestRepository_NotFoundAndRemove(t *testing.T) {
	repo := NewRepository[*domain.Mint]()
	ctx := context.Background()

	_, err := repo.Load(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_ = repo.Save(ctx, &domain.Mint{ID: "m"})
	if err := repo.Remove(ctx, "m"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := repo.Load(ctx, "m"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after remove, got %v", err)
	}
	if err := repo.Remove(ctx, "m"); err != nil {
		t.Errorf("Removing a missing id should not fail: %v", err)
	}
}

func TestRepository_EmptyID(t *testing.T) {
	repo := NewRepository[*domain.Token]()
	err := repo.Save(context.Background(), &domain.Token{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
