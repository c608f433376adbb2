// Package ledger tracks the per-transaction lists of logical Mint, Burn and Swap
// records while a transaction's logs are correlated.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

// Ledger loads and persists Transaction entities.
type Ledger struct {
	txs storage.Repository[*domain.Transaction]
}

// New creates a ledger over the transaction repository.
func New(txs storage.Repository[*domain.Transaction]) *Ledger {
	return &Ledger{txs: txs}
}

// GetOrCreate returns the transaction for the event, creating it with empty lists
// when it is seen for the first time. A created transaction is not saved until Save.
func (l *Ledger) GetOrCreate(ctx context.Context, meta *domain.EventMeta) (*domain.Transaction, error) {
	id := domain.TxID(meta.TxHash)
	tx, err := l.txs.Load(ctx, id)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	return &domain.Transaction{
		ID:          id,
		BlockNumber: meta.BlockNumber,
		Timestamp:   meta.Timestamp,
		Mints:       domain.RecordList{},
		Burns:       domain.RecordList{},
		Swaps:       domain.RecordList{},
	}, nil
}

// Find returns the transaction for the event, or false when none exists yet.
func (l *Ledger) Find(ctx context.Context, meta *domain.EventMeta) (*domain.Transaction, bool, error) {
	tx, err := l.txs.Load(ctx, domain.TxID(meta.TxHash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load transaction: %w", err)
	}
	return tx, true, nil
}

// Save persists the transaction.
func (l *Ledger) Save(ctx context.Context, tx *domain.Transaction) error {
	if err := l.txs.Save(ctx, tx); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

// LastRecord loads the entity referenced by the last id of list. It returns false
// when the list is empty or the entity is gone.
func LastRecord[T storage.Record[T]](ctx context.Context, repo storage.Repository[T], list domain.RecordList) (T, bool, error) {
	var zero T
	id, ok := list.Last()
	if !ok {
		return zero, false, nil
	}
	rec, err := repo.Load(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("load record %s: %w", id, err)
	}
	return rec, true, nil
}
