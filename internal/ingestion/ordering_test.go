package ingestion

import (
	"errors"
	"testing"

	"amm-indexer/internal/domain"
)

func syncAt(block uint64, txIndex, logIndex uint) *domain.Sync {
	return &domain.Sync{EventMeta: domain.EventMeta{BlockNumber: block, TxIndex: txIndex, LogIndex: logIndex}}
}

func TestSortEvents(t *testing.T) {
	// Intentionally unordered events
	events := []domain.Event{
		syncAt(200, 1, 0),
		syncAt(100, 0, 5),
		syncAt(100, 0, 2),
		syncAt(100, 3, 0),
		syncAt(300, 0, 0),
	}

	SortEvents(events)

	// Verify order: (block ASC, tx_index ASC, log_index ASC)
	expected := []struct {
		block    uint64
		txIndex  uint
		logIndex uint
	}{
		{100, 0, 2},
		{100, 0, 5},
		{100, 3, 0},
		{200, 1, 0},
		{300, 0, 0},
	}

	for i, exp := range expected {
		m := events[i].Meta()
		if m.BlockNumber != exp.block || m.TxIndex != exp.txIndex || m.LogIndex != exp.logIndex {
			t.Errorf("Index %d: got (%d, %d, %d), want (%d, %d, %d)",
				i, m.BlockNumber, m.TxIndex, m.LogIndex, exp.block, exp.txIndex, exp.logIndex)
		}
	}
}

func TestSortEvents_Empty(t *testing.T) {
	var events []domain.Event
	SortEvents(events) // Should not panic
}

func TestValidateOrdering(t *testing.T) {
	ordered := []domain.Event{syncAt(1, 0, 0), syncAt(1, 0, 1), syncAt(2, 0, 0)}
	if err := ValidateOrdering(ordered); err != nil {
		t.Errorf("expected ordered events to validate, got %v", err)
	}

	unordered := []domain.Event{syncAt(2, 0, 0), syncAt(1, 0, 0)}
	if err := ValidateOrdering(unordered); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering, got %v", err)
	}

	// Same position twice is a duplicate, not an ordering
	dup := []domain.Event{syncAt(1, 0, 0), syncAt(1, 0, 0)}
	if err := ValidateOrdering(dup); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering for duplicate, got %v", err)
	}
}

func TestMergeEvents(t *testing.T) {
	a := []domain.Event{syncAt(1, 0, 0), syncAt(3, 0, 0)}
	b := []domain.Event{syncAt(2, 0, 0), syncAt(4, 0, 0)}

	merged := mergeEvents(a, b)
	if len(merged) != 4 {
		t.Fatalf("expected 4 events, got %d", len(merged))
	}
	if err := ValidateOrdering(merged); err != nil {
		t.Errorf("merged events out of order: %v", err)
	}
}
