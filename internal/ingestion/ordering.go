package ingestion

import (
	"errors"
	"sort"

	"amm-indexer/internal/domain"
)

// ErrInvalidOrdering is returned when events are not in chain order.
var ErrInvalidOrdering = errors.New("events are not in deterministic order")

// SortEvents orders events by (block ASC, tx_index ASC, log_index ASC).
// This is the order the chain emitted them in.
func SortEvents(events []domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareMeta(events[i].Meta(), events[j].Meta()) < 0
	})
}

// ValidateOrdering checks that events are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateOrdering(events []domain.Event) error {
	for i := 1; i < len(events); i++ {
		if compareMeta(events[i-1].Meta(), events[i].Meta()) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareMeta returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (block ASC, tx_index ASC, log_index ASC)
func compareMeta(a, b *domain.EventMeta) int {
	if a.BlockNumber != b.BlockNumber {
		if a.BlockNumber < b.BlockNumber {
			return -1
		}
		return 1
	}
	if a.TxIndex != b.TxIndex {
		if a.TxIndex < b.TxIndex {
			return -1
		}
		return 1
	}
	if a.LogIndex != b.LogIndex {
		if a.LogIndex < b.LogIndex {
			return -1
		}
		return 1
	}
	return 0
}

// mergeEvents merges two sorted slices into one sorted slice.
func mergeEvents(a, b []domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if compareMeta(b[j].Meta(), a[i].Meta()) < 0 {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
