package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

// PeriodStore is an in-memory implementation of storage.PeriodStore.
type PeriodStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PeriodBucket // keyed by (interval, entity_type, entity_id, bucket_start)
	seen map[string][2]uint64            // (block, log) that last set the snapshot fields
	done map[string]struct{}             // bucket key plus event position of every applied delta
}

// NewPeriodStore creates a new in-memory period store.
func NewPeriodStore() *PeriodStore {
	return &PeriodStore{
		data: make(map[string]*domain.PeriodBucket),
		seen: make(map[string][2]uint64),
		done: make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.PeriodStore = (*PeriodStore)(nil)

func periodKey(interval domain.Interval, entityType, entityID string, bucketStart uint64) string {
	return fmt.Sprintf("%s|%s|%s|%d", interval, entityType, entityID, bucketStart)
}

// Record adds deltas to their buckets. A delta whose bucket already holds one from the
// same (block, log) position is skipped.
func (s *PeriodStore) Record(_ context.Context, deltas []domain.PeriodDelta) error {
	for _, d := range deltas {
		if d.EntityID == "" || d.EntityType == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range deltas {
		key := periodKey(d.Interval, d.EntityType, d.EntityID, d.BucketStart)
		event := fmt.Sprintf("%s|%d|%d", key, d.UpdatedAtBlock, d.UpdatedAtLog)
		if _, dup := s.done[event]; dup {
			continue
		}
		s.done[event] = struct{}{}

		b, ok := s.data[key]
		if !ok {
			b = &domain.PeriodBucket{
				Interval:    d.Interval,
				EntityType:  d.EntityType,
				EntityID:    d.EntityID,
				BucketStart: d.BucketStart,
			}
			s.data[key] = b
		}

		b.VolumeToken0 = b.VolumeToken0.Add(d.VolumeToken0)
		b.VolumeToken1 = b.VolumeToken1.Add(d.VolumeToken1)
		b.VolumeUSD = b.VolumeUSD.Add(d.VolumeUSD)
		b.VolumeETH = b.VolumeETH.Add(d.VolumeETH)
		b.UntrackedVolumeUSD = b.UntrackedVolumeUSD.Add(d.UntrackedVolumeUSD)
		b.TxCount += d.TxCount

		pos := [2]uint64{d.UpdatedAtBlock, d.UpdatedAtLog}
		if last := s.seen[key]; !ok || pos[0] > last[0] || (pos[0] == last[0] && pos[1] >= last[1]) {
			b.ReserveUSD = d.ReserveUSD
			b.PriceUSD = d.PriceUSD
			s.seen[key] = pos
		}
	}

	return nil
}

// GetBuckets returns buckets for an entity ordered by bucket start ASC.
func (s *PeriodStore) GetBuckets(_ context.Context, interval domain.Interval, entityType, entityID string) ([]domain.PeriodBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PeriodBucket
	for _, b := range s.data {
		if b.Interval == interval && b.EntityType == entityType && b.EntityID == entityID {
			result = append(result, *b)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart < result[j].BucketStart
	})

	return result, nil
}
