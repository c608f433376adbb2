package memory

import (
	"context"
	"sync"

	"amm-indexer/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu         sync.RWMutex
	checkpoint *storage.Checkpoint
	pairs      map[string]uint64
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		pairs: make(map[string]uint64),
	}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// GetLastProcessed returns the last processed block.
func (s *CheckpointStore) GetLastProcessed(_ context.Context) (*storage.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.checkpoint == nil {
		return nil, storage.ErrNotFound
	}

	cp := *s.checkpoint
	return &cp, nil
}

// SetLastProcessed saves the last processed block.
func (s *CheckpointStore) SetLastProcessed(_ context.Context, cp *storage.Checkpoint) error {
	if cp == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cp
	s.checkpoint = &c
	return nil
}

// IsPairTracked checks if a pair address is being followed.
func (s *CheckpointStore) IsPairTracked(_ context.Context, pair string) (bool, error) {
	if pair == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pairs[pair]
	return ok, nil
}

// TrackPair records that a pair's logs must be followed.
func (s *CheckpointStore) TrackPair(_ context.Context, pair string, createdAtBlock uint64) error {
	if pair == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pairs[pair]; !ok {
		s.pairs[pair] = createdAtBlock
	}
	return nil
}

// LoadTrackedPairs returns all tracked pairs.
func (s *CheckpointStore) LoadTrackedPairs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]string, 0, len(s.pairs))
	for p := range s.pairs {
		pairs = append(pairs, p)
	}
	return pairs, nil
}
