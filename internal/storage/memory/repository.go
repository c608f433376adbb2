package memory

import (
	"context"
	"sync"

	"amm-indexer/internal/storage"
)

// Repository is an in-memory implementation of storage.Repository.
// Entities are cloned on the way in and out so callers never share state with the store.
type Repository[T storage.Record[T]] struct {
	mu   sync.RWMutex
	data map[string]T
}

// NewRepository creates a new in-memory repository.
func NewRepository[T storage.Record[T]]() *Repository[T] {
	return &Repository[T]{
		data: make(map[string]T),
	}
}

// Load retrieves an entity by id.
func (r *Repository[T]) Load(_ context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.data[id]
	if !ok {
		var zero T
		return zero, storage.ErrNotFound
	}
	return v.Clone(), nil
}

// Save inserts or replaces the entity.
func (r *Repository[T]) Save(_ context.Context, entity T) error {
	id := entity.EntityID()
	if id == "" {
		return storage.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[id] = entity.Clone()
	return nil
}

// Remove deletes the entity.
func (r *Repository[T]) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.data, id)
	return nil
}

// Len returns the number of stored entities.
func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
