package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"amm-indexer/internal/storage"
)

// Repository is a PostgreSQL implementation of storage.Repository.
// Entities of every kind share the entities table and are stored as JSONB documents
// keyed by (entity_type, id).
type Repository[T storage.Record[T]] struct {
	db   querier
	kind string
}

// NewRepository creates a repository for one entity type.
func NewRepository[T storage.Record[T]](pool *Pool, kind string) *Repository[T] {
	return newRepository[T](pool, kind)
}

func newRepository[T storage.Record[T]](db querier, kind string) *Repository[T] {
	return &Repository[T]{db: db, kind: kind}
}

// Load retrieves an entity by id.
func (r *Repository[T]) Load(ctx context.Context, id string) (T, error) {
	var zero T
	start := time.Now()

	row := r.db.QueryRow(ctx, `
		SELECT data FROM entities
		WHERE entity_type = $1 AND id = $2
	`, r.kind, id)

	var data []byte
	err := row.Scan(&data)
	recordQuery("load_"+r.kind, start, err)
	if err != nil {
		if isNotFoundError(err) {
			return zero, storage.ErrNotFound
		}
		return zero, fmt.Errorf("load %s %s: %w", r.kind, id, err)
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return zero, fmt.Errorf("decode %s %s: %w", r.kind, id, err)
	}
	return entity, nil
}

// Save inserts or replaces the entity.
func (r *Repository[T]) Save(ctx context.Context, entity T) error {
	id := entity.EntityID()
	if id == "" {
		return storage.ErrInvalidInput
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", r.kind, id, err)
	}

	start := time.Now()
	_, err = r.db.Exec(ctx, `
		INSERT INTO entities (entity_type, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (entity_type, id) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = NOW()
	`, r.kind, id, data)
	recordQuery("save_"+r.kind, start, err)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", r.kind, id, err)
	}
	return nil
}

// Remove deletes the entity.
func (r *Repository[T]) Remove(ctx context.Context, id string) error {
	start := time.Now()
	_, err := r.db.Exec(ctx, `
		DELETE FROM entities WHERE entity_type = $1 AND id = $2
	`, r.kind, id)
	recordQuery("remove_"+r.kind, start, err)
	if err != nil {
		return fmt.Errorf("remove %s %s: %w", r.kind, id, err)
	}
	return nil
}
