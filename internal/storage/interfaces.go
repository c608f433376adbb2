package storage

import (
	"context"

	"amm-indexer/internal/domain"
)

// Record is an entity that can be keyed and copied by a Repository.
type Record[T any] interface {
	EntityID() string
	Clone() T
}

// Repository provides keyed access to one entity type.
type Repository[T Record[T]] interface {
	// Load retrieves an entity by id. Returns ErrNotFound if not exists.
	Load(ctx context.Context, id string) (T, error)

	// Save inserts or replaces the entity.
	Save(ctx context.Context, entity T) error

	// Remove deletes the entity. Removing a missing id is not an error.
	Remove(ctx context.Context, id string) error
}

// EntityStore groups the repositories the mapping handlers read and write.
type EntityStore struct {
	Factories    Repository[*domain.Factory]
	Bundles      Repository[*domain.Bundle]
	Tokens       Repository[*domain.Token]
	Pairs        Repository[*domain.Pair]
	Users        Repository[*domain.User]
	Transactions Repository[*domain.Transaction]
	Mints        Repository[*domain.Mint]
	Burns        Repository[*domain.Burn]
	Swaps        Repository[*domain.Swap]
}

// PeriodStore persists day/hour bucket deltas.
type PeriodStore interface {
	// Record adds deltas to their buckets.
	Record(ctx context.Context, deltas []domain.PeriodDelta) error

	// GetBuckets returns buckets for an entity ordered by bucket start ASC.
	GetBuckets(ctx context.Context, interval domain.Interval, entityType, entityID string) ([]domain.PeriodBucket, error)
}
