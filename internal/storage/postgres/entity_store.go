package postgres

import (
	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

// NewEntityStore creates an EntityStore backed by PostgreSQL.
func NewEntityStore(pool *Pool) *storage.EntityStore {
	return newEntityStore(pool)
}

// newEntityStore binds every repository to db, which may be a pool or an open transaction.
func newEntityStore(db querier) *storage.EntityStore {
	return &storage.EntityStore{
		Factories:    newRepository[*domain.Factory](db, storage.KindFactory),
		Bundles:      newRepository[*domain.Bundle](db, storage.KindBundle),
		Tokens:       newRepository[*domain.Token](db, storage.KindToken),
		Pairs:        newRepository[*domain.Pair](db, storage.KindPair),
		Users:        newRepository[*domain.User](db, storage.KindUser),
		Transactions: newRepository[*domain.Transaction](db, storage.KindTransaction),
		Mints:        newRepository[*domain.Mint](db, storage.KindMint),
		Burns:        newRepository[*domain.Burn](db, storage.KindBurn),
		Swaps:        newRepository[*domain.Swap](db, storage.KindSwap),
	}
}
