package memory

import (
	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

// NewEntityStore creates an EntityStore backed by in-memory repositories.
func NewEntityStore() *storage.EntityStore {
	return &storage.EntityStore{
		Factories:    NewRepository[*domain.Factory](),
		Bundles:      NewRepository[*domain.Bundle](),
		Tokens:       NewRepository[*domain.Token](),
		Pairs:        NewRepository[*domain.Pair](),
		Users:        NewRepository[*domain.User](),
		Transactions: NewRepository[*domain.Transaction](),
		Mints:        NewRepository[*domain.Mint](),
		Burns:        NewRepository[*domain.Burn](),
		Swaps:        NewRepository[*domain.Swap](),
	}
}
