// Package pricing derives ETH and USD prices from pool reserves and decides which
// volume and liquidity is trusted enough to aggregate.
package pricing

import (
	"github.com/ethereum/go-ethereum/common"

	"amm-indexer/internal/domain"
)

// Whitelist is the ordered set of tokens trusted for price routing.
// Order decides which pool wins in DerivedETH; membership is a set lookup.
type Whitelist struct {
	ordered []common.Address
	set     map[string]struct{}
}

// NewWhitelist builds a whitelist preserving the given order. Duplicates are dropped.
func NewWhitelist(tokens []common.Address) *Whitelist {
	w := &Whitelist{set: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		id := domain.AddressID(t)
		if _, ok := w.set[id]; ok {
			continue
		}
		w.set[id] = struct{}{}
		w.ordered = append(w.ordered, t)
	}
	return w
}

// Contains reports whether the token id (lower-case hex) is whitelisted.
func (w *Whitelist) Contains(id string) bool {
	_, ok := w.set[id]
	return ok
}

// Tokens returns the whitelist in routing order.
func (w *Whitelist) Tokens() []common.Address {
	return w.ordered
}

// Len returns the number of whitelisted tokens.
func (w *Whitelist) Len() int {
	return len(w.ordered)
}
