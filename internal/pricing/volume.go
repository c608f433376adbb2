package pricing

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"amm-indexer/internal/domain"
)

var (
	half = decimal.New(5, -1)
	two  = decimal.NewFromInt(2)
)

// Default new-pair gate: a pair with fewer providers than this must hold at least
// DefaultMinimumUSDThreshold of whitelisted reserves before its swaps are tracked.
const DefaultMinimumLiquidityProviders uint64 = 5

// DefaultMinimumUSDThreshold is the reserve floor of the new-pair gate, in USD.
var DefaultMinimumUSDThreshold = decimal.NewFromInt(400000)

// VolumeOptions configures the volume tracker.
type VolumeOptions struct {
	Whitelist                 *Whitelist
	UntrackedPairs            []common.Address
	MinimumUSDThreshold       decimal.Decimal
	MinimumLiquidityProviders uint64
}

// DefaultVolumeOptions returns options with the default new-pair gate.
func DefaultVolumeOptions(whitelist *Whitelist) VolumeOptions {
	return VolumeOptions{
		Whitelist:                 whitelist,
		MinimumUSDThreshold:       DefaultMinimumUSDThreshold,
		MinimumLiquidityProviders: DefaultMinimumLiquidityProviders,
	}
}

// VolumeTracker separates tracked USD amounts, priced only through whitelisted
// tokens, from untracked ones.
type VolumeTracker struct {
	whitelist    *Whitelist
	untracked    map[string]struct{}
	minUSD       decimal.Decimal
	minProviders uint64
}

// NewVolumeTracker creates a tracker.
func NewVolumeTracker(opts VolumeOptions) *VolumeTracker {
	whitelist := opts.Whitelist
	if whitelist == nil {
		whitelist = NewWhitelist(nil)
	}
	untracked := make(map[string]struct{}, len(opts.UntrackedPairs))
	for _, p := range opts.UntrackedPairs {
		untracked[domain.AddressID(p)] = struct{}{}
	}
	return &VolumeTracker{
		whitelist:    whitelist,
		untracked:    untracked,
		minUSD:       opts.MinimumUSDThreshold,
		minProviders: opts.MinimumLiquidityProviders,
	}
}

// Whitelist returns the routing whitelist.
func (v *VolumeTracker) Whitelist() *Whitelist {
	return v.whitelist
}

// Gate returns the new-pair gate: the USD reserve floor and the provider count
// below which it applies.
func (v *VolumeTracker) Gate() (decimal.Decimal, uint64) {
	return v.minUSD, v.minProviders
}

// TrackedVolumeUSD returns the trusted USD value of a swap. Denylisted pairs and
// pairs with few providers whose whitelisted reserves fall below the USD threshold
// yield zero.
func (v *VolumeTracker) TrackedVolumeUSD(
	amount0 decimal.Decimal, token0 *domain.Token,
	amount1 decimal.Decimal, token1 *domain.Token,
	pair *domain.Pair, ethPrice decimal.Decimal,
) decimal.Decimal {
	if _, ok := v.untracked[pair.ID]; ok {
		return decimal.Zero
	}

	price0 := token0.DerivedETH.Mul(ethPrice)
	price1 := token1.DerivedETH.Mul(ethPrice)
	wl0 := v.whitelist.Contains(token0.ID)
	wl1 := v.whitelist.Contains(token1.ID)

	if pair.LiquidityProviderCount < v.minProviders {
		reserve0USD := pair.Reserve0.Mul(price0)
		reserve1USD := pair.Reserve1.Mul(price1)
		switch {
		case wl0 && wl1:
			if reserve0USD.Add(reserve1USD).LessThan(v.minUSD) {
				return decimal.Zero
			}
		case wl0:
			if reserve0USD.Mul(two).LessThan(v.minUSD) {
				return decimal.Zero
			}
		case wl1:
			if reserve1USD.Mul(two).LessThan(v.minUSD) {
				return decimal.Zero
			}
		}
	}

	switch {
	case wl0 && wl1:
		return amount0.Mul(price0).Add(amount1.Mul(price1)).Mul(half)
	case wl0:
		return amount0.Mul(price0)
	case wl1:
		return amount1.Mul(price1)
	}
	return decimal.Zero
}

// TrackedLiquidityUSD returns the trusted USD value of reserves. A single whitelisted
// side counts double.
func (v *VolumeTracker) TrackedLiquidityUSD(
	amount0 decimal.Decimal, token0 *domain.Token,
	amount1 decimal.Decimal, token1 *domain.Token,
	ethPrice decimal.Decimal,
) decimal.Decimal {
	price0 := token0.DerivedETH.Mul(ethPrice)
	price1 := token1.DerivedETH.Mul(ethPrice)
	wl0 := v.whitelist.Contains(token0.ID)
	wl1 := v.whitelist.Contains(token1.ID)

	switch {
	case wl0 && wl1:
		return amount0.Mul(price0).Add(amount1.Mul(price1))
	case wl0:
		return amount0.Mul(price0).Mul(two)
	case wl1:
		return amount1.Mul(price1).Mul(two)
	}
	return decimal.Zero
}
