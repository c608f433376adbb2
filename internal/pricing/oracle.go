package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"amm-indexer/internal/chain"
	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage"
)

// ReferencePool is a stablecoin/WETH pair quoted for the ETH/USD price.
type ReferencePool struct {
	Pair           common.Address
	StableIsToken0 bool
}

// OracleOptions configures the price oracle.
type OracleOptions struct {
	Store               *storage.EntityStore
	Pairs               chain.PairLookup
	WETH                common.Address
	ReferencePools      []ReferencePool
	Whitelist           *Whitelist
	MinimumLiquidityETH decimal.Decimal
	Logger              *zap.Logger
}

// Oracle computes the ETH/USD reference price and per-token ETH prices.
type Oracle struct {
	store        *storage.EntityStore
	pairs        chain.PairLookup
	weth         common.Address
	refPools     []ReferencePool
	whitelist    *Whitelist
	minLiquidity decimal.Decimal
	logger       *zap.Logger
}

// NewOracle creates an oracle.
func NewOracle(opts OracleOptions) *Oracle {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	whitelist := opts.Whitelist
	if whitelist == nil {
		whitelist = NewWhitelist(nil)
	}
	return &Oracle{
		store:        opts.Store,
		pairs:        opts.Pairs,
		weth:         opts.WETH,
		refPools:     opts.ReferencePools,
		whitelist:    whitelist,
		minLiquidity: opts.MinimumLiquidityETH,
		logger:       logger,
	}
}

// ReferencePrice returns USD per ETH as the average of the reference pools'
// stablecoin quotes weighted by each pool's WETH reserve. A single indexed pool is
// used as is; with none indexed the price is zero.
func (o *Oracle) ReferencePrice(ctx context.Context) (decimal.Decimal, error) {
	var (
		prices  []decimal.Decimal
		weights []decimal.Decimal
	)

	for _, ref := range o.refPools {
		pair, err := o.store.Pairs.Load(ctx, domain.AddressID(ref.Pair))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("load reference pair: %w", err)
		}

		if ref.StableIsToken0 {
			prices = append(prices, pair.Token0Price)
			weights = append(weights, pair.Reserve1)
		} else {
			prices = append(prices, pair.Token1Price)
			weights = append(weights, pair.Reserve0)
		}
	}

	switch len(prices) {
	case 0:
		return decimal.Zero, nil
	case 1:
		return prices[0], nil
	}

	total := decimal.Zero
	weighted := decimal.Zero
	for i := range prices {
		total = total.Add(weights[i])
		weighted = weighted.Add(prices[i].Mul(weights[i]))
	}
	return domain.SafeDiv(weighted, total), nil
}

// DerivedETH returns the token's price in ETH. WETH is 1. Other tokens are priced
// through the first whitelisted pool, in whitelist order, whose ReserveETH exceeds the
// liquidity threshold. Only direct pools are considered; zero means no qualifying pool.
func (o *Oracle) DerivedETH(ctx context.Context, token common.Address, block uint64) (decimal.Decimal, error) {
	if token == o.weth {
		return decimal.NewFromInt(1), nil
	}

	tokenID := domain.AddressID(token)
	for _, wl := range o.whitelist.Tokens() {
		if wl == token {
			continue
		}

		pairAddr, err := o.pairs.GetPair(ctx, token, wl, block)
		if errors.Is(err, chain.ErrReverted) {
			o.logger.Debug("getPair reverted",
				zap.String("token", tokenID), zap.String("whitelist", domain.AddressID(wl)))
			continue
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("lookup pair: %w", err)
		}
		if pairAddr == domain.ZeroAddress {
			continue
		}

		pair, err := o.store.Pairs.Load(ctx, domain.AddressID(pairAddr))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("load pair: %w", err)
		}
		if !pair.ReserveETH.GreaterThan(o.minLiquidity) {
			continue
		}

		var price decimal.Decimal
		var counterID string
		switch tokenID {
		case pair.Token0:
			price, counterID = pair.Token1Price, pair.Token1
		case pair.Token1:
			price, counterID = pair.Token0Price, pair.Token0
		default:
			continue
		}

		counter, err := o.store.Tokens.Load(ctx, counterID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("load token: %w", err)
		}
		return price.Mul(counter.DerivedETH), nil
	}

	return decimal.Zero, nil
}
