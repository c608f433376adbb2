package mapping

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/observability"
)

// HandleSync applies new reserves to the pair, refreshes the ETH/USD bundle and
// both tokens' ETH prices, and moves the pair's tracked liquidity in the factory
// aggregate from its previous to its new value.
func (h *Handler) HandleSync(ctx context.Context, ev *domain.Sync) error {
	pair, err := h.loadPair(ctx, ev.Address)
	if err != nil {
		return err
	}
	token0, token1, ok, err := h.loadTokens(ctx, pair)
	if err != nil || !ok {
		return err
	}
	factory, err := h.loadFactory(ctx)
	if err != nil {
		return err
	}

	// Remove the pair's previous contribution.
	factory.TotalLiquidityETH = factory.TotalLiquidityETH.Sub(pair.TrackedReserveETH)
	token0.TotalLiquidity = token0.TotalLiquidity.Sub(pair.Reserve0)
	token1.TotalLiquidity = token1.TotalLiquidity.Sub(pair.Reserve1)

	pair.Reserve0 = domain.ConvertTokenToDecimal(ev.Reserve0, token0.Decimals)
	pair.Reserve1 = domain.ConvertTokenToDecimal(ev.Reserve1, token1.Decimals)
	pair.Token0Price = domain.SafeDiv(pair.Reserve0, pair.Reserve1)
	pair.Token1Price = domain.SafeDiv(pair.Reserve1, pair.Reserve0)

	// The oracle reads this pair from the store when it is a reference or routing pool.
	if err := h.store.Pairs.Save(ctx, pair); err != nil {
		return fmt.Errorf("save pair: %w", err)
	}

	bundle, err := h.loadBundle(ctx)
	if err != nil {
		return err
	}
	bundle.ETHPrice, err = h.oracle.ReferencePrice(ctx)
	if err != nil {
		return fmt.Errorf("reference price: %w", err)
	}
	if err := h.store.Bundles.Save(ctx, bundle); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	observability.UpdateETHPrice(bundle.ETHPrice.InexactFloat64())

	// Both prices are derived before either token is saved.
	derived0, err := h.oracle.DerivedETH(ctx, common.HexToAddress(token0.ID), ev.BlockNumber)
	if err != nil {
		return fmt.Errorf("derive token0 price: %w", err)
	}
	derived1, err := h.oracle.DerivedETH(ctx, common.HexToAddress(token1.ID), ev.BlockNumber)
	if err != nil {
		return fmt.Errorf("derive token1 price: %w", err)
	}
	token0.DerivedETH = derived0
	token1.DerivedETH = derived1
	if err := saveAll(ctx, h.saveToken(token0), h.saveToken(token1)); err != nil {
		return err
	}

	trackedLiquidityETH := decimal.Zero
	if !bundle.ETHPrice.IsZero() {
		trackedUSD := h.volume.TrackedLiquidityUSD(pair.Reserve0, token0, pair.Reserve1, token1, bundle.ETHPrice)
		trackedLiquidityETH = domain.SafeDiv(trackedUSD, bundle.ETHPrice)
	}

	pair.TrackedReserveETH = trackedLiquidityETH
	pair.ReserveETH = pair.Reserve0.Mul(token0.DerivedETH).Add(pair.Reserve1.Mul(token1.DerivedETH))
	pair.ReserveUSD = pair.ReserveETH.Mul(bundle.ETHPrice)

	factory.TotalLiquidityETH = factory.TotalLiquidityETH.Add(trackedLiquidityETH)
	factory.TotalLiquidityUSD = factory.TotalLiquidityETH.Mul(bundle.ETHPrice)

	token0.TotalLiquidity = token0.TotalLiquidity.Add(pair.Reserve0)
	token1.TotalLiquidity = token1.TotalLiquidity.Add(pair.Reserve1)

	return saveAll(ctx, h.savePair(pair), h.saveFactory(factory), h.saveToken(token0), h.saveToken(token1))
}
