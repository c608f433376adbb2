package mapping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"amm-indexer/internal/domain"
)

// HandleSwap records a trade: token, pair and factory volumes, the Swap entity and
// the period buckets. Tracked USD counts only whitelist-priced volume; the untracked
// figure prices both legs through derived ETH.
func (h *Handler) HandleSwap(ctx context.Context, ev *domain.SwapEvent) error {
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
	bundle, err := h.loadBundle(ctx)
	if err != nil {
		return err
	}

	amount0In := domain.ConvertTokenToDecimal(ev.Amount0In, token0.Decimals)
	amount1In := domain.ConvertTokenToDecimal(ev.Amount1In, token1.Decimals)
	amount0Out := domain.ConvertTokenToDecimal(ev.Amount0Out, token0.Decimals)
	amount1Out := domain.ConvertTokenToDecimal(ev.Amount1Out, token1.Decimals)
	amount0Total := amount0Out.Add(amount0In)
	amount1Total := amount1Out.Add(amount1In)

	derivedETH := token1.DerivedETH.Mul(amount1Total).
		Add(token0.DerivedETH.Mul(amount0Total)).
		Mul(decimal.New(5, -1))
	derivedUSD := derivedETH.Mul(bundle.ETHPrice)

	trackedUSD := h.volume.TrackedVolumeUSD(amount0Total, token0, amount1Total, token1, pair, bundle.ETHPrice)
	trackedETH := domain.SafeDiv(trackedUSD, bundle.ETHPrice)

	token0.TradeVolume = token0.TradeVolume.Add(amount0Total)
	token0.TradeVolumeUSD = token0.TradeVolumeUSD.Add(trackedUSD)
	token0.UntrackedVolumeUSD = token0.UntrackedVolumeUSD.Add(derivedUSD)
	token0.TxCount++

	token1.TradeVolume = token1.TradeVolume.Add(amount1Total)
	token1.TradeVolumeUSD = token1.TradeVolumeUSD.Add(trackedUSD)
	token1.UntrackedVolumeUSD = token1.UntrackedVolumeUSD.Add(derivedUSD)
	token1.TxCount++

	pair.VolumeUSD = pair.VolumeUSD.Add(trackedUSD)
	pair.VolumeToken0 = pair.VolumeToken0.Add(amount0Total)
	pair.VolumeToken1 = pair.VolumeToken1.Add(amount1Total)
	pair.UntrackedVolumeUSD = pair.UntrackedVolumeUSD.Add(derivedUSD)
	pair.TxCount++

	factory.TotalVolumeUSD = factory.TotalVolumeUSD.Add(trackedUSD)
	factory.TotalVolumeETH = factory.TotalVolumeETH.Add(trackedETH)
	factory.UntrackedVolumeUSD = factory.UntrackedVolumeUSD.Add(derivedUSD)
	factory.TxCount++

	if err := saveAll(ctx, h.savePair(pair), h.saveToken(token0), h.saveToken(token1), h.saveFactory(factory)); err != nil {
		return err
	}

	tx, err := h.ledger.GetOrCreate(ctx, &ev.EventMeta)
	if err != nil {
		return err
	}

	amountUSD := trackedUSD
	if trackedUSD.IsZero() {
		amountUSD = derivedUSD
	}
	swap := &domain.Swap{
		ID:          tx.Swaps.NextID(tx.ID),
		Transaction: tx.ID,
		Timestamp:   tx.Timestamp,
		Pair:        pair.ID,
		Sender:      ev.Sender,
		From:        ev.TxFrom,
		Amount0In:   amount0In,
		Amount1In:   amount1In,
		Amount0Out:  amount0Out,
		Amount1Out:  amount1Out,
		To:          ev.To,
		LogIndex:    uint64(ev.LogIndex),
		AmountUSD:   amountUSD,
	}
	if err := h.store.Swaps.Save(ctx, swap); err != nil {
		return fmt.Errorf("save swap: %w", err)
	}
	tx.Swaps = tx.Swaps.Append(swap.ID)
	if err := h.ledger.Save(ctx, tx); err != nil {
		return err
	}

	periods := newPeriodBatch(&ev.EventMeta)

	pairDay, pairHour := periods.pairDeltas(pair)
	for _, d := range []*domain.PeriodDelta{&pairDay, &pairHour} {
		d.VolumeToken0 = amount0Total
		d.VolumeToken1 = amount1Total
		d.VolumeUSD = trackedUSD
		d.UntrackedVolumeUSD = derivedUSD
	}

	factoryDay := periods.factoryDelta(factory)
	factoryDay.VolumeUSD = trackedUSD
	factoryDay.VolumeETH = trackedETH
	factoryDay.UntrackedVolumeUSD = derivedUSD

	token0Day := periods.tokenDelta(token0, bundle.ETHPrice)
	token0Day.VolumeToken0 = amount0Total
	token0Day.VolumeETH = amount0Total.Mul(token0.DerivedETH)
	token0Day.VolumeUSD = token0Day.VolumeETH.Mul(bundle.ETHPrice)

	token1Day := periods.tokenDelta(token1, bundle.ETHPrice)
	token1Day.VolumeToken0 = amount1Total
	token1Day.VolumeETH = amount1Total.Mul(token1.DerivedETH)
	token1Day.VolumeUSD = token1Day.VolumeETH.Mul(bundle.ETHPrice)

	periods.add(pairDay, pairHour, factoryDay, token0Day, token1Day)
	return h.recordPeriods(ctx, periods)
}
