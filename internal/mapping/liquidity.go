package mapping

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/ledger"
)

// HandleMint completes the transaction's last Mint with the pool's Mint log.
// A Mint log without a preceding transfer is skipped.
func (h *Handler) HandleMint(ctx context.Context, ev *domain.MintEvent) error {
	tx, found, err := h.ledger.Find(ctx, &ev.EventMeta)
	if err != nil || !found {
		return err
	}
	mint, found, err := ledger.LastRecord(ctx, h.store.Mints, tx.Mints)
	if err != nil {
		return err
	}
	if !found {
		h.logger.Debug("mint log without pending mint", zap.String("tx", tx.ID))
		return nil
	}

	amounts, err := h.applyLiquidity(ctx, &ev.EventMeta, ev.Amount0, ev.Amount1)
	if err != nil || amounts == nil {
		return err
	}

	sender := ev.Sender
	logIndex := uint64(ev.LogIndex)
	mint.Sender = &sender
	mint.Amount0 = decimal.NewNullDecimal(amounts.amount0)
	mint.Amount1 = decimal.NewNullDecimal(amounts.amount1)
	mint.LogIndex = &logIndex
	mint.AmountUSD = decimal.NewNullDecimal(amounts.usd)
	if err := h.store.Mints.Save(ctx, mint); err != nil {
		return fmt.Errorf("save mint: %w", err)
	}

	return h.recordPeriods(ctx, amounts.periods)
}

// HandleBurn completes the transaction's last Burn with the pool's Burn log.
// A Burn log without a preceding transfer is skipped.
func (h *Handler) HandleBurn(ctx context.Context, ev *domain.BurnEvent) error {
	tx, found, err := h.ledger.Find(ctx, &ev.EventMeta)
	if err != nil || !found {
		return err
	}
	burn, found, err := ledger.LastRecord(ctx, h.store.Burns, tx.Burns)
	if err != nil {
		return err
	}
	if !found {
		h.logger.Debug("burn log without pending burn", zap.String("tx", tx.ID))
		return nil
	}

	amounts, err := h.applyLiquidity(ctx, &ev.EventMeta, ev.Amount0, ev.Amount1)
	if err != nil || amounts == nil {
		return err
	}

	logIndex := uint64(ev.LogIndex)
	burn.Amount0 = decimal.NewNullDecimal(amounts.amount0)
	burn.Amount1 = decimal.NewNullDecimal(amounts.amount1)
	burn.LogIndex = &logIndex
	burn.AmountUSD = decimal.NewNullDecimal(amounts.usd)
	if err := h.store.Burns.Save(ctx, burn); err != nil {
		return fmt.Errorf("save burn: %w", err)
	}

	return h.recordPeriods(ctx, amounts.periods)
}

type liquidityAmounts struct {
	amount0 decimal.Decimal
	amount1 decimal.Decimal
	usd     decimal.Decimal
	periods *periodBatch
}

// applyLiquidity bumps transaction counters on both tokens, the pair and the factory
// and prices the amounts. It returns nil when a token is missing.
func (h *Handler) applyLiquidity(ctx context.Context, meta *domain.EventMeta, raw0, raw1 *big.Int) (*liquidityAmounts, error) {
	pair, err := h.loadPair(ctx, meta.Address)
	if err != nil {
		return nil, err
	}
	factory, err := h.loadFactory(ctx)
	if err != nil {
		return nil, err
	}
	token0, token1, ok, err := h.loadTokens(ctx, pair)
	if err != nil || !ok {
		return nil, err
	}
	bundle, err := h.loadBundle(ctx)
	if err != nil {
		return nil, err
	}

	amount0 := domain.ConvertTokenToDecimal(raw0, token0.Decimals)
	amount1 := domain.ConvertTokenToDecimal(raw1, token1.Decimals)

	token0.TxCount++
	token1.TxCount++
	pair.TxCount++
	factory.TxCount++

	usd := token1.DerivedETH.Mul(amount1).
		Add(token0.DerivedETH.Mul(amount0)).
		Mul(bundle.ETHPrice)

	if err := saveAll(ctx, h.saveToken(token0), h.saveToken(token1), h.savePair(pair), h.saveFactory(factory)); err != nil {
		return nil, err
	}

	periods := newPeriodBatch(meta)
	day, hour := periods.pairDeltas(pair)
	periods.add(day, hour,
		periods.factoryDelta(factory),
		periods.tokenDelta(token0, bundle.ETHPrice),
		periods.tokenDelta(token1, bundle.ETHPrice),
	)

	return &liquidityAmounts{amount0: amount0, amount1: amount1, usd: usd, periods: periods}, nil
}
