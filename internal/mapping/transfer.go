package mapping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/ledger"
)

// HandleTransfer correlates an LP-token transfer into the transaction's logical
// Mint and Burn records.
//
// A transfer from the zero address opens a Mint unless the previous one is still
// waiting for its Mint log. A transfer into the pair opens a Burn awaiting the
// pair's own burn transfer, which either completes that Burn or opens a fresh one.
// When the burn transfer follows an incomplete Mint, that Mint was the protocol fee
// mint: it is folded into the Burn's FeeTo/FeeLiquidity and deleted.
func (h *Handler) HandleTransfer(ctx context.Context, ev *domain.Transfer) error {
	if ev.From == domain.ZeroAddress && ev.Value != nil && ev.Value.Cmp(h.bootstrap) == 0 {
		return nil
	}

	if _, err := h.loadFactory(ctx); err != nil {
		return err
	}
	pair, err := h.loadPair(ctx, ev.Address)
	if err != nil {
		return err
	}
	if err := h.ensureUser(ctx, ev.From); err != nil {
		return err
	}
	if err := h.ensureUser(ctx, ev.To); err != nil {
		return err
	}
	pairAddr := ev.Address

	value := domain.ConvertTokenToDecimal(ev.Value, domain.LPTokenDecimals)

	tx, err := h.ledger.GetOrCreate(ctx, &ev.EventMeta)
	if err != nil {
		return err
	}

	if ev.From == domain.ZeroAddress {
		pair.TotalSupply = pair.TotalSupply.Add(value)
		if err := h.store.Pairs.Save(ctx, pair); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}

		complete, err := h.lastMintComplete(ctx, tx)
		if err != nil {
			return err
		}
		if complete {
			mint := &domain.Mint{
				ID:          tx.Mints.NextID(tx.ID),
				Transaction: tx.ID,
				Timestamp:   tx.Timestamp,
				Pair:        pair.ID,
				To:          ev.To,
				Liquidity:   value,
			}
			if err := h.store.Mints.Save(ctx, mint); err != nil {
				return fmt.Errorf("save mint: %w", err)
			}
			tx.Mints = tx.Mints.Append(mint.ID)
		}
	}

	if ev.To == pairAddr {
		sender, to := ev.From, ev.To
		burn := &domain.Burn{
			ID:            tx.Burns.NextID(tx.ID),
			Transaction:   tx.ID,
			Timestamp:     tx.Timestamp,
			Pair:          pair.ID,
			Liquidity:     value,
			Sender:        &sender,
			To:            &to,
			NeedsComplete: true,
		}
		if err := h.store.Burns.Save(ctx, burn); err != nil {
			return fmt.Errorf("save burn: %w", err)
		}
		tx.Burns = tx.Burns.Append(burn.ID)
	}

	if ev.From == pairAddr && ev.To == domain.ZeroAddress {
		if err := h.completeBurnTransfer(ctx, tx, pair, value); err != nil {
			return err
		}
	}

	return h.ledger.Save(ctx, tx)
}

// completeBurnTransfer handles the pair burning its own LP tokens.
func (h *Handler) completeBurnTransfer(ctx context.Context, tx *domain.Transaction, pair *domain.Pair, value decimal.Decimal) error {
	pair.TotalSupply = pair.TotalSupply.Sub(value)
	if err := h.store.Pairs.Save(ctx, pair); err != nil {
		return fmt.Errorf("save pair: %w", err)
	}

	pending, found, err := ledger.LastRecord(ctx, h.store.Burns, tx.Burns)
	if err != nil {
		return err
	}

	var burn *domain.Burn
	reused := found && pending.NeedsComplete
	if reused {
		burn = pending
		burn.NeedsComplete = false
	} else {
		burn = &domain.Burn{
			ID:          tx.Burns.NextID(tx.ID),
			Transaction: tx.ID,
			Timestamp:   tx.Timestamp,
			Pair:        pair.ID,
			Liquidity:   value,
		}
	}

	// Only the most recent mint is considered for fee absorption.
	feeMint, found, err := ledger.LastRecord(ctx, h.store.Mints, tx.Mints)
	if err != nil {
		return err
	}
	if found && !feeMint.IsComplete() {
		to := feeMint.To
		burn.FeeTo = &to
		burn.FeeLiquidity = decimal.NewNullDecimal(feeMint.Liquidity)
		if err := h.store.Mints.Remove(ctx, feeMint.ID); err != nil {
			return fmt.Errorf("remove fee mint: %w", err)
		}
		tx.Mints = tx.Mints.Pop()
		h.logger.Debug("fee mint absorbed into burn",
			zap.String("mint", feeMint.ID), zap.String("burn", burn.ID))
	}

	if err := h.store.Burns.Save(ctx, burn); err != nil {
		return fmt.Errorf("save burn: %w", err)
	}
	if reused {
		tx.Burns = tx.Burns.ReplaceLast(burn.ID)
	} else {
		tx.Burns = tx.Burns.Append(burn.ID)
	}
	return nil
}

// lastMintComplete reports whether a new Mint may be opened: the list is empty or
// its last record has been completed by a Mint log. A dangling id counts as complete.
func (h *Handler) lastMintComplete(ctx context.Context, tx *domain.Transaction) (bool, error) {
	mint, found, err := ledger.LastRecord(ctx, h.store.Mints, tx.Mints)
	if err != nil {
		return false, err
	}
	return !found || mint.IsComplete(), nil
}
