package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/observability"
	"amm-indexer/internal/storage"
	"amm-indexer/internal/tokens"
)

// HandlePairCreated bootstraps the factory and bundle on first use, creates missing
// tokens and the pair, and starts tracking the pair's logs. When either token's
// decimals cannot be resolved the pair is not created; only the factory's pair
// count is kept. A PairCreated for a pair that already exists changes nothing.
func (h *Handler) HandlePairCreated(ctx context.Context, ev *domain.PairCreated) error {
	if domain.AddressID(ev.Address) != h.factoryID {
		h.logger.Debug("ignoring PairCreated from foreign factory", zap.String("address", domain.AddressID(ev.Address)))
		return nil
	}

	pairID := domain.AddressID(ev.Pair)
	if _, err := h.store.Pairs.Load(ctx, pairID); err == nil {
		h.logger.Debug("pair already exists", zap.String("pair", pairID), zap.Uint64("block", ev.BlockNumber))
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load pair %s: %w", pairID, err)
	}

	factory, err := h.store.Factories.Load(ctx, h.factoryID)
	if errors.Is(err, storage.ErrNotFound) {
		factory = domain.NewFactory(h.factoryID)
		if err := h.store.Bundles.Save(ctx, &domain.Bundle{ID: domain.BundleID}); err != nil {
			return fmt.Errorf("save bundle: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("load factory: %w", err)
	}

	factory.PairCount++
	if err := h.store.Factories.Save(ctx, factory); err != nil {
		return fmt.Errorf("save factory: %w", err)
	}

	token0, fresh0, err := h.tokenForPair(ctx, ev.Token0, ev)
	if err != nil || token0 == nil {
		return err
	}
	token1, fresh1, err := h.tokenForPair(ctx, ev.Token1, ev)
	if err != nil || token1 == nil {
		return err
	}

	pair := &domain.Pair{
		ID:                   pairID,
		Token0:               token0.ID,
		Token1:               token1.ID,
		CreatedAtTimestamp:   ev.Timestamp,
		CreatedAtBlockNumber: ev.BlockNumber,
	}

	if err := saveAll(ctx, h.saveToken(token0), h.saveToken(token1), h.savePair(pair)); err != nil {
		return err
	}
	for _, fresh := range []bool{fresh0, fresh1} {
		if fresh {
			observability.RecordTokenCreated()
		}
	}
	observability.RecordPairCreated()

	if h.tracker != nil {
		if err := h.tracker.TrackPair(ctx, ev.Pair, ev.EventMeta); err != nil {
			return fmt.Errorf("track pair: %w", err)
		}
	}

	h.logger.Info("pair created",
		zap.String("pair", pair.ID),
		zap.String("token0", token0.ID),
		zap.String("token1", token1.ID),
		zap.Uint64("block", ev.BlockNumber))
	return nil
}

// tokenForPair loads the token or builds an unsaved one from on-chain metadata,
// reporting whether it is new. It returns a nil token when the decimals are
// unresolvable.
func (h *Handler) tokenForPair(ctx context.Context, addr common.Address, ev *domain.PairCreated) (*domain.Token, bool, error) {
	id := domain.AddressID(addr)
	token, err := h.store.Tokens.Load(ctx, id)
	if err == nil {
		return token, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("load token: %w", err)
	}

	md, err := h.tokens.Fetch(ctx, addr, ev.BlockNumber)
	if errors.Is(err, tokens.ErrNullDecimals) {
		h.logger.Debug("token decimals unresolvable, skipping pair",
			zap.String("token", id), zap.String("pair", domain.AddressID(ev.Pair)), zap.Error(err))
		observability.RecordTokenSkipped("null_decimals")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch token %s: %w", id, err)
	}

	return &domain.Token{
		ID:          id,
		Symbol:      md.Symbol,
		Name:        md.Name,
		Decimals:    md.Decimals,
		TotalSupply: md.TotalSupply,
	}, true, nil
}
