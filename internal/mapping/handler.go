// Package mapping applies decoded pool and factory events to the entity store:
// LP-token transfer correlation, mint and burn completion, reserve sync, swaps and
// pair bootstrap.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/ledger"
	"amm-indexer/internal/observability"
	"amm-indexer/internal/pricing"
	"amm-indexer/internal/storage"
	"amm-indexer/internal/tokens"
)

// PriceOracle prices ETH in USD and tokens in ETH.
type PriceOracle interface {
	ReferencePrice(ctx context.Context) (decimal.Decimal, error)
	DerivedETH(ctx context.Context, token common.Address, block uint64) (decimal.Decimal, error)
}

// TokenFetcher resolves metadata for tokens seen for the first time.
type TokenFetcher interface {
	Fetch(ctx context.Context, token common.Address, block uint64) (*tokens.Metadata, error)
}

// PairTracker is told about every pair whose bootstrap succeeded so that its logs
// are followed from the creation event onward.
type PairTracker interface {
	TrackPair(ctx context.Context, pair common.Address, created domain.EventMeta) error
}

// Options configures a Handler.
type Options struct {
	Store   *storage.EntityStore
	Periods storage.PeriodStore // optional
	Oracle  PriceOracle
	Volume  *pricing.VolumeTracker
	Tokens  TokenFetcher
	Tracker PairTracker // optional

	// Factory is the factory contract; its address is the Factory entity id.
	Factory common.Address

	// BootstrapLiquidity is the raw minimum-liquidity amount minted once per pool.
	BootstrapLiquidity *big.Int

	Logger *zap.Logger
}

// Handler applies events to the entity store. It is not safe for concurrent use;
// events must be delivered one at a time in (block, tx index, log index) order.
type Handler struct {
	store     *storage.EntityStore
	periods   storage.PeriodStore
	oracle    PriceOracle
	volume    *pricing.VolumeTracker
	tokens    TokenFetcher
	tracker   PairTracker
	ledger    *ledger.Ledger
	factoryID string
	bootstrap *big.Int
	logger    *zap.Logger
}

// NewHandler creates a handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bootstrap := opts.BootstrapLiquidity
	if bootstrap == nil {
		bootstrap = big.NewInt(1000)
	}
	volume := opts.Volume
	if volume == nil {
		volume = pricing.NewVolumeTracker(pricing.DefaultVolumeOptions(nil))
		logger.Warn("no volume tracker configured, using default gate",
			zap.String("min_usd", pricing.DefaultMinimumUSDThreshold.String()),
			zap.Uint64("min_providers", pricing.DefaultMinimumLiquidityProviders))
	}
	return &Handler{
		store:     opts.Store,
		periods:   opts.Periods,
		oracle:    opts.Oracle,
		volume:    volume,
		tokens:    opts.Tokens,
		tracker:   opts.Tracker,
		ledger:    ledger.New(opts.Store.Transactions),
		factoryID: domain.AddressID(opts.Factory),
		bootstrap: bootstrap,
		logger:    logger,
	}
}

// Handle dispatches one event.
func (h *Handler) Handle(ctx context.Context, ev domain.Event) error {
	start := time.Now()

	var err error
	switch e := ev.(type) {
	case *domain.PairCreated:
		err = h.HandlePairCreated(ctx, e)
	case *domain.Transfer:
		err = h.HandleTransfer(ctx, e)
	case *domain.Sync:
		err = h.HandleSync(ctx, e)
	case *domain.MintEvent:
		err = h.HandleMint(ctx, e)
	case *domain.BurnEvent:
		err = h.HandleBurn(ctx, e)
	case *domain.SwapEvent:
		err = h.HandleSwap(ctx, e)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}

	kind := string(ev.Kind())
	if err != nil {
		observability.RecordEventError(kind, errorType(err))
		return err
	}
	observability.RecordEventProcessed(kind, time.Since(start).Seconds())
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUnknownPair):
		return "unknown_pair"
	case IsFatal(err):
		return "invariant"
	default:
		return "internal"
	}
}

func (h *Handler) loadFactory(ctx context.Context) (*domain.Factory, error) {
	f, err := h.store.Factories.Load(ctx, h.factoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrMissingFactory
	}
	if err != nil {
		return nil, fmt.Errorf("load factory: %w", err)
	}
	return f, nil
}

func (h *Handler) loadBundle(ctx context.Context) (*domain.Bundle, error) {
	b, err := h.store.Bundles.Load(ctx, domain.BundleID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrMissingBundle
	}
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	return b, nil
}

func (h *Handler) loadPair(ctx context.Context, addr common.Address) (*domain.Pair, error) {
	id := domain.AddressID(addr)
	p, err := h.store.Pairs.Load(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load pair: %w", err)
	}
	return p, nil
}

// loadTokens returns both tokens of the pair, or ok=false when either is missing.
func (h *Handler) loadTokens(ctx context.Context, pair *domain.Pair) (token0, token1 *domain.Token, ok bool, err error) {
	token0, err = h.store.Tokens.Load(ctx, pair.Token0)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, false, fmt.Errorf("load token0: %w", err)
	}
	if err != nil {
		h.logger.Warn("pair token missing", zap.String("pair", pair.ID), zap.String("token", pair.Token0))
		return nil, nil, false, nil
	}

	token1, err = h.store.Tokens.Load(ctx, pair.Token1)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, false, fmt.Errorf("load token1: %w", err)
	}
	if err != nil {
		h.logger.Warn("pair token missing", zap.String("pair", pair.ID), zap.String("token", pair.Token1))
		return nil, nil, false, nil
	}
	return token0, token1, true, nil
}

// ensureUser creates the user entity on first sight.
func (h *Handler) ensureUser(ctx context.Context, addr common.Address) error {
	id := domain.AddressID(addr)
	_, err := h.store.Users.Load(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load user: %w", err)
	}
	if err := h.store.Users.Save(ctx, &domain.User{ID: id}); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// saveAll persists entities in order, stopping at the first failure.
func saveAll(ctx context.Context, saves ...func(context.Context) error) error {
	for _, save := range saves {
		if err := save(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) savePair(p *domain.Pair) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := h.store.Pairs.Save(ctx, p); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}
		return nil
	}
}

func (h *Handler) saveToken(t *domain.Token) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := h.store.Tokens.Save(ctx, t); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		return nil
	}
}

func (h *Handler) saveFactory(f *domain.Factory) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := h.store.Factories.Save(ctx, f); err != nil {
			return fmt.Errorf("save factory: %w", err)
		}
		return nil
	}
}
