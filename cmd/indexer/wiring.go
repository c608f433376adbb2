package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"amm-indexer/internal/chain"
	"amm-indexer/internal/config"
	"amm-indexer/internal/ingestion"
	"amm-indexer/internal/mapping"
	"amm-indexer/internal/pricing"
	"amm-indexer/internal/storage"
	"amm-indexer/internal/storage/clickhouse"
	"amm-indexer/internal/storage/memory"
	"amm-indexer/internal/storage/migrations"
	"amm-indexer/internal/storage/postgres"
	"amm-indexer/internal/tokens"
)

const pairLookupCacheSize = 4096

type buildOptions struct {
	cfg           *config.Config
	rpc           *chain.HTTPClient
	useMemory     bool
	postgresDSN   string
	clickhouseDSN string
	logger        *zap.Logger
}

// indexer holds the wired components of one process.
type indexer struct {
	cfg         *config.Config
	store       *storage.EntityStore
	periods     storage.PeriodStore
	checkpoints storage.CheckpointStore
	stage       *storage.Stage
	processor   *ingestion.Processor

	closers []func()
	closed  bool
}

func (a *indexer) cleanup() {
	if a.closed {
		return
	}
	a.closed = true
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, opts buildOptions) (*indexer, error) {
	logger := opts.logger
	cfg := opts.cfg
	app := &indexer{cfg: cfg}

	if opts.useMemory {
		logger.Info("using in-memory storage")
		app.store = memory.NewEntityStore()
		app.periods = memory.NewPeriodStore()
		app.checkpoints = memory.NewCheckpointStore()
		app.stage = storage.NewStage(app.store, app.periods, memory.NewCommitter(app.store, app.checkpoints))
	} else {
		if err := openDatabases(ctx, app, opts); err != nil {
			app.cleanup()
			return nil, err
		}
	}
	// Ingestion writes go through the stage; readers use app.store directly.
	staged := app.stage.Store()

	reader := chain.NewContractReader(opts.rpc)
	pairLookup, err := chain.NewCachedPairLookup(reader, cfg.Factory(), pairLookupCacheSize)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("create pair lookup: %w", err)
	}

	whitelist := pricing.NewWhitelist(config.Addresses(cfg.Whitelist))

	refs := make([]pricing.ReferencePool, 0, len(cfg.ReferencePools))
	for _, rp := range cfg.ReferencePools {
		refs = append(refs, pricing.ReferencePool{
			Pair:           common.HexToAddress(rp.Address),
			StableIsToken0: rp.StableIsToken0,
		})
	}

	oracle := pricing.NewOracle(pricing.OracleOptions{
		Store:               staged,
		Pairs:               pairLookup,
		WETH:                cfg.WETH(),
		ReferencePools:      refs,
		Whitelist:           whitelist,
		MinimumLiquidityETH: cfg.MinimumLiquidityThresholdETH(),
		Logger:              logger.Named("pricing"),
	})

	volume := pricing.NewVolumeTracker(pricing.VolumeOptions{
		Whitelist:                 whitelist,
		UntrackedPairs:            config.Addresses(cfg.UntrackedPairs),
		MinimumUSDThreshold:       cfg.MinimumUSDThresholdNewPairs(),
		MinimumLiquidityProviders: cfg.Settings.MinimumLiquidityProviders,
	})

	static := make(map[common.Address]tokens.StaticInfo, len(cfg.StaticTokens))
	for _, st := range cfg.StaticTokens {
		static[common.HexToAddress(st.Address)] = tokens.StaticInfo{
			Symbol:   st.Symbol,
			Name:     st.Name,
			Decimals: st.Decimals,
		}
	}
	fetcher := tokens.NewFetcher(tokens.Options{
		Reader:          reader,
		Static:          static,
		SkipTotalSupply: config.Addresses(cfg.SkipTotalSupply),
		Logger:          logger.Named("tokens"),
	})

	proc, err := ingestion.NewProcessor(ingestion.ProcessorOptions{
		Source:      opts.rpc,
		Checkpoints: app.checkpoints,
		Factory:     cfg.Factory(),
		Logger:      logger.Named("processor"),
	})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("create processor: %w", err)
	}

	handler := mapping.NewHandler(mapping.Options{
		Store:              staged,
		Periods:            app.stage.Periods(),
		Oracle:             oracle,
		Volume:             volume,
		Tokens:             fetcher,
		Tracker:            proc,
		Factory:            cfg.Factory(),
		BootstrapLiquidity: big.NewInt(cfg.Settings.BootstrapLiquidity),
		Logger:             logger.Named("mapping"),
	})
	proc.SetHandler(handler)

	if err := proc.Restore(ctx); err != nil {
		app.cleanup()
		return nil, err
	}
	app.processor = proc

	logger.Info("indexer wired",
		zap.String("factory", cfg.FactoryAddress),
		zap.String("weth", cfg.WETHAddress),
		zap.Int("whitelist", whitelist.Len()),
		zap.Int("reference_pools", len(refs)),
		zap.Int("tracked_pairs", len(proc.TrackedPairs())),
		zap.String("min_usd_new_pairs", cfg.Settings.MinimumUSDThresholdNewPairs),
		zap.Uint64("min_liquidity_providers", cfg.Settings.MinimumLiquidityProviders))
	return app, nil
}

// openDatabases connects PostgreSQL and ClickHouse and applies their migrations.
func openDatabases(ctx context.Context, app *indexer, opts buildOptions) error {
	logger := opts.logger

	pool, err := postgres.NewPool(ctx, opts.postgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	app.closers = append(app.closers, pool.Close)

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info("postgres schema ready", zap.Strings("applied", applied))

	conn, applied, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
	if err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	app.closers = append(app.closers, func() { _ = conn.Close() })
	logger.Info("clickhouse schema ready", zap.Strings("applied", applied))

	app.store = postgres.NewEntityStore(pool)
	app.periods = clickhouse.NewPeriodStore(conn)
	app.checkpoints = postgres.NewCheckpointStore(pool)
	app.stage = storage.NewStage(app.store, app.periods, postgres.NewCommitter(pool))
	return nil
}
