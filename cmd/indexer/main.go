// Command indexer follows a Uniswap-V2 style factory and its pairs, maintaining
// the entity store, period buckets and price bundle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"amm-indexer/internal/api"
	"amm-indexer/internal/chain"
	"amm-indexer/internal/config"
	"amm-indexer/internal/ingestion"
	"amm-indexer/internal/observability"
)

func main() {
	// Parse flags (env vars as defaults)
	mode := flag.String("mode", "live", "Ingestion mode: live or backfill")
	configPath := flag.String("config", "", "Network YAML file (built-in defaults when empty)")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("ETH_RPC_ENDPOINT"), "Ethereum JSON-RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ETH_WS_ENDPOINT"), "Ethereum WebSocket endpoint (optional, live mode)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	fromBlock := flag.Uint64("from-block", 0, "Start block for backfill (default: config startBlock)")
	toBlock := flag.Uint64("to-block", 0, "End block for backfill (default: head minus confirmations)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	apiAddr := flag.String("api-addr", "", "Serve the read API from this process (empty to disable)")
	debug := flag.Bool("debug", false, "Development logging")

	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	rpc := chain.NewHTTPClient(*rpcEndpoint)

	app, err := build(ctx, buildOptions{
		cfg:           cfg,
		rpc:           rpc,
		useMemory:     *useMemory,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		logger:        logger,
	})
	if err != nil {
		logger.Fatal("build indexer", zap.Error(err))
	}
	defer app.cleanup()

	if *apiAddr != "" {
		srv := api.NewServer(api.ServerOptions{
			Store:   app.store,
			Periods: app.periods,
			Factory: cfg.Factory(),
			Addr:    *apiAddr,
			Logger:  logger.Named("api"),
		})
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("api server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	switch *mode {
	case "live":
		err = runLive(ctx, logger, app, rpc, *wsEndpoint)
	case "backfill":
		err = runBackfill(ctx, logger, app, rpc, *fromBlock, *toBlock)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}

	// Signal completion to shutdown handler
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("indexer stopped", zap.Error(err))
		app.cleanup()
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(logger *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	logger.Info("starting metrics server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", zap.Error(err))
	}
}

// runLive follows the chain head until the context is cancelled.
func runLive(ctx context.Context, logger *zap.Logger, app *indexer, rpc *chain.HTTPClient, wsEndpoint string) error {
	var subscriber ingestion.HeadSubscriber
	if wsEndpoint != "" {
		wsCfg := chain.DefaultWSConfig()
		wsCfg.Logger = logger.Named("ws")
		ws, err := chain.NewWSClient(ctx, wsEndpoint, &wsCfg)
		if err != nil {
			logger.Warn("websocket unavailable, polling only", zap.Error(err))
		} else {
			defer ws.Close()
			subscriber = ws
		}
	}

	settings := app.cfg.Settings
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Processor:     app.processor,
		Checkpoints:   app.checkpoints,
		Stage:         app.stage,
		Heads:         rpc,
		Subscriber:    subscriber,
		Confirmations: settings.Confirmations,
		BatchSize:     settings.BatchSize,
		StartBlock:    settings.StartBlock,
		Logger:        logger.Named("runner"),
	})
	return runner.Run(ctx)
}

// runBackfill processes a fixed block range and exits.
func runBackfill(ctx context.Context, logger *zap.Logger, app *indexer, rpc *chain.HTTPClient, from, to uint64) error {
	settings := app.cfg.Settings
	if from == 0 {
		from = settings.StartBlock
	}
	if to == 0 {
		head, err := rpc.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get head: %w", err)
		}
		if head < settings.Confirmations {
			return fmt.Errorf("head %d below confirmation depth", head)
		}
		to = head - settings.Confirmations
	}
	if from > to {
		return fmt.Errorf("invalid range: from %d > to %d", from, to)
	}

	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		Processor:   app.processor,
		Checkpoints: app.checkpoints,
		Stage:       app.stage,
		BatchSize:   settings.BatchSize,
		Logger:      logger.Named("backfill"),
	})
	result, err := backfiller.Run(ctx, from, to)
	if err != nil {
		return err
	}

	logger.Info("backfill finished",
		zap.Uint64("from", result.FromBlock),
		zap.Uint64("to", result.ToBlock),
		zap.Int("batches", result.Batches),
		zap.Duration("duration", result.Duration))
	return nil
}
