// Command server exposes the indexed entities and period buckets over HTTP.
// It only reads; the indexer command writes the same stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"amm-indexer/internal/api"
	"amm-indexer/internal/config"
	"amm-indexer/internal/observability"
	chstore "amm-indexer/internal/storage/clickhouse"
	pgstore "amm-indexer/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	configPath := flag.String("config", "", "Network YAML file (built-in defaults when empty)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional; enables period routes)")
	addr := flag.String("addr", ":8080", "API listen address")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address (empty to disable)")
	debug := flag.Bool("debug", false, "Development logging")

	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	opts := api.ServerOptions{
		Store:   pgstore.NewEntityStore(pool),
		Factory: cfg.Factory(),
		Addr:    *addr,
		Logger:  logger.Named("api"),
	}
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal("connect clickhouse", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()
		opts.Periods = chstore.NewPeriodStore(conn)
	}
	srv := api.NewServer(opts)

	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server", zap.Error(err))
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
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
	r := mux.NewRouter()
	r.Handle("/metrics", observability.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	logger.Info("starting metrics server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", zap.Error(err))
	}
}

// loadEnvFile copies KEY=VALUE lines of ./.env into the environment without
// overriding variables already set.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, strings.TrimSpace(value))
		}
	}
}
