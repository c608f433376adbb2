// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsProcessed        *prometheus.CounterVec
	EventProcessingErrors  *prometheus.CounterVec
	EventProcessingLatency *prometheus.HistogramVec
	HeadBlock              prometheus.Gauge
	LastProcessedBlock     prometheus.Gauge
	TrackedPairs           prometheus.Gauge

	// Entity metrics
	PairsCreated  prometheus.Counter
	TokensCreated prometheus.Counter
	TokensSkipped *prometheus.CounterVec
	ETHPriceUSD   prometheus.Gauge

	// Chain metrics
	RPCCallLatency *prometheus.HistogramVec
	WSReconnects   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	APIRequests *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "amm_indexer"
	}

	return &Metrics{
		// Ingestion metrics
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_processed_total",
			Help:      "Total number of pool and factory events processed by kind",
		}, []string{"event_type"}),
		EventProcessingErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_processing_errors_total",
			Help:      "Total number of event processing errors by type",
		}, []string{"event_type", "error_type"}),
		EventProcessingLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_processing_latency_seconds",
			Help:      "Event processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		HeadBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "head_block",
			Help:      "Latest block number reported by the node",
		}),
		LastProcessedBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_processed_block",
			Help:      "Last block fully processed and checkpointed",
		}),
		TrackedPairs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tracked_pairs",
			Help:      "Number of pair contracts whose logs are followed",
		}),

		// Entity metrics
		PairsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entities",
			Name:      "pairs_created_total",
			Help:      "Total number of pairs bootstrapped from PairCreated",
		}),
		TokensCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entities",
			Name:      "tokens_created_total",
			Help:      "Total number of tokens created",
		}),
		TokensSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entities",
			Name:      "tokens_skipped_total",
			Help:      "Total number of token creations aborted by reason",
		}, []string{"reason"}),
		ETHPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "entities",
			Name:      "eth_price_usd",
			Help:      "Current ETH/USD reference price",
		}),

		// Chain metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of read API requests by route and status",
		}, []string{"route", "status"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventProcessed counts a handled event and its latency.
func RecordEventProcessed(eventType string, seconds float64) {
	DefaultMetrics.EventsProcessed.WithLabelValues(eventType).Inc()
	DefaultMetrics.EventProcessingLatency.WithLabelValues(eventType).Observe(seconds)
}

// RecordEventError records an event processing error.
func RecordEventError(eventType, errorType string) {
	DefaultMetrics.EventProcessingErrors.WithLabelValues(eventType, errorType).Inc()
}

// UpdateHeadBlock updates the head block gauge.
func UpdateHeadBlock(block uint64) {
	DefaultMetrics.HeadBlock.Set(float64(block))
}

// RecordBlockProcessed updates the processed block gauge and the health timestamp.
func RecordBlockProcessed(block uint64, unixNow int64) {
	DefaultMetrics.LastProcessedBlock.Set(float64(block))
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(unixNow))
}

// UpdateTrackedPairs sets the number of followed pairs.
func UpdateTrackedPairs(n int) {
	DefaultMetrics.TrackedPairs.Set(float64(n))
}

// RecordPairCreated increments the pairs created counter.
func RecordPairCreated() {
	DefaultMetrics.PairsCreated.Inc()
}

// RecordTokenCreated increments the tokens created counter.
func RecordTokenCreated() {
	DefaultMetrics.TokensCreated.Inc()
}

// RecordTokenSkipped counts an aborted token creation.
func RecordTokenSkipped(reason string) {
	DefaultMetrics.TokensSkipped.WithLabelValues(reason).Inc()
}

// UpdateETHPrice sets the reference price gauge.
func UpdateETHPrice(price float64) {
	DefaultMetrics.ETHPriceUSD.Set(price)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSReconnect counts a reconnect attempt.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordAPIRequest counts a read API request.
func RecordAPIRequest(route string, status int) {
	DefaultMetrics.APIRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}
