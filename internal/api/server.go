// Package api serves the indexed entities and period buckets over a read-only
// JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/observability"
	"amm-indexer/internal/storage"
)

// Server provides the HTTP API over the entity and period stores.
type Server struct {
	store     *storage.EntityStore
	periods   storage.PeriodStore
	factoryID string
	router    *mux.Router
	http      *http.Server
	logger    *zap.Logger
}

// ServerOptions contains configuration for creating a Server.
type ServerOptions struct {
	Store   *storage.EntityStore
	Periods storage.PeriodStore // optional; period routes return 404 without it
	Factory common.Address
	Addr    string
	Logger  *zap.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:     opts.Store,
		periods:   opts.Periods,
		factoryID: domain.AddressID(opts.Factory),
		logger:    logger,
	}

	r := mux.NewRouter()
	r.Use(s.instrument)

	// Health check
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/factory", s.handleGetFactory).Methods("GET")
	v1.HandleFunc("/factory/periods", s.handleGetFactoryPeriods).Methods("GET")
	v1.HandleFunc("/bundle", s.handleGetBundle).Methods("GET")
	v1.HandleFunc("/pairs/{id}", s.handleGetPair).Methods("GET")
	v1.HandleFunc("/pairs/{id}/periods", s.handleGetPairPeriods).Methods("GET")
	v1.HandleFunc("/tokens/{id}", s.handleGetToken).Methods("GET")
	v1.HandleFunc("/tokens/{id}/periods", s.handleGetTokenPeriods).Methods("GET")
	v1.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods("GET")
	v1.HandleFunc("/mints/{id}", s.handleGetMint).Methods("GET")
	v1.HandleFunc("/burns/{id}", s.handleGetBurn).Methods("GET")
	v1.HandleFunc("/swaps/{id}", s.handleGetSwap).Methods("GET")

	s.router = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("api listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "amm-indexer",
	})
}

func (s *Server) handleGetFactory(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.Factories.Load(r.Context(), s.factoryID)
	s.respond(w, f, err)
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Bundles.Load(r.Context(), domain.BundleID)
	s.respond(w, b, err)
}

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Pairs.Load(r.Context(), pathID(r))
	s.respond(w, p, err)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Tokens.Load(r.Context(), pathID(r))
	s.respond(w, t, err)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.Transactions.Load(r.Context(), pathID(r))
	s.respond(w, tx, err)
}

func (s *Server) handleGetMint(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Mints.Load(r.Context(), pathID(r))
	s.respond(w, m, err)
}

func (s *Server) handleGetBurn(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Burns.Load(r.Context(), pathID(r))
	s.respond(w, b, err)
}

func (s *Server) handleGetSwap(w http.ResponseWriter, r *http.Request) {
	sw, err := s.store.Swaps.Load(r.Context(), pathID(r))
	s.respond(w, sw, err)
}

func (s *Server) handleGetFactoryPeriods(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Factories.Load(r.Context(), s.factoryID); err != nil {
		s.respond(w, nil, err)
		return
	}
	s.writePeriods(w, r, domain.PeriodFactory, s.factoryID)
}

func (s *Server) handleGetPairPeriods(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if _, err := s.store.Pairs.Load(r.Context(), id); err != nil {
		s.respond(w, nil, err)
		return
	}
	s.writePeriods(w, r, domain.PeriodPair, id)
}

func (s *Server) handleGetTokenPeriods(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if _, err := s.store.Tokens.Load(r.Context(), id); err != nil {
		s.respond(w, nil, err)
		return
	}
	s.writePeriods(w, r, domain.PeriodToken, id)
}

// writePeriods serves ?interval=day|hour buckets; day is the default.
func (s *Server) writePeriods(w http.ResponseWriter, r *http.Request, entityType, id string) {
	if s.periods == nil {
		writeError(w, http.StatusNotFound, "periods not available")
		return
	}

	interval := domain.IntervalDay
	if q := r.URL.Query().Get("interval"); q != "" {
		parsed, ok := domain.ParseInterval(q)
		if !ok {
			writeError(w, http.StatusBadRequest, "interval must be day or hour")
			return
		}
		interval = parsed
	}

	buckets, err := s.periods.GetBuckets(r.Context(), interval, entityType, id)
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	if buckets == nil {
		buckets = []domain.PeriodBucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

// respond writes v, or maps err to a status.
func (s *Server) respond(w http.ResponseWriter, v interface{}, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, v)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("api query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// instrument counts requests by route template and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		observability.RecordAPIRequest(route, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// pathID returns the {id} variable; addresses and hashes are stored lower-case.
func pathID(r *http.Request) string {
	return strings.ToLower(mux.Vars(r)["id"])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
