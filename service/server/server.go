package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexalabs/nexamon/service/config"
	"github.com/nexalabs/nexamon/service/db"
	"github.com/nexalabs/nexamon/service/logging"
	"github.com/nexalabs/nexamon/service/metrics"
	"github.com/nexalabs/nexamon/service/monitor"
)

// Controller is the monitor surface the HTTP API drives.
// Satisfied by *monitor.Monitor.
type Controller interface {
	Start() error
	Stop(ctx context.Context) error
	Status() monitor.Snapshot
	BuildPlan(amount uint64) monitor.Plan
}

// HistoryStore is the read side of the redistribution history.
// Satisfied by *db.Store.
type HistoryStore interface {
	ListRecentRedistributions(ctx context.Context, limit int) ([]*db.RedistributionRecord, error)
}

// Server is the HTTP control surface for the monitor.
type Server struct {
	addr    string
	cfg     *config.Config
	ctrl    Controller
	ring    *logging.Ring
	store   HistoryStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates the HTTP server.
// The store is optional - if nil, the history endpoint returns 503.
// The metrics is optional - if nil, the /metrics endpoint won't be available.
func New(addr string, cfg *config.Config, ctrl Controller, ring *logging.Ring, store HistoryStore, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		cfg:     cfg,
		ctrl:    ctrl,
		ring:    ring,
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Routes builds the request mux. Exposed for handler tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /api/v1/status", "/api/v1/status", handleStatus(s.ctrl, s.logger))
	s.handle(mux, "GET /api/v1/logs", "/api/v1/logs", handleLogs(s.ring, s.logger))
	s.handle(mux, "POST /api/v1/start", "/api/v1/start", handleStart(s.ctrl, s.logger))
	s.handle(mux, "POST /api/v1/stop", "/api/v1/stop", handleStop(s.ctrl, s.logger))
	s.handle(mux, "GET /api/v1/config", "/api/v1/config", handleConfig(s.cfg, s.logger))
	s.handle(mux, "POST /api/v1/simulate", "/api/v1/simulate", handleSimulate(s.ctrl, s.cfg, s.logger))
	s.handle(mux, "GET /api/v1/redistributions", "/api/v1/redistributions", handleRedistributions(s.store, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

func (s *Server) handle(mux *http.ServeMux, pattern, name string, h http.Handler) {
	if s.metrics != nil {
		h = metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
	}
	mux.Handle(pattern, h)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
