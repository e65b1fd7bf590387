// Package server publishes the record collection and the cohort
// comparison over HTTP.
//
// Routes:
//
//	GET /metrics/summary.json   all records (the summary.json document)
//	GET /metrics/report.json    comparison report; ?cohorts=1 adds averages
//	GET /healthz                liveness and record count
//	GET /debug/metrics          Prometheus counters
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/store"
	"github.com/0xmhha/session-metrics/pkg/summary"
)

// Config holds server-specific configuration.
type Config struct {
	// Addr is the listen address.
	Addr string

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 5s.
	ShutdownTimeout time.Duration
}

// Server serves metrics documents from a record store.
type Server struct {
	config  Config
	store   store.Store
	metrics *Metrics
	logger  logger.Logger
	router  chi.Router
}

// New creates a Server. A nil metrics gets a fresh registry.
func New(cfg Config, st store.Store, m *Metrics, log logger.Logger) (*Server, error) {
	if st == nil {
		return nil, ErrNoStore
	}
	if m == nil {
		m = NewMetrics()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		config:  cfg,
		store:   st,
		metrics: m,
		logger:  log,
	}
	s.router = s.routes()

	return s, nil
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/metrics/summary.json", s.handleSummary)
	r.Get("/metrics/report.json", s.handleReport)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/debug/metrics", s.metrics.Handler())

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		s.logger.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.ExportJSON(w); err != nil {
		s.logger.Error("failed to export records", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List()
	if err != nil {
		s.logger.Error("failed to list records", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := summary.Compare(summary.FromRecords(records))
	if err != nil {
		if errors.Is(err, summary.ErrEmptyCohort) {
			s.logger.Warn("cannot build report", "error", err)
			s.writeError(w, http.StatusConflict, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if withCohorts, _ := strconv.ParseBool(r.URL.Query().Get("cohorts")); withCohorts {
		s.writeJSON(w, http.StatusOK, result)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n, err := s.store.Count()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"records": n,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// logRequests logs each request and counts it by route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		s.metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
