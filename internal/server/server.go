// Package server serves published scan reports, preflight health and
// Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/framecheck/internal/config"
	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/health"
	"github.com/zsiec/framecheck/internal/logger"
	"github.com/zsiec/framecheck/internal/report"
)

// ReportStore is the read side of report.Store plus the run index.
type ReportStore interface {
	Get(ctx context.Context, runID string) (*report.Summary, error)
	Latest(ctx context.Context) (*report.Summary, error)
	Recent(ctx context.Context, n int64) ([]string, error)
}

// Server is the report HTTP server.
type Server struct {
	config     *config.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	logger     *logrus.Logger
	store      ReportStore
	healthMgr  *health.Manager
	limiter    *rate.Limiter
}

// New creates a server with its routes registered.
func New(cfg *config.ServerConfig, log *logrus.Logger, store ReportStore, healthMgr *health.Manager) *Server {
	s := &Server{
		config:    cfg,
		router:    mux.NewRouter(),
		logger:    log,
		store:     store,
		healthMgr: healthMgr,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	s.setupRoutes()
	return s
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return apperrors.WrapIOError(err, fmt.Sprintf("failed to listen on %s", s.config.Addr))
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.WithField("addr", ln.Addr().String()).Info("Starting report server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return apperrors.WrapIOError(err, "report server failed")
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down report server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return apperrors.WrapIOError(err, "failed to shut down report server")
	}

	s.logger.Info("Report server shutdown complete")
	return nil
}

// Router returns the router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.metricsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/latest", s.handleLatestReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/{run_id}", s.handleGetReport).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperrors.NewNotFoundError("endpoint"))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperrors.NewInvalidArgumentError("method %s not allowed", r.Method))
	})
}
