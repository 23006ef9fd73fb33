package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/logger"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framecheck_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecheck_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecheck_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed",
	})
)

// metricsMiddleware records request counts and latency per route template.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rw := logger.NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		duration := time.Since(start)
		status := strconv.Itoa(rw.StatusCode())
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(duration.Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()

		logger.FromContext(r.Context()).WithFields(logger.Fields{
			"status":      rw.StatusCode(),
			"duration_ms": duration.Milliseconds(),
		}).Info("Request completed")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.WithFields(logger.Fields{
					"panic":      recovered,
					"request_id": r.Header.Get("X-Request-ID"),
					"method":     r.Method,
					"path":       r.URL.Path,
				}).Error("Panic recovered")
				s.writeError(w, r, apperrors.New(apperrors.ErrorTypeInternal, "An unexpected error occurred", apperrors.ExitFailure))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects requests over the configured rate with 429.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, apperrors.NewRateLimitedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}
