// Package api exposes the HTTP interface for the rank tracking service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ranktrack/ranktrack/internal/cache"
	"github.com/ranktrack/ranktrack/internal/config"
	"github.com/ranktrack/ranktrack/internal/metrics"
	"github.com/ranktrack/ranktrack/internal/ranking"
	"github.com/ranktrack/ranktrack/internal/scheduler"
)

// Checker is the on-demand single-keyword check surface.
type Checker interface {
	ShallowCheck(ctx context.Context, keyword, targetDomain string) (ranking.RankingResult, error)
	DeepCheck(ctx context.Context, keyword, targetDomain string) (ranking.RankingResult, error)
}

const statusCacheKey = "batch-status"

// Server wires HTTP handlers to the scheduler and resolver.
type Server struct {
	router      chi.Router
	scheduler   *scheduler.Scheduler
	checker     Checker
	statusCache *cache.Cache[scheduler.Status]
	registry    *prometheus.Registry
	cfg         config.Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	sched *scheduler.Scheduler,
	checker Checker,
	statusCache *cache.Cache[scheduler.Status],
	registry *prometheus.Registry,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scheduler:   sched,
		checker:     checker,
		statusCache: statusCache,
		registry:    registry,
		cfg:         cfg,
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	if registry != nil {
		if httpMetrics, err := metrics.NewHTTPMetrics(registry); err != nil {
			logger.Warn("http metrics disabled", zap.Error(err))
		} else {
			r.Use(httpMetrics.Middleware)
		}
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.createBatches)
			r.Post("/next", s.processNext)
			r.Get("/status", s.batchStatus)
			r.Delete("/completed", s.cleanupCompleted)
		})
		r.Post("/checks", s.checkKeyword)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// Storage is exercised via the status query so a broken database
	// flips readiness.
	if _, err := s.scheduler.GetStatus(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage not ready")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// createBatches partitions the active keyword set into a fresh generation of
// pending units.
func (s *Server) createBatches(w http.ResponseWriter, r *http.Request) {
	res, err := s.scheduler.CreateBatches(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidateStatus()
	s.writeJSON(w, http.StatusCreated, res)
}

// processNext runs one scheduler invocation. External triggers (cron, Cloud
// Scheduler) poke this endpoint repeatedly until it reports no work left.
func (s *Server) processNext(w http.ResponseWriter, r *http.Request) {
	res, err := s.scheduler.ProcessNextUnit(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidateStatus()
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) batchStatus(w http.ResponseWriter, r *http.Request) {
	if s.statusCache != nil {
		if st, ok := s.statusCache.Get(statusCacheKey); ok {
			s.writeJSON(w, http.StatusOK, st)
			return
		}
	}
	st, err := s.scheduler.GetStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.statusCache != nil {
		s.statusCache.Set(statusCacheKey, st)
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) cleanupCompleted(w http.ResponseWriter, r *http.Request) {
	maxAgeDays := s.cfg.Scheduler.CleanupMaxAgeDays
	if raw := r.URL.Query().Get("max_age_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "max_age_days must be a positive integer")
			return
		}
		maxAgeDays = n
	}
	deleted, err := s.scheduler.CleanupOldUnits(r.Context(), maxAgeDays)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidateStatus()
	s.writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

type checkRequest struct {
	Keyword string `json:"keyword"`
	Domain  string `json:"domain"`
	Deep    bool   `json:"deep"`
}

// checkKeyword runs an on-demand check outside any batch. Deep checks page
// to position 100 and cost ten times the quota of a shallow check.
func (s *Server) checkKeyword(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		s.writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	domain := req.Domain
	if domain == "" {
		domain = s.cfg.Target.Domain
	}

	var (
		result ranking.RankingResult
		err    error
	)
	if req.Deep {
		result, err = s.checker.DeepCheck(r.Context(), req.Keyword, domain)
	} else {
		result, err = s.checker.ShallowCheck(r.Context(), req.Keyword, domain)
	}
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) invalidateStatus() {
	if s.statusCache != nil {
		s.statusCache.Delete(statusCacheKey)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
