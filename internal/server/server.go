// Package server is the inbound HTTP boundary of the dispatcher.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "clinic-dispatcher/internal/common/errors"
	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/common/validation"
	circuitbreaker "clinic-dispatcher/internal/dispatch/circuit-breaker"
	"clinic-dispatcher/internal/models"
	"clinic-dispatcher/internal/services/session"
)

const (
	maxBodyBytes           = 64 << 10
	defaultPostTurnTimeout = 250 * time.Millisecond
	readyTimeout           = 2 * time.Second
)

type Router interface {
	Route(ctx context.Context, msg models.InboundMessage) *models.ExecutionResult
}

type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID string, turn session.TurnRecord) error
}

type MemoryWriter interface {
	Remember(ctx context.Context, sessionID, topic string) error
	RememberService(ctx context.Context, sessionID, service string) error
	RememberPatientName(ctx context.Context, sessionID, name string) error
}

type CircuitReporter interface {
	Snapshot() []circuitbreaker.Stats
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Router          Router
	Sessions        TurnRecorder
	Memory          MemoryWriter
	Circuits        CircuitReporter
	Checks          map[string]Pinger
	PostTurnTimeout time.Duration
	Logger          logger.Logger
}

type Server struct {
	router          Router
	sessions        TurnRecorder
	memory          MemoryWriter
	circuits        CircuitReporter
	checks          map[string]Pinger
	postTurnTimeout time.Duration
	validator       *validation.Validator
	errors          *apperrors.HTTPErrorHandler
	logger          logger.Logger
}

func New(opts Options) (*Server, error) {
	v, err := validation.NewValidator(validation.InboundMessageSchema)
	if err != nil {
		return nil, err
	}
	log := logger.ForComponent(opts.Logger, "server")
	timeout := opts.PostTurnTimeout
	if timeout <= 0 {
		timeout = defaultPostTurnTimeout
	}
	return &Server{
		router:          opts.Router,
		sessions:        opts.Sessions,
		memory:          opts.Memory,
		circuits:        opts.Circuits,
		checks:          opts.Checks,
		postTurnTimeout: timeout,
		validator:       v,
		errors:          apperrors.NewHTTPErrorHandler(log),
		logger:          log,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)
		r.Get("/circuits", s.handleCircuits)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status": "ready",
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "not_ready"
		s.logger.Warn("readiness check failed", map[string]interface{}{"checks": checks})
	}
	writeJSON(w, status, body)
}

func (s *Server) handleCircuits(w http.ResponseWriter, _ *http.Request) {
	stats := []circuitbreaker.Stats{}
	if s.circuits != nil {
		stats = s.circuits.Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"circuits": stats})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
