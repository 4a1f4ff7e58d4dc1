// Package api implements the HTTP triage API: POST /api/v1/triage runs the
// agent loop for one incident, /health and /metrics serve probes and
// Prometheus scrapes. Responses carry the triage result together with its
// validation report so callers never need a second round trip.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pagerops/triage/internal/agent"
	"github.com/pagerops/triage/internal/agent/provider"
	"github.com/pagerops/triage/internal/logging"
)

// TriageRunner runs the triage loop for one incident. Implemented by
// *agent.Agent; tests substitute fakes.
type TriageRunner interface {
	Triage(ctx context.Context, incidentDescription string) (*agent.TriageResult, error)
}

// TracerSource hands out tracers for request instrumentation.
type TracerSource interface {
	GetTracer(name string) trace.Tracer
	IsEnabled() bool
}

// TriageRequest is the POST /api/v1/triage request body.
type TriageRequest struct {
	// Incident is the free-form incident description. Required.
	Incident string `json:"incident"`

	// OccurredAt optionally records when the incident happened. Unix
	// seconds, RFC 3339 and human-readable dates are accepted.
	OccurredAt string `json:"occurred_at,omitempty"`
}

// TriageResponse is the POST /api/v1/triage response body.
type TriageResponse struct {
	OccurredAt string              `json:"occurred_at,omitempty"`
	Cached     bool                `json:"cached"`
	Result     *agent.TriageResult `json:"result"`
	Validation agent.Validation    `json:"validation"`
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Cache serves repeat incident descriptions without re-running the
	// loop. May be nil.
	Cache *ResultCache

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	// Tracing provides request tracers. May be nil.
	Tracing TracerSource
}

// Server handles HTTP triage requests.
type Server struct {
	port   int
	server *http.Server
	router *http.ServeMux
	logger *logging.Logger
	runner TriageRunner
	cache  *ResultCache
	tracer trace.Tracer
}

// NewServer creates an API server around a triage runner.
func NewServer(port int, runner TriageRunner, opts Options) *Server {
	s := &Server{
		port:   port,
		router: http.NewServeMux(),
		logger: logging.GetLogger("api"),
		runner: runner,
		cache:  opts.Cache,
	}

	if opts.Tracing != nil {
		s.tracer = opts.Tracing.GetTracer("triage.api")
	} else {
		s.tracer = noop.NewTracerProvider().Tracer("triage.api")
	}

	s.registerHandlers(opts.MetricsHandler)

	// Generous write timeout: a triage run walks up to three providers
	// per model turn.
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.corsMiddleware(s.router),
		ReadTimeout:  time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerHandlers(metricsHandler http.Handler) {
	s.router.HandleFunc("/api/v1/triage", s.withMethod(http.MethodPost, s.handleTriage))
	s.router.HandleFunc("/health", s.handleHealth)

	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler)
	}
	if s.cache != nil {
		s.router.HandleFunc("/api/v1/cache/stats", s.withMethod(http.MethodGet, s.handleCacheStats))
	}
}

// corsMiddleware adds CORS headers to allow browser access.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("path: %s", r.URL.Path)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withMethod wraps a handler to enforce the HTTP method.
func (s *Server) withMethod(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			WriteError(w, http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed,
				fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
			return
		}
		handler(w, r)
	}
}

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "triage.request")
	defer span.End()

	var req TriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Incident) == "" {
		WriteError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "incident must not be empty")
		return
	}

	occurredAt, err := ParseOccurredAt(req.OccurredAt)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
		return
	}

	occurredAtEcho := ""
	if !occurredAt.IsZero() {
		occurredAtEcho = occurredAt.Format(time.RFC3339)
	}

	var key string
	if s.cache != nil {
		key = MakeCacheKey(req.Incident)
		if hit, ok := s.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool("triage.cached", true))
			response := *hit
			response.Cached = true
			response.OccurredAt = occurredAtEcho
			_ = WriteSuccess(w, &response)
			return
		}
	}

	result, err := s.runner.Triage(ctx, req.Incident)
	if err != nil {
		var exhausted *provider.ExhaustedError
		if errors.As(err, &exhausted) {
			s.logger.Error("triage failed, all providers exhausted: %v", err)
			WriteError(w, http.StatusBadGateway, ErrorCodeProviderUnavailable, err.Error())
			return
		}
		s.logger.Error("triage failed: %v", err)
		WriteError(w, http.StatusInternalServerError, ErrorCodeInternalError, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("triage.status", result.Status),
		attribute.Int("triage.iterations", result.TotalIterations),
	)

	response := &TriageResponse{
		OccurredAt: occurredAtEcho,
		Result:     result,
		Validation: agent.ValidateResult(result),
	}

	if s.cache != nil {
		s.cache.Put(key, response)
	}

	_ = WriteSuccess(w, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteSuccess(w, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	_ = WriteSuccess(w, s.cache.Stats())
}

// Start begins listening for requests. It returns once the listener
// goroutine is launched.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server on port %d", s.port)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server started and listening on port %d", s.port)
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")

	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("HTTP server shutdown error: %v", err)
			return err
		}
		s.logger.Info("API server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("API server shutdown timeout")
		return ctx.Err()
	}
}

// GetPort returns the port the server is listening on.
func (s *Server) GetPort() int {
	return s.port
}

// Handler returns the server's root handler. Tests drive it through
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
