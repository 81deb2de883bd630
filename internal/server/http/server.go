// Package httpserver provides the HTTP REST API for starting and inspecting
// research runs.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/database"
	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/events"
	"github.com/helixir/research-agent-service/internal/observability"
	"github.com/helixir/research-agent-service/internal/repository"
	"github.com/helixir/research-agent-service/internal/temporal"
)

// WorkflowClient is the part of temporal.ResearchWorkflowClient the server
// uses.
type WorkflowClient interface {
	Start(ctx context.Context, workflowFunc interface{}, input temporal.ResearchWorkflowInput) (workflowID, runID string, err error)
	Cancel(ctx context.Context, runID uuid.UUID, reason string) error
	Progress(ctx context.Context, runID uuid.UUID) (*temporal.ResearchProgress, error)
	Health(ctx context.Context) error
}

// PipelineRunner runs a state through every stage in-process.
// *agents.Pipeline satisfies it.
type PipelineRunner interface {
	Run(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error)
}

// HealthChecker reports database health. *database.DB satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Dependencies are the collaborators of the HTTP server. Repo is required.
// When Workflow is nil runs execute in-process through Pipeline.
type Dependencies struct {
	Repo         repository.StateRepository
	Workflow     WorkflowClient
	WorkflowFunc interface{}
	Pipeline     PipelineRunner
	DB           HealthChecker
	Publisher    events.Publisher
	Emitter      *events.Emitter
	Metrics      *observability.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Dependencies
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NewEmitter(events.EmitterConfig{})
	}

	s := &Server{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogMiddleware(s.logger, s.deps.Metrics))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1/research", func(r chi.Router) {
		r.Post("/", s.startResearch)
		r.Get("/", s.listResearch)
		r.Get("/{runID}", s.getResearch)
		r.Get("/{runID}/document", s.getDocument)
		r.Get("/{runID}/report", s.getReport)
		r.Get("/{runID}/progress", s.getProgress)
		r.Post("/{runID}/cancel", s.cancelResearch)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler checks the database and Temporal when they are configured.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]string{
		"status":   "ready",
		"database": "disabled",
		"temporal": "disabled",
	}
	ready := true

	if s.deps.DB != nil {
		health := s.deps.DB.Health(ctx)
		resp["database"] = health.Status
		if !health.Healthy() {
			ready = false
		}
	}

	if s.deps.Workflow != nil {
		if err := s.deps.Workflow.Health(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("temporal health check failed")
			resp["temporal"] = "unhealthy"
			ready = false
		} else {
			resp["temporal"] = "healthy"
		}
	}

	if !ready {
		resp["status"] = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
