package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/observability"
	"github.com/helixir/research-agent-service/internal/report"
	"github.com/helixir/research-agent-service/internal/repository"
	"github.com/helixir/research-agent-service/internal/statefile"
	"github.com/helixir/research-agent-service/internal/temporal"
)

// cancelledMessage is recorded on in-process runs stopped by their request
// context.
const cancelledMessage = "Research cancelled"

// startResearchRequest is the body of POST /api/v1/research.
type startResearchRequest struct {
	Query string `json:"query" validate:"required,min=3,max=500"`
}

// startResearchResponse is returned when a run is dispatched to Temporal.
type startResearchResponse struct {
	ID         uuid.UUID `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Status     string    `json:"status"`
}

// runSummary is the list view of a run.
type runSummary struct {
	ID                 uuid.UUID                 `json:"id"`
	Query              string                    `json:"query"`
	ExecutionStatus    domain.ExecutionStatus    `json:"execution_status"`
	CurrentAgent       string                    `json:"current_agent"`
	VerificationStatus domain.VerificationStatus `json:"verification_status"`
	SourceCount        int                       `json:"source_count"`
	FindingCount       int                       `json:"finding_count"`
	ErrorMessage       string                    `json:"error_message,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

type listResearchResponse struct {
	Runs       []runSummary `json:"runs"`
	TotalCount int64        `json:"total_count"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}

type cancelResearchRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func summarize(s *domain.WorkflowState) runSummary {
	return runSummary{
		ID:                 s.ID,
		Query:              s.Query,
		ExecutionStatus:    s.ExecutionStatus,
		CurrentAgent:       s.CurrentAgent,
		VerificationStatus: s.VerificationStatus,
		SourceCount:        len(s.Sources),
		FindingCount:       len(s.Findings),
		ErrorMessage:       s.ErrorMessage,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// startResearch creates a run for the query. With Temporal configured it
// starts a workflow and returns 202; otherwise it runs the pipeline within
// the request and returns the final state.
func (s *Server) startResearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.WithRequestContext(s.logger, ctx)

	var req startResearchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := s.validateRequest(&req); err != nil {
		writeDomainError(w, err)
		return
	}

	state := domain.NewWorkflowState(req.Query)
	if err := s.deps.Repo.Save(ctx, state); err != nil {
		logger.Error().Err(err).Msg("failed to persist new run")
		writeDomainError(w, err)
		return
	}
	logger = observability.WithRunContext(logger, state.ID.String(), state.Query)

	if s.deps.Workflow != nil {
		workflowID, _, err := s.deps.Workflow.Start(ctx, s.deps.WorkflowFunc, temporal.ResearchWorkflowInput{
			RequestID: observability.RequestIDFromContext(ctx),
			State:     state,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to start research workflow")
			if uerr := s.deps.Repo.UpdateStatus(context.WithoutCancel(ctx), state.ID, domain.ExecutionError, "failed to start workflow"); uerr != nil {
				logger.Warn().Err(uerr).Msg("failed to mark run failed")
			}
			writeDomainError(w, err)
			return
		}
		logger.Info().Str("workflow_id", workflowID).Msg("research workflow started")
		writeJSON(w, http.StatusAccepted, startResearchResponse{
			ID:         state.ID,
			WorkflowID: workflowID,
			Status:     string(state.ExecutionStatus),
		})
		return
	}

	if s.deps.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "no research runner configured")
		return
	}

	final := s.runInProcess(ctx, state)
	writeJSON(w, http.StatusOK, final)
}

// runInProcess runs the pipeline, publishes lifecycle events and saves the
// final state. Persistence and events use a context that survives a client
// disconnect.
func (s *Server) runInProcess(ctx context.Context, state *domain.WorkflowState) *domain.WorkflowState {
	logger := observability.WithRunContext(observability.WithRequestContext(s.logger, ctx), state.ID.String(), state.Query)
	bg := context.WithoutCancel(ctx)

	s.publish(bg, func() (*domain.ResearchEvent, error) { return s.deps.Emitter.Started(state) })

	start := time.Now()
	final, err := s.deps.Pipeline.Run(ctx, state)
	if final == nil {
		final = state.Clone()
	}
	if err != nil {
		logger.Warn().Err(err).Msg("in-process run cancelled")
		final.Fail(cancelledMessage)
		s.publish(bg, func() (*domain.ResearchEvent, error) {
			return s.deps.Emitter.Cancelled(final.ID, cancelledMessage)
		})
	} else {
		elapsed := time.Since(start)
		s.publish(bg, func() (*domain.ResearchEvent, error) { return s.deps.Emitter.Finished(final, elapsed) })
	}

	if err := s.deps.Repo.Save(bg, final); err != nil {
		logger.Error().Err(err).Msg("failed to persist final state")
	}
	return final
}

// publish builds and sends a lifecycle event. Failures are logged only.
func (s *Server) publish(ctx context.Context, build func() (*domain.ResearchEvent, error)) {
	event, err := build()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to build research event")
		return
	}
	if err := s.deps.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.EventType).Msg("failed to publish research event")
	}
}

// listResearch returns run summaries, newest first.
func (s *Server) listResearch(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaginationParams(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	filter := repository.StateFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Status = append(filter.Status, domain.ExecutionStatus(part))
			}
		}
	}
	if err := filter.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	states, total, err := s.deps.Repo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list runs")
		writeDomainError(w, err)
		return
	}

	runs := make([]runSummary, 0, len(states))
	for _, st := range states {
		runs = append(runs, summarize(st))
	}
	writeJSON(w, http.StatusOK, listResearchResponse{
		Runs:       runs,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// getResearch returns the full state of a run.
func (s *Server) getResearch(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadState(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// getDocument returns the run as a versioned state document.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadState(w, r)
	if !ok {
		return
	}
	data, err := statefile.Marshal(state)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", state.ID.String()).Msg("failed to encode state document")
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// getReport returns the Markdown report, or sanitized HTML when the client
// accepts text/html.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadState(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(state.Report) == "" {
		writeError(w, http.StatusNotFound, "not_found", "report not available")
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		page, err := report.RenderPage(state.Query, state.Report)
		if err != nil {
			s.logger.Error().Err(err).Str("run_id", state.ID.String()).Msg("failed to render report")
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, state.Report)
}

// getProgress queries the running workflow for its current stage.
func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	id, err := parseRunID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if s.deps.Workflow == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "workflow engine not configured")
		return
	}

	progress, err := s.deps.Workflow.Progress(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// cancelResearch asks a running workflow to stop before its next stage.
func (s *Server) cancelResearch(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadState(w, r)
	if !ok {
		return
	}

	var req cancelResearchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body")
			return
		}
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validateRequest(&req); err != nil {
		writeDomainError(w, err)
		return
	}

	if state.ExecutionStatus.IsTerminal() {
		writeError(w, http.StatusConflict, "failed_precondition", "run already finished")
		return
	}
	if s.deps.Workflow == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "workflow engine not configured")
		return
	}

	if err := s.deps.Workflow.Cancel(r.Context(), state.ID, req.Reason); err != nil {
		logger := observability.WithRequestContext(s.logger, r.Context())
		logger.Error().Err(err).Str("run_id", state.ID.String()).Msg("failed to cancel research workflow")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     state.ID.String(),
		"status": "cancelling",
	})
}

// loadState parses the run ID and loads its state, writing the error
// response itself when it fails.
func (s *Server) loadState(w http.ResponseWriter, r *http.Request) (*domain.WorkflowState, bool) {
	id, err := parseRunID(r)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	state, err := s.deps.Repo.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Str("run_id", id.String()).Msg("failed to load run")
		}
		writeDomainError(w, err)
		return nil, false
	}
	return state, true
}

// validateRequest runs struct validation and reports the first failure as a
// domain validation error.
func (s *Server) validateRequest(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return domain.NewValidationError(field, field+" is required")
		case "min":
			return domain.NewValidationError(field, field+" must be at least "+fe.Param()+" characters")
		case "max":
			return domain.NewValidationError(field, field+" must be at most "+fe.Param()+" characters")
		default:
			return domain.NewValidationError(field, "invalid value")
		}
	}
	return domain.NewValidationError("body", err.Error())
}
