package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/research-agent-service/internal/domain"
)

// DefaultServiceName is the source recorded on events when none is configured.
const DefaultServiceName = "research-agent-service"

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service.
	ServiceName string
}

// Emitter builds lifecycle events from workflow states.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates an Emitter.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	return &Emitter{config: config}
}

// ServiceName returns the configured source name.
func (e *Emitter) ServiceName() string {
	return e.config.ServiceName
}

// Started builds a research.started event.
func (e *Emitter) Started(state *domain.WorkflowState) (*domain.ResearchEvent, error) {
	if err := requireState(state); err != nil {
		return nil, err
	}
	return e.build(domain.EventTypeResearchStarted, state.ID, domain.ResearchStartedPayload{
		RunID: state.ID,
		Query: state.Query,
	})
}

// Finished builds research.completed, or research.failed when the state
// carries the error status. duration is the wall time of the run.
func (e *Emitter) Finished(state *domain.WorkflowState, duration time.Duration) (*domain.ResearchEvent, error) {
	if err := requireState(state); err != nil {
		return nil, err
	}
	if state.HasFailed() {
		return e.build(domain.EventTypeResearchFailed, state.ID, domain.ResearchFailedPayload{
			RunID: state.ID,
			Query: state.Query,
			Error: state.ErrorMessage,
			Stage: state.CurrentAgent,
		})
	}
	return e.build(domain.EventTypeResearchCompleted, state.ID, domain.ResearchCompletedPayload{
		RunID:                 state.ID,
		Query:                 state.Query,
		SourceCount:           len(state.Sources),
		FindingCount:          len(state.Findings),
		VerificationCompleted: state.VerificationStatus == domain.VerificationCompleted,
		Duration:              duration,
	})
}

// Cancelled builds a research.cancelled event.
func (e *Emitter) Cancelled(runID uuid.UUID, reason string) (*domain.ResearchEvent, error) {
	if runID == uuid.Nil {
		return nil, domain.NewValidationError("run_id", "run ID is required")
	}
	return e.build(domain.EventTypeResearchCancelled, runID, domain.ResearchCancelledPayload{
		RunID:  runID,
		Reason: reason,
	})
}

func (e *Emitter) build(eventType string, runID uuid.UUID, payload any) (*domain.ResearchEvent, error) {
	event, err := domain.NewResearchEvent(eventType, runID, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return event, nil
}

func requireState(state *domain.WorkflowState) error {
	if state == nil {
		return domain.NewValidationError("state", "state is required")
	}
	if state.ID == uuid.Nil {
		return domain.NewValidationError("run_id", "run ID is required")
	}
	return nil
}
