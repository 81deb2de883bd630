// Package activities provides the Temporal activities called by the research
// workflow: running one pipeline stage, persisting the state, and publishing
// lifecycle events.
//
// Inputs and outputs cross the Temporal serialization boundary as JSON, so
// every field is exported.
package activities

import (
	"time"

	"github.com/google/uuid"

	"github.com/helixir/research-agent-service/internal/domain"
)

// RunStageInput contains the parameters for the RunStage activity.
type RunStageInput struct {
	// Stage is the stage name (researcher, analyzer, critic or writer).
	Stage string

	// RequestID correlates logs with the originating request.
	RequestID string

	// State is the state the stage starts from.
	State *domain.WorkflowState
}

// RunStageOutput contains the state after the stage.
type RunStageOutput struct {
	State *domain.WorkflowState
}

// SaveStateInput contains the state to persist.
type SaveStateInput struct {
	State *domain.WorkflowState
}

// PublishStartedInput contains the state of a run that has just started.
type PublishStartedInput struct {
	State *domain.WorkflowState
}

// PublishFinishedInput contains the final state of a run.
type PublishFinishedInput struct {
	State *domain.WorkflowState

	// Duration is the wall time of the run.
	Duration time.Duration
}

// PublishCancelledInput identifies a cancelled run.
type PublishCancelledInput struct {
	RunID  uuid.UUID
	Reason string
}
