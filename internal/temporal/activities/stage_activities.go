package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/helixir/research-agent-service/internal/agents"
	"github.com/helixir/research-agent-service/internal/observability"
)

// StageSource looks up pipeline stages by name. *agents.Agents satisfies it.
type StageSource interface {
	Stage(name string) (agents.Stage, bool)
}

// StageActivities runs individual pipeline stages as Temporal activities.
// Methods on this struct are registered as Temporal activities via the worker.
type StageActivities struct {
	stages StageSource
}

// NewStageActivities creates a StageActivities over stages.
func NewStageActivities(stages StageSource) *StageActivities {
	return &StageActivities{stages: stages}
}

// RunStage runs one stage against the input state and returns the updated
// state. Stage failures are recorded on the returned state rather than
// returned as errors; an error here means the input itself was unusable.
func (a *StageActivities) RunStage(ctx context.Context, input RunStageInput) (*RunStageOutput, error) {
	logger := activity.GetLogger(ctx)

	if input.State == nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"state is required", "InvalidInput", nil)
	}
	stage, ok := a.stages.Stage(input.Stage)
	if !ok {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown stage %q", input.Stage), "InvalidInput", nil)
	}

	info := activity.GetInfo(ctx)
	ctx = observability.WithRunContextFull(ctx, observability.RunContext{
		RequestID:     input.RequestID,
		RunID:         input.State.ID.String(),
		WorkflowID:    info.WorkflowExecution.ID,
		WorkflowRunID: info.WorkflowExecution.RunID,
	})

	logger.Info("running stage",
		"stage", input.Stage,
		"runID", input.State.ID,
		"attempt", info.Attempt,
	)

	out := stage.Run(ctx, input.State)

	logger.Info("stage activity completed",
		"stage", input.Stage,
		"runID", out.ID,
		"executionStatus", out.ExecutionStatus,
	)

	return &RunStageOutput{State: out}, nil
}
