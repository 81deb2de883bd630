// Package workflows defines the Temporal workflow that drives a research run
// through the four pipeline stages.
package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/research-agent-service/internal/agents"
	"github.com/helixir/research-agent-service/internal/domain"
	rtemporal "github.com/helixir/research-agent-service/internal/temporal"
	"github.com/helixir/research-agent-service/internal/temporal/activities"
)

// Re-exported from the parent package so callers holding only this package
// can signal and query the workflow.
const (
	SignalCancel  = rtemporal.SignalCancel
	QueryProgress = rtemporal.QueryProgress
)

// Activity timeouts.
const (
	stageActivityTimeout       = 15 * time.Minute
	persistenceActivityTimeout = 30 * time.Second
	eventActivityTimeout       = 30 * time.Second
)

// DefaultCancelReason is recorded when a cancel request carries no reason.
const DefaultCancelReason = "Research cancelled"

// StatusCancelled is the result status of a run stopped by a cancel signal.
const StatusCancelled = "cancelled"

// Stages lists the stage names in execution order.
var Stages = []string{
	agents.StageResearcher,
	agents.StageAnalyzer,
	agents.StageCritic,
	agents.StageWriter,
}

// ResearchWorkflowInput is an alias for the shared input type defined in the
// parent temporal package.
type ResearchWorkflowInput = rtemporal.ResearchWorkflowInput

// ResearchWorkflowResult contains the outcome of a research workflow.
type ResearchWorkflowResult struct {
	// RunID is the research run identifier.
	RunID uuid.UUID

	// Status is the final execution status, or "cancelled".
	Status string

	// ErrorMessage is the first recorded failure, if any.
	ErrorMessage string

	SourceCount        int
	FindingCount       int
	VerificationStatus domain.VerificationStatus

	// StagesCompleted counts the stages that ran.
	StagesCompleted int

	// Duration is the workflow execution time in seconds.
	Duration float64

	// State is the final workflow state.
	State *domain.WorkflowState
}

// ResearchWorkflow runs researcher, analyzer, critic and writer in that order
// as activities, saving the state after each one. Every stage runs even when
// an earlier one failed; failures are recorded on the state.
//
// A "cancel" signal stops the run before its next stage and marks it failed
// with the cancellation reason. The "progress" query reports the current
// stage and status.
func ResearchWorkflow(ctx workflow.Context, input ResearchWorkflowInput) (*ResearchWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	if input.State == nil || input.State.ID == uuid.Nil {
		return nil, temporal.NewNonRetryableApplicationError("state with a run ID is required", "InvalidInput", nil)
	}
	state := input.State.Clone()

	progress := &rtemporal.ResearchProgress{
		Status:       string(state.ExecutionStatus),
		CurrentAgent: state.CurrentAgent,
		TotalStages:  len(Stages),
	}
	err := workflow.SetQueryHandler(ctx, QueryProgress, func() (*rtemporal.ResearchProgress, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("failed to register progress query handler", "error", err)
		return nil, fmt.Errorf("register query handler: %w", err)
	}

	cancelCh := workflow.GetSignalChannel(ctx, SignalCancel)

	var stageAct *activities.StageActivities
	var persistAct *activities.PersistenceActivities
	var eventAct *activities.EventActivities

	// Stages are not idempotent (model calls, history entries), so they run once.
	stageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: stageActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: persistenceActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	eventCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: eventActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	// saveState is best-effort: a lost checkpoint never fails the run.
	saveState := func(sctx workflow.Context) {
		if err := workflow.ExecuteActivity(sctx, persistAct.SaveState, activities.SaveStateInput{
			State: state,
		}).Get(sctx, nil); err != nil {
			logger.Warn("failed to save state", "runID", state.ID, "currentAgent", state.CurrentAgent, "error", err)
		}
	}

	// Fire-and-forget: publish research.started.
	if err := workflow.ExecuteActivity(eventCtx, eventAct.PublishStarted, activities.PublishStartedInput{
		State: state,
	}).Get(ctx, nil); err != nil {
		logger.Warn("failed to publish started event", "runID", state.ID, "error", err)
	}

	logger.Info("starting research workflow", "runID", state.ID, "query", state.Query)

	var cancelReason string
	cancelled := false
	for i, stage := range Stages {
		if reason, ok := receiveCancel(cancelCh); ok {
			cancelled, cancelReason = true, reason
			progress.CancelRequested = true
		}
		if cancelled || ctx.Err() != nil {
			if !cancelled {
				cancelReason = DefaultCancelReason
			}
			logger.Info("research workflow cancelled", "runID", state.ID, "nextStage", stage, "reason", cancelReason)
			return finishCancelled(ctx, state, progress, cancelReason, startTime, i)
		}

		logger.Info(fmt.Sprintf("Step %d/%d: %s", i+1, len(Stages), stage), "runID", state.ID)
		progress.CurrentAgent = stage

		var out activities.RunStageOutput
		err := workflow.ExecuteActivity(stageCtx, stageAct.RunStage, activities.RunStageInput{
			Stage:     stage,
			RequestID: input.RequestID,
			State:     state,
		}).Get(ctx, &out)
		if ctx.Err() != nil {
			logger.Info("research workflow cancelled during stage", "runID", state.ID, "stage", stage)
			return finishCancelled(ctx, state, progress, DefaultCancelReason, startTime, i)
		}
		switch {
		case err != nil:
			logger.Error("stage activity failed", "runID", state.ID, "stage", stage, "error", err)
			state.CurrentAgent = stage
			failState(ctx, state, fmt.Sprintf("Error in %s agent: activity failed: %v", stage, err))
		case out.State != nil:
			state = out.State
		}

		progress.StagesCompleted = i + 1
		progress.Status = string(state.ExecutionStatus)
		saveState(persistCtx)
	}

	duration := workflow.Now(ctx).Sub(startTime)

	// Fire-and-forget: publish research.completed or research.failed.
	if err := workflow.ExecuteActivity(eventCtx, eventAct.PublishFinished, activities.PublishFinishedInput{
		State:    state,
		Duration: duration,
	}).Get(ctx, nil); err != nil {
		logger.Warn("failed to publish finished event", "runID", state.ID, "error", err)
	}

	logger.Info("research workflow completed",
		"runID", state.ID,
		"executionStatus", state.ExecutionStatus,
		"sources", len(state.Sources),
		"findings", len(state.Findings),
		"duration", duration.Seconds(),
	)

	return newResult(state, string(state.ExecutionStatus), len(Stages), duration), nil
}

// finishCancelled fails the run with reason, saves it and publishes
// research.cancelled. It runs on a disconnected context so it still executes
// after the workflow itself has been cancelled.
func finishCancelled(ctx workflow.Context, state *domain.WorkflowState, progress *rtemporal.ResearchProgress, reason string, startTime time.Time, stagesRun int) (*ResearchWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	wasCancelled := ctx.Err() != nil

	dctx, _ := workflow.NewDisconnectedContext(ctx)
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: persistenceActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	}
	dctx = workflow.WithActivityOptions(dctx, opts)

	var persistAct *activities.PersistenceActivities
	var eventAct *activities.EventActivities

	failState(ctx, state, reason)
	progress.Status = StatusCancelled
	progress.CancelRequested = true

	if err := workflow.ExecuteActivity(dctx, persistAct.SaveState, activities.SaveStateInput{
		State: state,
	}).Get(dctx, nil); err != nil {
		logger.Warn("failed to save cancelled state", "runID", state.ID, "error", err)
	}

	if err := workflow.ExecuteActivity(dctx, eventAct.PublishCancelled, activities.PublishCancelledInput{
		RunID:  state.ID,
		Reason: reason,
	}).Get(dctx, nil); err != nil {
		logger.Warn("failed to publish cancelled event", "runID", state.ID, "error", err)
	}

	if wasCancelled {
		return nil, temporal.NewCanceledError(reason)
	}
	return newResult(state, StatusCancelled, stagesRun, workflow.Now(ctx).Sub(startTime)), nil
}

// receiveCancel drains a pending cancel signal without blocking.
func receiveCancel(ch workflow.ReceiveChannel) (string, bool) {
	var req rtemporal.CancelRequest
	if !ch.ReceiveAsync(&req) {
		return "", false
	}
	if req.Reason == "" {
		req.Reason = DefaultCancelReason
	}
	return req.Reason, true
}

// failState marks the run failed using workflow time. The first recorded
// error message is kept.
func failState(ctx workflow.Context, state *domain.WorkflowState, message string) {
	if !state.HasFailed() || state.ErrorMessage == "" {
		state.ErrorMessage = message
	}
	state.ExecutionStatus = domain.ExecutionError
	if now := workflow.Now(ctx).UTC(); now.After(state.UpdatedAt) {
		state.UpdatedAt = now
	}
}

func newResult(state *domain.WorkflowState, status string, stagesRun int, duration time.Duration) *ResearchWorkflowResult {
	return &ResearchWorkflowResult{
		RunID:              state.ID,
		Status:             status,
		ErrorMessage:       state.ErrorMessage,
		SourceCount:        len(state.Sources),
		FindingCount:       len(state.Findings),
		VerificationStatus: state.VerificationStatus,
		StagesCompleted:    stagesRun,
		Duration:           duration.Seconds(),
		State:              state,
	}
}

// Register registers the research workflow and its activities.
func Register(r rtemporal.Registrar, stages *activities.StageActivities, persistence *activities.PersistenceActivities, events *activities.EventActivities) {
	r.RegisterWorkflow(ResearchWorkflow)
	r.RegisterActivity(stages)
	r.RegisterActivity(persistence)
	r.RegisterActivity(events)
}
