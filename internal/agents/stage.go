package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/observability"
)

// Stage is one named step of the pipeline. Run never mutates its input; it
// returns an updated copy.
type Stage struct {
	Name string
	Run  func(ctx context.Context, state *domain.WorkflowState) *domain.WorkflowState
}

// stageFunc is a stage body. It mutates the state it is given. Expected
// outcomes such as "no results" are recorded on the state directly; a
// returned error is an unexpected failure and is reported with the stage's
// error prefix.
type stageFunc func(ctx context.Context, state *domain.WorkflowState) error

// newStage wraps body in the stage failure boundary: clone the input,
// recover panics, turn errors into state failures, log and record metrics.
func (a *Agents) newStage(name, errPrefix string, body stageFunc) Stage {
	run := func(ctx context.Context, in *domain.WorkflowState) (out *domain.WorkflowState) {
		state := in.Clone()
		if state == nil {
			state = domain.NewWorkflowState("")
		}
		priorError := state.ErrorMessage
		ctx = observability.WithStage(ctx, name)
		logger := a.stageLogger(ctx, state, name)
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("stage panicked")
				state.Fail(fmt.Sprintf("%s%v", errPrefix, r))
			}
			failed := state.HasFailed() && state.ErrorMessage != priorError
			if a.metrics != nil {
				a.metrics.RecordStage(name, time.Since(start).Seconds(), failed)
			}
			logger.Info().
				Str("execution_status", string(state.ExecutionStatus)).
				Dur("duration", time.Since(start)).
				Msg("stage finished")
			out = state
		}()

		logger.Info().Msg("stage started")
		if err := body(ctx, state); err != nil {
			logger.Error().Err(err).Msg("stage failed")
			state.Fail(errPrefix + err.Error())
		}
		return state
	}
	return Stage{Name: name, Run: run}
}
