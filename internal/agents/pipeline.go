package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/observability"
)

// StagePhase marks where in a stage an observer is being notified.
type StagePhase string

const (
	PhaseStarted  StagePhase = "started"
	PhaseFinished StagePhase = "finished"
)

// StageEvent describes one stage transition.
type StageEvent struct {
	Stage string
	Index int
	Total int
	Phase StagePhase
	// State is the state before the stage for PhaseStarted and after it for
	// PhaseFinished. Observers must not modify it.
	State    *domain.WorkflowState
	Duration time.Duration
}

// StageObserver is notified before and after each stage.
type StageObserver func(ctx context.Context, ev StageEvent)

// Pipeline runs the four stages in a fixed order with no conditional
// skipping.
type Pipeline struct {
	agents    *Agents
	observers []StageObserver
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStageObserver adds an observer. Observers run synchronously in the
// order they were added.
func WithStageObserver(o StageObserver) PipelineOption {
	return func(p *Pipeline) {
		p.observers = append(p.observers, o)
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPipelineMetrics sets the metrics recorder for run-level counters.
func WithPipelineMetrics(metrics *observability.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

// NewPipeline creates a pipeline over agents.
func NewPipeline(agents *Agents, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		agents: agents,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the ordered stage list.
func (p *Pipeline) Stages() []Stage {
	return p.agents.Stages()
}

// Execute runs a fresh state for query through every stage.
func (p *Pipeline) Execute(ctx context.Context, query string) (*domain.WorkflowState, error) {
	return p.Run(ctx, domain.NewWorkflowState(query))
}

// Run drives an existing state through every stage. The returned error is
// non-nil only when ctx is done before all stages have run; stage failures
// are reported on the state. The input state is not modified.
func (p *Pipeline) Run(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error) {
	ctx = observability.WithRunID(ctx, state.ID.String())
	logger := observability.WithRunContext(observability.WithRequestContext(p.logger, ctx), state.ID.String(), state.Query)
	logger.Info().Msg("starting research workflow")

	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordRunStarted()
	}

	stages := p.Stages()
	current := state.Clone()
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Str("next_stage", stage.Name).Msg("workflow cancelled")
			if p.metrics != nil {
				p.metrics.RecordRunCancelled()
			}
			return current, fmt.Errorf("research workflow cancelled before %s: %w", stage.Name, err)
		}

		logger.Info().Msgf("Step %d/%d: %s", i+1, len(stages), stage.Name)
		p.notify(ctx, StageEvent{Stage: stage.Name, Index: i, Total: len(stages), Phase: PhaseStarted, State: current})

		stageStart := time.Now()
		current = stage.Run(ctx, current)

		p.notify(ctx, StageEvent{
			Stage:    stage.Name,
			Index:    i,
			Total:    len(stages),
			Phase:    PhaseFinished,
			State:    current,
			Duration: time.Since(stageStart),
		})
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		if current.HasFailed() || current.ErrorMessage != "" {
			p.metrics.RecordRunFailed(elapsed.Seconds())
		} else {
			p.metrics.RecordRunCompleted(elapsed.Seconds())
		}
	}

	logger.Info().
		Str("execution_status", string(current.ExecutionStatus)).
		Str("error_message", current.ErrorMessage).
		Int("sources", len(current.Sources)).
		Int("findings", len(current.Findings)).
		Dur("duration", elapsed).
		Msg("workflow completed")
	return current, nil
}

func (p *Pipeline) notify(ctx context.Context, ev StageEvent) {
	for _, o := range p.observers {
		o(ctx, ev)
	}
}
