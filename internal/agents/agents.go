// Package agents implements the four research stages (researcher, analyzer,
// critic, writer) and the pipeline that runs them in order over a shared
// domain.WorkflowState.
//
// Each stage receives a clone of the state and returns the updated clone.
// Stage failures never escape as Go errors: they are recorded on the state
// as an error message and the error execution status, and the pipeline
// moves on to the next stage regardless.
package agents

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/llm"
	"github.com/helixir/research-agent-service/internal/observability"
)

// Stage names, also used as the current_agent value and history agent.
const (
	StageResearcher = "researcher"
	StageAnalyzer   = "analyzer"
	StageCritic     = "critic"
	StageWriter     = "writer"
)

// Default search limits.
const (
	DefaultWebMaxResults  = 10
	DefaultWebKeep        = 7
	DefaultWikiMaxResults = 3
)

// SourceGatherer is the search surface the researcher needs. Implementations
// report backend failures as empty results.
type SourceGatherer interface {
	SearchWeb(ctx context.Context, query string, maxResults int) []domain.Source
	SearchWikipedia(ctx context.Context, query string, maxResults int) []domain.Source
}

// Limits bounds how many search results the researcher requests and keeps.
type Limits struct {
	WebMaxResults  int
	WebKeep        int
	WikiMaxResults int
}

// DefaultLimits returns 10 web results requested, 7 kept, and 3 wiki results.
func DefaultLimits() Limits {
	return Limits{
		WebMaxResults:  DefaultWebMaxResults,
		WebKeep:        DefaultWebKeep,
		WikiMaxResults: DefaultWikiMaxResults,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.WebMaxResults <= 0 {
		l.WebMaxResults = d.WebMaxResults
	}
	if l.WebKeep <= 0 {
		l.WebKeep = d.WebKeep
	}
	if l.WikiMaxResults <= 0 {
		l.WikiMaxResults = d.WikiMaxResults
	}
	return l
}

// Agents holds the collaborators shared by all four stages.
type Agents struct {
	model    llm.Model
	gatherer SourceGatherer
	limits   Limits
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Option configures Agents.
type Option func(*Agents)

// WithLimits overrides the search limits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(a *Agents) {
		a.limits = l.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agents) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(a *Agents) {
		a.metrics = metrics
	}
}

// New creates the stage set around a model and a gatherer.
func New(model llm.Model, gatherer SourceGatherer, opts ...Option) *Agents {
	a := &Agents{
		model:    model,
		gatherer: gatherer,
		limits:   DefaultLimits(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Stages returns the four stages in execution order.
func (a *Agents) Stages() []Stage {
	return []Stage{
		a.newStage(StageResearcher, "Error in researcher agent: ", a.research),
		a.newStage(StageAnalyzer, "Analyzer error: ", a.analyze),
		a.newStage(StageCritic, "Error in critic agent: ", a.critique),
		a.newStage(StageWriter, "Error in writer agent: ", a.write),
	}
}

// Stage returns the named stage, or false if no stage has that name.
func (a *Agents) Stage(name string) (Stage, bool) {
	for _, s := range a.Stages() {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// stageLogger scopes the logger to one run and one stage.
func (a *Agents) stageLogger(ctx context.Context, state *domain.WorkflowState, stage string) zerolog.Logger {
	logger := observability.WithRequestContext(a.logger, ctx)
	logger = observability.WithRunContext(logger, state.ID.String(), state.Query)
	return observability.WithStageContext(logger, stage)
}
