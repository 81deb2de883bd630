package agents

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/observability"
)

func TestPipeline_Stages(t *testing.T) {
	p := NewPipeline(New(&fakeModel{}, &fakeGatherer{}))

	var names []string
	for _, s := range p.Stages() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{StageResearcher, StageAnalyzer, StageCritic, StageWriter}, names)
}

func TestPipeline_Execute_EndToEnd(t *testing.T) {
	metrics := observability.NewMetrics("test_agents_pipeline_e2e")
	g := &fakeGatherer{
		web:  []domain.Source{webSource("one"), webSource("two")},
		wiki: []domain.Source{wikiSource("Topic")},
	}
	p := NewPipeline(New(&fakeModel{}, g, WithMetrics(metrics)), WithPipelineMetrics(metrics))

	state, err := p.Execute(context.Background(), "test topic")
	require.NoError(t, err)

	assert.Equal(t, "test topic", state.Query)
	assert.Len(t, state.Sources, 3)
	assert.Equal(t, domain.SourceTypeWikipedia, state.Sources[0].SourceType)
	require.Len(t, state.Findings, 3)
	for _, f := range state.Findings {
		assert.True(t, f.Verified)
		require.Len(t, f.Sources, 1)
		assert.Contains(t, state.Sources, f.Sources[0])
	}
	assert.Equal(t, domain.VerificationCompleted, state.VerificationStatus)
	assert.NotEmpty(t, state.Criticism)
	assert.NotEmpty(t, state.Report)
	assert.Equal(t, domain.ExecutionCompleted, state.ExecutionStatus)
	assert.Empty(t, state.ErrorMessage)
	require.NotNil(t, state.ReportMetadata)
	assert.Equal(t, 3, state.ReportMetadata.SourceCount)
	assert.Equal(t, 3, state.ReportMetadata.FindingCount)
	assert.True(t, state.ReportMetadata.VerificationCompleted)
	assert.Equal(t, StageWriter, state.CurrentAgent)

	var agents []string
	for _, h := range state.History {
		agents = append(agents, h.Agent)
	}
	assert.Equal(t, []string{StageResearcher, StageAnalyzer, StageCritic, StageWriter}, agents)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsCompleted))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.RunsFailed))
}

func TestPipeline_Execute_EmptyBackends(t *testing.T) {
	metrics := observability.NewMetrics("test_agents_pipeline_empty")
	model := &fakeModel{}
	p := NewPipeline(New(model, &fakeGatherer{}), WithPipelineMetrics(metrics))

	state, err := p.Execute(context.Background(), "nothing out there")
	require.NoError(t, err)

	assert.Equal(t, domain.ExecutionError, state.ExecutionStatus)
	assert.Equal(t, "Search failed - no results found", state.ErrorMessage)
	assert.Empty(t, state.Findings)
	assert.Empty(t, state.Sources)
	assert.Empty(t, state.Report)
	assert.Equal(t, domain.VerificationNotStarted, state.VerificationStatus)
	assert.Nil(t, state.ReportMetadata)
	assert.Empty(t, model.prompts, "no model calls without sources")
	assert.Equal(t, StageWriter, state.CurrentAgent)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsFailed))
}

func TestPipeline_Observer(t *testing.T) {
	var events []StageEvent
	p := NewPipeline(
		New(&fakeModel{}, &fakeGatherer{web: webSources(1)}),
		WithStageObserver(func(_ context.Context, ev StageEvent) {
			events = append(events, ev)
		}),
	)

	_, err := p.Execute(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, events, 8)
	assert.Equal(t, StageResearcher, events[0].Stage)
	assert.Equal(t, PhaseStarted, events[0].Phase)
	assert.Equal(t, domain.ExecutionIdle, events[0].State.ExecutionStatus)
	assert.Equal(t, PhaseFinished, events[1].Phase)
	assert.Len(t, events[1].State.Sources, 1)
	assert.Equal(t, StageWriter, events[7].Stage)
	assert.Equal(t, 3, events[7].Index)
	assert.Equal(t, 4, events[7].Total)
	assert.Equal(t, domain.ExecutionCompleted, events[7].State.ExecutionStatus)
}

func TestPipeline_RunDoesNotMutateInput(t *testing.T) {
	p := NewPipeline(New(&fakeModel{}, &fakeGatherer{web: webSources(2)}))

	in := domain.NewWorkflowState("q")
	out, err := p.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, domain.ExecutionIdle, in.ExecutionStatus)
	assert.Empty(t, in.Sources)
	assert.Equal(t, domain.ExecutionCompleted, out.ExecutionStatus)
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	p := NewPipeline(
		New(&fakeModel{}, &fakeGatherer{web: webSources(1)}),
		WithStageObserver(func(_ context.Context, ev StageEvent) {
			if ev.Phase == PhaseFinished {
				seen = append(seen, ev.Stage)
				if ev.Stage == StageAnalyzer {
					cancel()
				}
			}
		}),
	)

	state, err := p.Execute(ctx, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "before critic")
	assert.Equal(t, []string{StageResearcher, StageAnalyzer}, seen)
	assert.Len(t, state.Findings, 1)
	assert.Equal(t, domain.VerificationNotStarted, state.VerificationStatus)
}

func TestPipeline_TimestampsMonotonic(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := 0
	orig := domain.Now
	// A clock that jumps backwards halfway through the run.
	domain.Now = func() time.Time {
		ticks++
		if ticks == 5 {
			return base.Add(-time.Hour)
		}
		return base.Add(time.Duration(ticks) * time.Second)
	}
	t.Cleanup(func() { domain.Now = orig })

	p := NewPipeline(New(&fakeModel{}, &fakeGatherer{web: webSources(1)}))
	state, err := p.Execute(context.Background(), "q")
	require.NoError(t, err)

	assert.False(t, state.UpdatedAt.Before(state.CreatedAt))
	assert.True(t, state.UpdatedAt.After(base))
}
