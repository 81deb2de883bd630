package agents

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/llm"
	"github.com/helixir/research-agent-service/internal/observability"
)

func stateWithFindings(query string, n int) *domain.WorkflowState {
	s := domain.NewWorkflowState(query)
	for i := 0; i < n; i++ {
		src := webSource(fmt.Sprintf("s%d", i))
		s.Sources = append(s.Sources, src)
		s.Findings = append(s.Findings, domain.Finding{
			Topic:       query,
			FindingText: fmt.Sprintf("finding %d %s", i, strings.Repeat("z", 250)),
			Sources:     []domain.Source{src},
		})
	}
	return s
}

func TestCritic_VerifiesFindings(t *testing.T) {
	metrics := observability.NewMetrics("test_agents_critic_ok")
	model := &fakeModel{}
	a := New(model, &fakeGatherer{}, WithMetrics(metrics))

	in := stateWithFindings("q", 2)
	in.Findings[1].Sources[0].URL = "https://arxiv.org/abs/1"
	out := runStage(t, a, StageCritic, in)

	assert.Equal(t, StageCritic, out.CurrentAgent)
	assert.Equal(t, domain.VerificationCompleted, out.VerificationStatus)
	assert.Equal(t, "Overall reliable. Confidence: 80%", out.Criticism)
	require.Len(t, out.Findings, 2)
	for _, f := range out.Findings {
		assert.True(t, f.Verified)
	}
	assert.Empty(t, out.ContradictionsFound)
	assert.Equal(t, "validate", out.History[len(out.History)-1].Action)
	assert.Equal(t, "Validated findings and sources", out.History[len(out.History)-1].Result)
	assert.Equal(t, 1, model.callsFor(llm.OperationCritique))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SourcesValidated.WithLabelValues("trusted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SourcesValidated.WithLabelValues("unverified")))

	// Validation is advisory and leaves stored scores alone.
	assert.Equal(t, domain.WebReliability, out.Findings[1].Sources[0].ReliabilityScore)
	assert.False(t, in.Findings[0].Verified)
}

func TestCritic_PromptLimits(t *testing.T) {
	model := &fakeModel{}
	a := New(model, &fakeGatherer{})

	runStage(t, a, StageCritic, stateWithFindings("topic x", 7))

	prompt := model.lastPrompt(llm.OperationCritique)
	assert.True(t, strings.HasPrefix(prompt, "As a skeptical research critic, evaluate these findings for accuracy and consistency.\nTopic: topic x\n"))
	assert.Equal(t, 5, strings.Count(prompt, "\n- finding "))
	assert.NotContains(t, prompt, "finding 5")
	assert.NotContains(t, prompt, strings.Repeat("z", 200))
	assert.True(t, strings.HasSuffix(prompt, "4. Confidence level (0-100%)"))
}

func TestCritic_NoFindings(t *testing.T) {
	model := &fakeModel{}
	a := New(model, &fakeGatherer{})

	in := domain.NewWorkflowState("q")
	in.ExecutionStatus = domain.ExecutionRunning
	out := runStage(t, a, StageCritic, in)

	assert.Equal(t, StageCritic, out.CurrentAgent)
	assert.Equal(t, domain.VerificationNotStarted, out.VerificationStatus)
	assert.Equal(t, domain.ExecutionRunning, out.ExecutionStatus)
	assert.Empty(t, out.History)
	assert.Empty(t, model.prompts)
}

func TestCritic_ModelError(t *testing.T) {
	a := New(&fakeModel{err: errors.New("timeout")}, &fakeGatherer{})

	out := runStage(t, a, StageCritic, stateWithFindings("q", 1))
	assert.Equal(t, domain.ExecutionError, out.ExecutionStatus)
	assert.Equal(t, "Error in critic agent: timeout", out.ErrorMessage)
	assert.Equal(t, domain.VerificationInProgress, out.VerificationStatus)
	assert.False(t, out.Findings[0].Verified)
}

func TestCritic_RecoversPanic(t *testing.T) {
	a := New(&fakeModel{panicOn: llm.OperationCritique}, &fakeGatherer{})

	out := runStage(t, a, StageCritic, stateWithFindings("q", 1))
	assert.Equal(t, "Error in critic agent: model exploded", out.ErrorMessage)
	assert.Equal(t, domain.VerificationInProgress, out.VerificationStatus)
}
