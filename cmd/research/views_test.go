package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-agent-service/internal/agents"
	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/domain"
)

func sampleState() *domain.WorkflowState {
	s := domain.NewWorkflowState("ocean acidification")
	s.Sources = []domain.Source{
		domain.NewSource(domain.SourceTypeWikipedia, "Ocean acidification", "pH decline", "https://en.wikipedia.org/wiki/Ocean_acidification"),
		domain.NewSource(domain.SourceTypeWeb, "NOAA overview", "Carbonate chemistry", "https://noaa.gov/oa"),
	}
	s.Findings = []domain.Finding{
		{Topic: "ocean acidification", FindingText: "Surface pH fell by 0.1 units.", Sources: s.Sources[:1], Verified: true},
	}
	s.Criticism = "Sources agree."
	s.ContradictionsFound = []string{"Rate of decline differs"}
	s.VerificationStatus = domain.VerificationCompleted
	s.AddHistory(agents.StageResearcher, "Gathered sources", "Found 2 sources")
	s.Report = "# Ocean Acidification\n\nSurface pH fell."
	s.ExecutionStatus = domain.ExecutionCompleted
	return s
}

func TestSummaryView(t *testing.T) {
	s := sampleState()
	out := summaryView(s)

	assert.Contains(t, out, "ocean acidification")
	assert.Contains(t, out, s.ID.String())
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "2 (1 wikipedia, 1 web)")
	assert.NotContains(t, out, "Error")

	s.Fail("Error in researcher agent: boom")
	assert.Contains(t, summaryView(s), "Error in researcher agent: boom")
}

func TestSectionViews(t *testing.T) {
	s := sampleState()

	sources := sourcesView(s)
	assert.Contains(t, sources, "Ocean acidification")
	assert.Contains(t, sources, "[wikipedia, 90%]")
	assert.Contains(t, sources, "[web, 60%]")

	findings := findingsView(s)
	assert.Contains(t, findings, "Surface pH fell by 0.1 units.")
	assert.Contains(t, findings, "verified")

	validation := validationView(s)
	assert.Contains(t, validation, "Sources agree.")
	assert.Contains(t, validation, "Contradictions found: 1")

	history := historyView(s)
	assert.Contains(t, history, "Researcher")
	assert.Contains(t, history, "Found 2 sources")

	empty := domain.NewWorkflowState("nothing")
	assert.Contains(t, sourcesView(empty), "No sources retrieved")
	assert.Contains(t, findingsView(empty), "No findings analyzed yet")
	assert.Contains(t, validationView(empty), "No criticism available")
	assert.Contains(t, historyView(empty), "No history")
}

func TestProgressLine(t *testing.T) {
	s := sampleState()

	started := progressLine(agents.StageEvent{Stage: agents.StageAnalyzer, Index: 1, Total: 4, Phase: agents.PhaseStarted})
	assert.Contains(t, started, "[2/4]")
	assert.Contains(t, started, "Analyzer ...")

	finished := progressLine(agents.StageEvent{
		Stage:    agents.StageResearcher,
		Index:    0,
		Total:    4,
		Phase:    agents.PhaseFinished,
		State:    s,
		Duration: 1500 * time.Millisecond,
	})
	assert.Contains(t, finished, "Researcher done 1.5s")
	assert.Contains(t, finished, "Found 2 sources")

	s.Fail("boom")
	failed := progressLine(agents.StageEvent{Stage: agents.StageCritic, Index: 2, Total: 4, Phase: agents.PhaseFinished, State: s})
	assert.Contains(t, failed, "error")
}

func TestPrintState(t *testing.T) {
	s := sampleState()

	var buf bytes.Buffer
	require.NoError(t, printState(&buf, s, "sources", 80, "notty"))
	assert.Contains(t, buf.String(), "NOAA overview")
	assert.NotContains(t, buf.String(), "Sources agree.")

	buf.Reset()
	require.NoError(t, printState(&buf, s, "", 80, "notty"))
	out := buf.String()
	for _, want := range []string{"NOAA overview", "Surface pH fell by 0.1 units.", "Sources agree.", "Found 2 sources", "Ocean Acidification"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, printState(&buf, domain.NewWorkflowState("empty run"), "report", 80, "notty"))
	assert.Contains(t, buf.String(), "No report generated yet")

	assert.Error(t, printState(&buf, s, "appendix", 80, "notty"))
	assert.Error(t, printState(&buf, s, "report", 80, "sepia"))
}

func TestApplyModelOverrides(t *testing.T) {
	cfg := config.LLMConfig{Provider: config.ProviderOllama, Temperature: 0.7}

	require.NoError(t, applyModelOverrides(&cfg, "mistral", 0.2))
	assert.Equal(t, "mistral", cfg.Ollama.Model)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)

	require.NoError(t, applyModelOverrides(&cfg, "", -1))
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9, "negative temperature leaves the setting alone")

	cfg.Provider = config.ProviderOpenAI
	require.NoError(t, applyModelOverrides(&cfg, "gpt-4o", -1))
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)

	assert.Error(t, applyModelOverrides(&cfg, "", 2.5))

	cfg.Provider = "unknown"
	assert.Error(t, applyModelOverrides(&cfg, "x", -1))
}

func TestDefaultStatePath(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.Local)
	assert.Equal(t, filepath.Join("runs", "research_20260314_150926.json"), defaultStatePath("runs", now))
	assert.Equal(t, "research_20260314_150926.json", defaultStatePath("", now))
}
