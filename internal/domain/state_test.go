package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock replaces Now with a controllable clock for the duration of a test.
func fixedClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	prev := Now
	Now = func() time.Time { return current }
	t.Cleanup(func() { Now = prev })
	return &current
}

func TestSourceType_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		input    SourceType
		expected bool
	}{
		{name: "web", input: SourceTypeWeb, expected: true},
		{name: "wikipedia", input: SourceTypeWikipedia, expected: true},
		{name: "paper is not a source type", input: SourceType("paper"), expected: false},
		{name: "empty", input: SourceType(""), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.IsValid())
		})
	}
}

func TestSourceType_DefaultReliability(t *testing.T) {
	assert.Equal(t, 0.9, SourceTypeWikipedia.DefaultReliability())
	assert.Equal(t, 0.6, SourceTypeWeb.DefaultReliability())
	assert.Greater(t, SourceTypeWikipedia.DefaultReliability(), SourceTypeWeb.DefaultReliability())
}

func TestNewSource(t *testing.T) {
	src := NewSource(SourceTypeWikipedia, "Quantum computing", "A quantum computer is...", "https://en.wikipedia.org/wiki/Quantum_computing")

	assert.Equal(t, "Quantum computing", src.Title)
	assert.Equal(t, SourceTypeWikipedia, src.SourceType)
	assert.Equal(t, WikipediaReliability, src.ReliabilityScore)
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   ExecutionStatus
		terminal bool
	}{
		{ExecutionIdle, false},
		{ExecutionRunning, false},
		{ExecutionCompleted, true},
		{ExecutionError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
	assert.False(t, ExecutionStatus("paused").IsValid())
}

func TestVerificationStatus_IsValid(t *testing.T) {
	assert.True(t, VerificationNotStarted.IsValid())
	assert.True(t, VerificationInProgress.IsValid())
	assert.True(t, VerificationCompleted.IsValid())
	assert.False(t, VerificationStatus("done").IsValid())
}

func TestNewWorkflowState(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, start)

	s := NewWorkflowState("test topic")

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, "test topic", s.Query)
	assert.Equal(t, ExecutionIdle, s.ExecutionStatus)
	assert.Equal(t, VerificationNotStarted, s.VerificationStatus)
	assert.Empty(t, s.Sources)
	assert.Empty(t, s.Findings)
	assert.Empty(t, s.History)
	assert.Empty(t, s.ErrorMessage)
	assert.Nil(t, s.ReportMetadata)
	assert.Equal(t, start, s.CreatedAt)
	assert.Equal(t, start, s.UpdatedAt)
}

func TestWorkflowState_AddHistory(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock(t, start)

	s := NewWorkflowState("q")
	*clock = start.Add(time.Second)
	s.AddHistory("researcher", "search", "Found 3 sources (1 Wikipedia, 2 web)")

	require.Len(t, s.History, 1)
	entry := s.History[0]
	assert.Equal(t, "researcher", entry.Agent)
	assert.Equal(t, "search", entry.Action)
	assert.Equal(t, "Found 3 sources (1 Wikipedia, 2 web)", entry.Result)
	assert.Equal(t, start.Add(time.Second), entry.Timestamp)
	assert.Equal(t, start.Add(time.Second), s.UpdatedAt)
}

func TestWorkflowState_TouchIsMonotonic(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock(t, start)

	s := NewWorkflowState("q")
	*clock = start.Add(time.Minute)
	s.Touch()
	assert.Equal(t, start.Add(time.Minute), s.UpdatedAt)

	// A clock that steps backwards must not move UpdatedAt back.
	*clock = start.Add(-time.Hour)
	s.Touch()
	s.AddHistory("critic", "validate", "ok")
	assert.Equal(t, start.Add(time.Minute), s.UpdatedAt)
}

func TestWorkflowState_Fail(t *testing.T) {
	s := NewWorkflowState("q")
	s.Begin("researcher", ExecutionRunning)
	s.Fail("Search failed - no results found")

	assert.True(t, s.HasFailed())
	assert.Equal(t, ExecutionError, s.ExecutionStatus)
	assert.Equal(t, "Search failed - no results found", s.ErrorMessage)
	assert.Equal(t, "researcher", s.CurrentAgent)
}

func TestWorkflowState_Begin(t *testing.T) {
	s := NewWorkflowState("q")

	s.Begin("critic", "")
	assert.Equal(t, "critic", s.CurrentAgent)
	assert.Equal(t, ExecutionIdle, s.ExecutionStatus, "empty status leaves execution status untouched")

	s.Begin("analyzer", ExecutionRunning)
	assert.Equal(t, ExecutionRunning, s.ExecutionStatus)
}

func TestWorkflowState_SetStatus_ErrorIsSticky(t *testing.T) {
	s := NewWorkflowState("q")
	s.Begin("researcher", ExecutionRunning)
	s.Fail("boom")

	s.Begin("analyzer", ExecutionRunning)
	assert.Equal(t, ExecutionError, s.ExecutionStatus)
	assert.Equal(t, "analyzer", s.CurrentAgent)

	s.SetStatus(ExecutionCompleted)
	assert.Equal(t, ExecutionError, s.ExecutionStatus)
	assert.Equal(t, "boom", s.ErrorMessage)
}

func TestWorkflowState_AllFindingSources(t *testing.T) {
	a := NewSource(SourceTypeWeb, "a", "", "https://a.example")
	b := NewSource(SourceTypeWikipedia, "b", "", "https://en.wikipedia.org/wiki/B")
	c := NewSource(SourceTypeWeb, "c", "", "https://c.example")

	s := NewWorkflowState("q")
	s.Findings = []Finding{
		{Topic: "q", FindingText: "one", Sources: []Source{a, b}},
		{Topic: "q", FindingText: "two", Sources: []Source{c}},
	}

	assert.Equal(t, []Source{a, b, c}, s.AllFindingSources())
}

func TestWorkflowState_CountSources(t *testing.T) {
	s := NewWorkflowState("q")
	s.Sources = []Source{
		NewSource(SourceTypeWikipedia, "w", "", ""),
		NewSource(SourceTypeWeb, "x", "", ""),
		NewSource(SourceTypeWeb, "y", "", ""),
	}

	counts := s.CountSources()
	assert.Equal(t, 1, counts[SourceTypeWikipedia])
	assert.Equal(t, 2, counts[SourceTypeWeb])
}

func TestWorkflowState_Clone(t *testing.T) {
	s := NewWorkflowState("q")
	s.Sources = []Source{NewSource(SourceTypeWeb, "a", "content", "https://a.example")}
	s.Findings = []Finding{{Topic: "q", FindingText: "f", Sources: []Source{s.Sources[0]}}}
	s.History = []HistoryEntry{{Agent: "researcher"}}
	s.ReportMetadata = &ReportMetadata{Query: "q", SourceCount: 1}

	c := s.Clone()
	require.Equal(t, s, c)

	c.Sources[0].Title = "changed"
	c.Findings[0].Verified = true
	c.Findings[0].Sources[0].Title = "changed"
	c.History[0].Agent = "writer"
	c.ReportMetadata.SourceCount = 99

	assert.Equal(t, "a", s.Sources[0].Title)
	assert.False(t, s.Findings[0].Verified)
	assert.Equal(t, "a", s.Findings[0].Sources[0].Title)
	assert.Equal(t, "researcher", s.History[0].Agent)
	assert.Equal(t, 1, s.ReportMetadata.SourceCount)

	var nilState *WorkflowState
	assert.Nil(t, nilState.Clone())
}

func TestFinding_FirstSourceTitle(t *testing.T) {
	assert.Equal(t, "Unknown", Finding{}.FirstSourceTitle())
	assert.Equal(t, "Intro", Finding{Sources: []Source{{Title: "Intro"}, {Title: "Other"}}}.FirstSourceTitle())
}

func TestWorkflowState_JSONFieldNames(t *testing.T) {
	s := NewWorkflowState("q")
	s.ReportMetadata = &ReportMetadata{Query: "q", SourceCount: 3, FindingCount: 3, VerificationCompleted: true}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{
		"id", "query", "sources", "findings", "criticism", "contradictions_found",
		"verification_status", "report", "report_metadata", "history",
		"current_agent", "execution_status", "created_at", "updated_at",
	} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "error_message", "empty error message is omitted")

	md := raw["report_metadata"].(map[string]interface{})
	assert.Equal(t, float64(3), md["source_count"])
	assert.Equal(t, true, md["verification_completed"])
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("query", "cannot be empty")
	assert.Equal(t, "validation error: query: cannot be empty", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNotFoundError(t *testing.T) {
	id := uuid.New()
	err := NewNotFoundError("research run", id.String())
	assert.Equal(t, "research run not found: "+id.String(), err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("research run", "abc")
	assert.Equal(t, "research run already exists: abc", err.Error())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestExternalAPIError(t *testing.T) {
	t.Run("error message", func(t *testing.T) {
		err := NewExternalAPIError("wikipedia", 500, "internal server error", assert.AnError)
		assert.Contains(t, err.Error(), "wikipedia API error")
		assert.Contains(t, err.Error(), "500")
		assert.Contains(t, err.Error(), "internal server error")
	})

	t.Run("unwrap returns cause", func(t *testing.T) {
		err := NewExternalAPIError("duckduckgo", 503, "service unavailable", assert.AnError)
		assert.Equal(t, assert.AnError, err.Unwrap())
	})

	t.Run("unwrap returns ErrServiceUnavailable when no cause", func(t *testing.T) {
		err := NewExternalAPIError("brave", 404, "not found", nil)
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})

	t.Run("throttled without cause matches ErrRateLimited", func(t *testing.T) {
		err := NewExternalAPIError("brave", 429, "slow down", nil)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.NotErrorIs(t, err, ErrServiceUnavailable)
	})
}

func TestNewResearchEvent(t *testing.T) {
	runID := uuid.New()
	event, err := NewResearchEvent(EventTypeResearchCompleted, runID, ResearchCompletedPayload{
		RunID:        runID,
		Query:        "test topic",
		SourceCount:  3,
		FindingCount: 3,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.EventVersion)
	assert.Equal(t, EventTypeResearchCompleted, event.EventType)
	assert.Equal(t, runID, event.RunID)

	var payload ResearchCompletedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, 3, payload.SourceCount)
}

func TestNewResearchEvent_MarshalError(t *testing.T) {
	_, err := NewResearchEvent("test.event", uuid.New(), make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chan")
}
