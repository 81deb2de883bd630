// Package domain provides the core models of the research agent service: the
// sources gathered for a query, the findings derived from them, and the
// workflow state threaded through the research pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies which search backend produced a source.
type SourceType string

const (
	// SourceTypeWeb is a result from the general web search backend.
	SourceTypeWeb SourceType = "web"
	// SourceTypeWikipedia is a result from the encyclopedic backend.
	SourceTypeWikipedia SourceType = "wikipedia"
)

// Static reliability priors assigned by source type.
const (
	WikipediaReliability = 0.9
	WebReliability       = 0.6
)

// IsValid returns true if the source type is a known value.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeWeb, SourceTypeWikipedia:
		return true
	default:
		return false
	}
}

// DefaultReliability returns the fixed reliability prior for the source type.
func (s SourceType) DefaultReliability() float64 {
	if s == SourceTypeWikipedia {
		return WikipediaReliability
	}
	return WebReliability
}

// VerificationStatus tracks the Critic stage's progress.
type VerificationStatus string

const (
	VerificationNotStarted VerificationStatus = "not_started"
	VerificationInProgress VerificationStatus = "in_progress"
	VerificationCompleted  VerificationStatus = "completed"
)

// IsValid returns true if the verification status is a known value.
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationNotStarted, VerificationInProgress, VerificationCompleted:
		return true
	default:
		return false
	}
}

// ExecutionStatus tracks the pipeline run as a whole.
type ExecutionStatus string

const (
	ExecutionIdle      ExecutionStatus = "idle"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionError     ExecutionStatus = "error"
)

// IsValid returns true if the execution status is a known value.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionIdle, ExecutionRunning, ExecutionCompleted, ExecutionError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status is a final state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionError
}

// Source is a normalized search result with provenance and a reliability prior.
// Sources are never modified after creation.
type Source struct {
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	URL              string     `json:"url"`
	ReliabilityScore float64    `json:"reliability_score"`
	SourceType       SourceType `json:"source_type"`
}

// NewSource creates a source carrying the static prior for its type.
func NewSource(sourceType SourceType, title, content, url string) Source {
	return Source{
		Title:            title,
		Content:          content,
		URL:              url,
		ReliabilityScore: sourceType.DefaultReliability(),
		SourceType:       sourceType,
	}
}

// Finding is a model-derived extraction tied to the sources it came from.
type Finding struct {
	Topic       string   `json:"topic"`
	FindingText string   `json:"finding_text"`
	Sources     []Source `json:"sources"`
	Verified    bool     `json:"verified"`
}

// FirstSourceTitle returns the title of the first source, or "Unknown".
func (f Finding) FirstSourceTitle() string {
	if len(f.Sources) == 0 {
		return "Unknown"
	}
	return f.Sources[0].Title
}

// HistoryEntry is one line of the append-only run log.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
}

// ReportMetadata summarizes the inputs behind a written report.
type ReportMetadata struct {
	Query                 string `json:"query"`
	SourceCount           int    `json:"source_count"`
	FindingCount          int    `json:"finding_count"`
	VerificationCompleted bool   `json:"verification_completed"`
}

// WorkflowState is the single record threaded through every pipeline stage.
// It is owned by exactly one goroutine at a time; stages receive a clone and
// hand back the updated value.
type WorkflowState struct {
	ID                  uuid.UUID          `json:"id"`
	Query               string             `json:"query"`
	Sources             []Source           `json:"sources"`
	Findings            []Finding          `json:"findings"`
	Criticism           string             `json:"criticism"`
	ContradictionsFound []string           `json:"contradictions_found"`
	VerificationStatus  VerificationStatus `json:"verification_status"`
	Report              string             `json:"report"`
	ReportMetadata      *ReportMetadata    `json:"report_metadata,omitempty"`
	History             []HistoryEntry     `json:"history"`
	CurrentAgent        string             `json:"current_agent"`
	ExecutionStatus     ExecutionStatus    `json:"execution_status"`
	ErrorMessage        string             `json:"error_message,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Now returns the current time in UTC. Tests may replace it.
var Now = func() time.Time {
	return time.Now().UTC()
}

// NewWorkflowState creates an idle state for a fresh query.
func NewWorkflowState(query string) *WorkflowState {
	now := Now()
	return &WorkflowState{
		ID:                  uuid.New(),
		Query:               query,
		Sources:             []Source{},
		Findings:            []Finding{},
		ContradictionsFound: []string{},
		VerificationStatus:  VerificationNotStarted,
		History:             []HistoryEntry{},
		ExecutionStatus:     ExecutionIdle,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Touch advances UpdatedAt. It never moves the timestamp backwards.
func (s *WorkflowState) Touch() {
	now := Now()
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// AddHistory appends an entry to the run log and touches the state.
func (s *WorkflowState) AddHistory(agent, action, result string) {
	s.History = append(s.History, HistoryEntry{
		Timestamp: Now(),
		Agent:     agent,
		Action:    action,
		Result:    result,
	})
	s.Touch()
}

// Begin marks a stage as the current agent and moves to status. An empty
// status leaves the execution status alone.
func (s *WorkflowState) Begin(agent string, status ExecutionStatus) {
	s.CurrentAgent = agent
	if status != "" {
		s.SetStatus(status)
	}
	s.Touch()
}

// SetStatus moves the run to status. The error status is sticky: once a
// stage has failed, later stages cannot move the run back to running or
// forward to completed.
func (s *WorkflowState) SetStatus(status ExecutionStatus) {
	if s.ExecutionStatus == ExecutionError {
		return
	}
	s.ExecutionStatus = status
	s.Touch()
}

// Fail records an error message and moves the run to the error status.
func (s *WorkflowState) Fail(message string) {
	s.ErrorMessage = message
	s.ExecutionStatus = ExecutionError
	s.Touch()
}

// HasFailed returns true if a stage has set the error status.
func (s *WorkflowState) HasFailed() bool {
	return s.ExecutionStatus == ExecutionError
}

// AllFindingSources flattens the sources referenced by every finding,
// preserving finding order.
func (s *WorkflowState) AllFindingSources() []Source {
	var out []Source
	for _, f := range s.Findings {
		out = append(out, f.Sources...)
	}
	return out
}

// CountSources returns the number of sources per type.
func (s *WorkflowState) CountSources() map[SourceType]int {
	counts := make(map[SourceType]int, 2)
	for _, src := range s.Sources {
		counts[src.SourceType]++
	}
	return counts
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s *WorkflowState) Clone() *WorkflowState {
	if s == nil {
		return nil
	}
	c := *s
	c.Sources = cloneSources(s.Sources)
	if s.Findings != nil {
		c.Findings = make([]Finding, len(s.Findings))
		for i, f := range s.Findings {
			f.Sources = cloneSources(f.Sources)
			c.Findings[i] = f
		}
	}
	if s.ContradictionsFound != nil {
		c.ContradictionsFound = append([]string{}, s.ContradictionsFound...)
	}
	if s.History != nil {
		c.History = append([]HistoryEntry{}, s.History...)
	}
	if s.ReportMetadata != nil {
		md := *s.ReportMetadata
		c.ReportMetadata = &md
	}
	return &c
}

func cloneSources(in []Source) []Source {
	if in == nil {
		return nil
	}
	return append([]Source{}, in...)
}
