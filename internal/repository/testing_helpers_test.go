package repository

import (
	"time"

	"github.com/helixir/research-agent-service/internal/domain"
)

// newTestState builds a completed run with one finding.
func newTestState(query string) *domain.WorkflowState {
	s := domain.NewWorkflowState(query)
	src := domain.NewSource(domain.SourceTypeWikipedia, "Go", "Go is a language.", "https://en.wikipedia.org/wiki/Go")
	s.Sources = []domain.Source{src}
	s.Findings = []domain.Finding{{Topic: query, FindingText: "- Go compiles fast", Sources: []domain.Source{src}, Verified: true}}
	s.VerificationStatus = domain.VerificationCompleted
	s.Report = "# Go"
	s.ExecutionStatus = domain.ExecutionCompleted
	s.AddHistory("writer", "report", "Compiled final research report")
	return s
}

// newTestStateAt is newTestState with a fixed creation time.
func newTestStateAt(query string, created time.Time) *domain.WorkflowState {
	s := newTestState(query)
	s.CreatedAt = created
	s.UpdatedAt = created
	s.History[0].Timestamp = created
	return s
}
