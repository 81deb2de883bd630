package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/helixir/research-agent-service/internal/domain"
)

// StateRepository stores workflow states keyed by run id.
type StateRepository interface {
	// Save inserts or replaces the state. The state must have an id and a query.
	Save(ctx context.Context, state *domain.WorkflowState) error

	// Get returns the state for id, or domain.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error)

	// List returns states matching filter, newest first, along with the total
	// number of matches ignoring limit and offset.
	List(ctx context.Context, filter StateFilter) ([]*domain.WorkflowState, int64, error)

	// UpdateStatus moves a stored run to status. For ExecutionError the
	// message is recorded as the run's error. The error status is sticky.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, message string) error

	// Delete removes the run, or returns domain.ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
}

// StateFilter selects runs for List.
type StateFilter struct {
	// Status matches any of the given execution statuses. Empty matches all.
	Status []domain.ExecutionStatus

	// Limit caps the page size (default: 100, max: 1000).
	Limit int

	// Offset skips that many matches.
	Offset int
}

// Validate checks statuses and normalizes pagination.
func (f *StateFilter) Validate() error {
	for _, s := range f.Status {
		if !s.IsValid() {
			return domain.NewValidationError("status", fmt.Sprintf("unknown execution status %q", s))
		}
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}

func (f StateFilter) matches(s *domain.WorkflowState) bool {
	if len(f.Status) == 0 {
		return true
	}
	for _, status := range f.Status {
		if s.ExecutionStatus == status {
			return true
		}
	}
	return false
}

func validateState(state *domain.WorkflowState) error {
	if state == nil {
		return domain.NewValidationError("state", "state cannot be nil")
	}
	if state.ID == uuid.Nil {
		return domain.NewValidationError("id", "run ID is required")
	}
	if state.Query == "" {
		return domain.NewValidationError("query", "query is required")
	}
	return nil
}

func validateStatusUpdate(status domain.ExecutionStatus) error {
	if !status.IsValid() {
		return domain.NewValidationError("execution_status", fmt.Sprintf("unknown execution status %q", status))
	}
	return nil
}

// applyStatus mutates state the way UpdateStatus promises.
func applyStatus(state *domain.WorkflowState, status domain.ExecutionStatus, message string) {
	if status == domain.ExecutionError {
		if state.HasFailed() && state.ErrorMessage != "" {
			state.Touch()
			return
		}
		state.Fail(message)
		return
	}
	state.SetStatus(status)
}
