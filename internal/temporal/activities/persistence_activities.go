package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/helixir/research-agent-service/internal/repository"
)

// PersistenceActivities stores workflow states between stages.
// Methods on this struct are registered as Temporal activities via the worker.
type PersistenceActivities struct {
	repo repository.StateRepository
}

// NewPersistenceActivities creates a PersistenceActivities.
func NewPersistenceActivities(repo repository.StateRepository) *PersistenceActivities {
	return &PersistenceActivities{repo: repo}
}

// SaveState upserts the state document.
func (a *PersistenceActivities) SaveState(ctx context.Context, input SaveStateInput) error {
	logger := activity.GetLogger(ctx)
	if input.State == nil {
		return temporal.NewNonRetryableApplicationError("state is required", "InvalidInput", nil)
	}

	if err := a.repo.Save(ctx, input.State); err != nil {
		logger.Error("failed to save state",
			"runID", input.State.ID,
			"currentAgent", input.State.CurrentAgent,
			"error", err,
		)
		return fmt.Errorf("save state %s: %w", input.State.ID, err)
	}

	logger.Debug("state saved",
		"runID", input.State.ID,
		"currentAgent", input.State.CurrentAgent,
		"executionStatus", input.State.ExecutionStatus,
	)
	return nil
}
