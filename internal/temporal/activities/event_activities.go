package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/events"
)

// EventActivities publishes run lifecycle events. The workflow calls these
// fire-and-forget: a publishing failure never fails the run.
// Methods on this struct are registered as Temporal activities via the worker.
type EventActivities struct {
	publisher events.Publisher
	emitter   *events.Emitter
}

// NewEventActivities creates an EventActivities.
func NewEventActivities(publisher events.Publisher, emitter *events.Emitter) *EventActivities {
	if emitter == nil {
		emitter = events.NewEmitter(events.EmitterConfig{})
	}
	return &EventActivities{publisher: publisher, emitter: emitter}
}

// PublishStarted publishes research.started.
func (a *EventActivities) PublishStarted(ctx context.Context, input PublishStartedInput) error {
	event, err := a.emitter.Started(input.State)
	if err != nil {
		return nonRetryable(err)
	}
	return a.publish(ctx, event)
}

// PublishFinished publishes research.completed, or research.failed when the
// run ended in the error status.
func (a *EventActivities) PublishFinished(ctx context.Context, input PublishFinishedInput) error {
	event, err := a.emitter.Finished(input.State, input.Duration)
	if err != nil {
		return nonRetryable(err)
	}
	return a.publish(ctx, event)
}

// PublishCancelled publishes research.cancelled.
func (a *EventActivities) PublishCancelled(ctx context.Context, input PublishCancelledInput) error {
	event, err := a.emitter.Cancelled(input.RunID, input.Reason)
	if err != nil {
		return nonRetryable(err)
	}
	return a.publish(ctx, event)
}

func (a *EventActivities) publish(ctx context.Context, event *domain.ResearchEvent) error {
	logger := activity.GetLogger(ctx)
	logger.Info("publishing event",
		"eventType", event.EventType,
		"eventID", event.EventID,
		"runID", event.RunID,
	)

	if err := a.publisher.Publish(ctx, event); err != nil {
		logger.Error("failed to publish event",
			"eventType", event.EventType,
			"runID", event.RunID,
			"error", err,
		)
		return fmt.Errorf("publish event %s: %w", event.EventType, err)
	}
	return nil
}

func nonRetryable(err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInput", err)
}
