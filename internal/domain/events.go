package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for research run lifecycle events.
const (
	EventTypeResearchStarted   = "research.started"
	EventTypeResearchCompleted = "research.completed"
	EventTypeResearchFailed    = "research.failed"
	EventTypeResearchCancelled = "research.cancelled"
)

// ResearchEvent is a lifecycle event emitted for a research run.
type ResearchEvent struct {
	EventID      string          `json:"event_id"`
	EventVersion int             `json:"event_version"`
	EventType    string          `json:"event_type"`
	RunID        uuid.UUID       `json:"run_id"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewResearchEvent creates a new event for the given run.
// The payload is JSON-serialized automatically.
func NewResearchEvent(eventType string, runID uuid.UUID, payload interface{}) (*ResearchEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &ResearchEvent{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		RunID:        runID,
		Payload:      payloadBytes,
		CreatedAt:    Now(),
	}, nil
}

// ResearchStartedPayload is the payload for research.started events.
type ResearchStartedPayload struct {
	RunID uuid.UUID `json:"run_id"`
	Query string    `json:"query"`
}

// ResearchCompletedPayload is the payload for research.completed events.
type ResearchCompletedPayload struct {
	RunID                 uuid.UUID     `json:"run_id"`
	Query                 string        `json:"query"`
	SourceCount           int           `json:"source_count"`
	FindingCount          int           `json:"finding_count"`
	VerificationCompleted bool          `json:"verification_completed"`
	Duration              time.Duration `json:"duration_ns"`
}

// ResearchFailedPayload is the payload for research.failed events.
type ResearchFailedPayload struct {
	RunID uuid.UUID `json:"run_id"`
	Query string    `json:"query"`
	Error string    `json:"error"`
	Stage string    `json:"stage"`
}

// ResearchCancelledPayload is the payload for research.cancelled events.
type ResearchCancelledPayload struct {
	RunID  uuid.UUID `json:"run_id"`
	Reason string    `json:"reason,omitempty"`
}
