package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	runIDKey      contextKey = "run_id"
	stageKey      contextKey = "stage"
	workflowIDKey contextKey = "workflow_id"
	wfRunIDKey    contextKey = "workflow_run_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithRunID adds a research run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext retrieves the research run ID from context.
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

// WithStage adds the current pipeline stage to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext retrieves the current pipeline stage from context.
func StageFromContext(ctx context.Context) string {
	return stringValue(ctx, stageKey)
}

// WithWorkflow adds workflow ID and run ID to the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	ctx = context.WithValue(ctx, wfRunIDKey, runID)
	return ctx
}

// WorkflowFromContext retrieves workflow ID and run ID from context.
// Returns empty strings if not present.
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	return stringValue(ctx, workflowIDKey), stringValue(ctx, wfRunIDKey)
}

// RunContext contains the identifiers attached to a research run.
type RunContext struct {
	RequestID     string
	RunID         string
	Stage         string
	WorkflowID    string
	WorkflowRunID string
}

// WithRunContextFull adds every non-empty field of rc to the context.
func WithRunContextFull(ctx context.Context, rc RunContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.RunID != "" {
		ctx = WithRunID(ctx, rc.RunID)
	}
	if rc.Stage != "" {
		ctx = WithStage(ctx, rc.Stage)
	}
	if rc.WorkflowID != "" || rc.WorkflowRunID != "" {
		ctx = WithWorkflow(ctx, rc.WorkflowID, rc.WorkflowRunID)
	}
	return ctx
}

// RunContextFromContext extracts all run identifiers from the context.
func RunContextFromContext(ctx context.Context) RunContext {
	workflowID, wfRunID := WorkflowFromContext(ctx)
	return RunContext{
		RequestID:     RequestIDFromContext(ctx),
		RunID:         RunIDFromContext(ctx),
		Stage:         StageFromContext(ctx),
		WorkflowID:    workflowID,
		WorkflowRunID: wfRunID,
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
