package temporal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/api/serviceerror"

	"github.com/helixir/research-agent-service/internal/domain"
)

// Error kinds carried by TemporalError.Kind.
var (
	ErrWorkflowNotFound         = errors.New("workflow not found")
	ErrWorkflowAlreadyStarted   = errors.New("workflow already started")
	ErrWorkflowAlreadyCompleted = errors.New("workflow already completed")
	ErrQueryFailed              = errors.New("query failed")
	ErrClientClosed             = errors.New("client closed")
	ErrConnectionFailed         = errors.New("connection failed")
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrDeadlineExceeded         = errors.New("deadline exceeded")
)

// TemporalError records which client operation failed, against which
// workflow, and how the failure was classified.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	RunID      string
	Err        error
}

func (e *TemporalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Kind)
	switch {
	case e.WorkflowID != "" && e.RunID != "":
		fmt.Fprintf(&b, " [workflowID=%s, runID=%s]", e.WorkflowID, e.RunID)
	case e.WorkflowID != "":
		fmt.Fprintf(&b, " [workflowID=%s]", e.WorkflowID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TemporalError) Unwrap() error { return e.Err }

// Is matches the error's Kind, so callers can test against the sentinels
// and, for resource exhaustion, domain.ErrRateLimited.
func (e *TemporalError) Is(target error) bool { return errors.Is(e.Kind, target) }

// classifiers are tried in order; the first match decides the kind.
var classifiers = []struct {
	match func(error) bool
	kind  error
}{
	{isServiceError[*serviceerror.WorkflowExecutionAlreadyStarted], ErrWorkflowAlreadyStarted},
	{alreadyCompleted, ErrWorkflowAlreadyCompleted},
	{isServiceError[*serviceerror.NotFound], ErrWorkflowNotFound},
	{isServiceError[*serviceerror.NamespaceNotFound], ErrWorkflowNotFound},
	{isServiceError[*serviceerror.InvalidArgument], ErrInvalidArgument},
	{isServiceError[*serviceerror.ResourceExhausted], domain.ErrRateLimited},
	{isServiceError[*serviceerror.QueryFailed], ErrQueryFailed},
	{isServiceError[*serviceerror.DeadlineExceeded], ErrDeadlineExceeded},
	{func(err error) bool { return errors.Is(err, context.DeadlineExceeded) }, ErrDeadlineExceeded},
	{func(err error) bool { return errors.Is(err, context.Canceled) }, ErrClientClosed},
}

func isServiceError[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// alreadyCompleted detects the NotFound the server returns when signalling
// a workflow that has already closed.
func alreadyCompleted(err error) bool {
	var nf *serviceerror.NotFound
	return errors.As(err, &nf) && strings.Contains(nf.Error(), "already completed")
}

// wrapTemporalError classifies an SDK error. Anything unrecognised,
// including Unavailable and PermissionDenied, counts as a connection
// failure.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}
	kind := ErrConnectionFailed
	for _, c := range classifiers {
		if c.match(err) {
			kind = c.kind
			break
		}
	}
	return &TemporalError{Op: op, Kind: kind, WorkflowID: workflowID, RunID: runID, Err: err}
}

func IsWorkflowNotFound(err error) bool       { return errors.Is(err, ErrWorkflowNotFound) }
func IsWorkflowAlreadyStarted(err error) bool { return errors.Is(err, ErrWorkflowAlreadyStarted) }
func IsQueryFailed(err error) bool            { return errors.Is(err, ErrQueryFailed) }
func IsConnectionFailed(err error) bool       { return errors.Is(err, ErrConnectionFailed) }
