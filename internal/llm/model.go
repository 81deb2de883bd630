// Package llm provides the language model clients used by every pipeline
// stage of the research agent service.
//
// All providers satisfy Model: a single prompt goes in and the raw reply text
// comes out. Stages never parse structured output from the model, so the
// interface stays a plain string round trip.
//
//	model, err := llm.NewModel(llm.FactoryConfig{Provider: "ollama", ...})
//	reply, err := model.Invoke(llm.WithOperation(ctx, llm.OperationRelevance), prompt)
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Model invokes a language model with a single prompt.
type Model interface {
	// Invoke sends prompt and returns the model's reply text.
	Invoke(ctx context.Context, prompt string) (string, error)

	// Provider returns the provider name (e.g. "ollama").
	Provider() string

	// Name returns the model identifier.
	Name() string
}

// Operation labels used for logging and metrics.
const (
	OperationRelevance = "relevance"
	OperationSummarize = "summarize"
	OperationCritique  = "critique"
	OperationReport    = "report"
)

type operationKey struct{}

// WithOperation tags ctx with the pipeline operation a model call serves.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// OperationFromContext returns the operation tag, or "unknown".
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// invokeWithRetry calls fn, retrying transient failures up to maxRetries
// times with exponential backoff. Context cancellation is respected between
// attempts.
func invokeWithRetry(ctx context.Context, provider string, maxRetries int, retryDelay time.Duration, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%s: context cancelled during retry: %w", provider, ctx.Err())
			case <-time.After(delay):
			}
		}

		reply, err := fn(ctx)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !isTransientError(err) {
			return "", err
		}
	}

	if maxRetries == 0 {
		return "", lastErr
	}
	return "", fmt.Errorf("%s: all %d retries exhausted: %w", provider, maxRetries, lastErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// newProviderHTTPClient is the pooled client shared by the HTTP based
// providers. A non-positive timeout falls back to one minute.
func newProviderHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
