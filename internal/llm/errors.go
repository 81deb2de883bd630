package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty model response")

// errTypeNetwork labels failures where no HTTP response was received.
const errTypeNetwork = "network_error"

// APIError is a provider failure normalized across Ollama, OpenAI and
// Anthropic. StatusCode 0 means the request never got a response.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	// Type is the provider's error class, e.g. "rate_limit_error".
	Type string
	// Code is the provider-specific error code, when one is sent.
	Code string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}

// IsTransient reports whether a retry may succeed: network failures, 429
// and any 5xx.
func (e *APIError) IsTransient() bool {
	switch {
	case e.StatusCode == 0, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= http.StatusInternalServerError
	}
}

// networkError wraps a transport failure as a transient APIError.
func networkError(provider, op string, err error) *APIError {
	return &APIError{
		Provider: provider,
		Message:  fmt.Sprintf("%s: %v", op, err),
		Type:     errTypeNetwork,
	}
}

func isTransientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsTransient()
}

// errorType returns the metrics label for a failed call.
func errorType(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type != "" {
			return apiErr.Type
		}
		return fmt.Sprintf("status_%d", apiErr.StatusCode)
	}
	if errors.Is(err, ErrEmptyResponse) {
		return "empty_response"
	}
	if isTimeout(err) {
		return "timeout"
	}
	return "unknown"
}
