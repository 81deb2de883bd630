package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	typed := &APIError{Provider: "openai", StatusCode: 429, Message: "rate limit exceeded", Type: "rate_limit_error"}
	assert.Equal(t, "openai: API error (status 429, type rate_limit_error): rate limit exceeded", typed.Error())

	untyped := &APIError{Provider: "anthropic", StatusCode: 500, Message: "internal server error", Code: "E500"}
	assert.Equal(t, "anthropic: API error (status 500): internal server error", untyped.Error(),
		"the provider code is kept on the struct but not printed")
}

func TestAPIError_IsTransient(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]bool{
		0:   true,
		429: true,
		500: true,
		502: true,
		529: true,
		599: true,
		200: false,
		400: false,
		401: false,
		404: false,
		422: false,
	} {
		assert.Equal(t, want, (&APIError{Provider: "p", StatusCode: status}).IsTransient(), "status %d", status)
	}
}

func TestNetworkError(t *testing.T) {
	t.Parallel()

	err := networkError("ollama", "send request", errors.New("connection refused"))
	assert.Equal(t, 0, err.StatusCode)
	assert.Equal(t, errTypeNetwork, err.Type)
	assert.Contains(t, err.Error(), "send request: connection refused")
	assert.True(t, err.IsTransient())

	wrapped := fmt.Errorf("stage: %w", err)
	assert.True(t, isTransientError(wrapped))
	assert.False(t, isTransientError(errors.New("plain")))
}

func TestErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "typed api error", err: &APIError{StatusCode: 429, Type: "rate_limit_error"}, want: "rate_limit_error"},
		{name: "untyped api error", err: &APIError{StatusCode: 502}, want: "status_502"},
		{name: "wrapped api error", err: fmt.Errorf("x: %w", &APIError{StatusCode: 500, Type: "api_error"}), want: "api_error"},
		{name: "network", err: networkError("openai", "request failed", errors.New("eof")), want: errTypeNetwork},
		{name: "empty response", err: fmt.Errorf("ollama: %w", ErrEmptyResponse), want: "empty_response"},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "other", err: errors.New("boom"), want: "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, errorType(tc.err))
		})
	}
}

func TestInvokeWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		reply, err := invokeWithRetry(context.Background(), "p", 2, 0, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &APIError{Provider: "p", StatusCode: 503}
			}
			return "YES", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "YES", reply)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := invokeWithRetry(context.Background(), "p", 2, 0, func(context.Context) (string, error) {
			calls++
			return "", &APIError{Provider: "p", StatusCode: 401}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("reports exhaustion", func(t *testing.T) {
		t.Parallel()
		_, err := invokeWithRetry(context.Background(), "p", 1, 0, func(context.Context) (string, error) {
			return "", &APIError{Provider: "p", StatusCode: 500}
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all 1 retries exhausted")
	})
}
