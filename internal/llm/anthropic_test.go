package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Model = (*AnthropicProvider)(nil)

// fakeMessagesAPI answers /v1/messages with reply(n), where n counts calls
// from 1.
func fakeMessagesAPI(t *testing.T, reply func(n int32, w http.ResponseWriter, r *http.Request)) (*AnthropicProvider, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		reply(calls.Add(1), w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "test-api-key",
		Model:   "claude-3-5-haiku-latest",
		BaseURL: srv.URL,
	}, 0.7, 10*time.Second, 2)
	p.retryDelay = 10 * time.Millisecond
	return p, &calls
}

func writeText(w http.ResponseWriter, blocks ...contentBlock) {
	_ = json.NewEncoder(w).Encode(messagesResponse{
		ID:         "msg_test",
		Type:       "message",
		Role:       "assistant",
		Content:    blocks,
		Model:      "claude-3-5-haiku-latest",
		StopReason: "end_turn",
	})
}

func writeAPIError(w http.ResponseWriter, status int, kind, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(anthropicErrorResponse{
		Type:  "error",
		Error: anthropicAPIErrorDetail{Type: kind, Message: msg},
	})
}

func TestAnthropicProvider_Invoke(t *testing.T) {
	t.Parallel()

	p, calls := fakeMessagesAPI(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-3-5-haiku-latest", req.Model)
		assert.Equal(t, defaultAnthropicMaxTokens, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 0.001)
		assert.Equal(t, []anthropicMessage{{Role: "user", Content: "Is this source relevant?"}}, req.Messages)

		writeText(w, contentBlock{Type: "text", Text: "YES"})
	})

	reply, err := p.Invoke(context.Background(), "Is this source relevant?")
	require.NoError(t, err)
	assert.Equal(t, "YES", reply)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnthropicProvider_Invoke_Content(t *testing.T) {
	t.Parallel()

	t.Run("skips non-text blocks", func(t *testing.T) {
		t.Parallel()
		p, _ := fakeMessagesAPI(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			writeText(w, contentBlock{Type: "tool_use"}, contentBlock{Type: "text", Text: "- finding"})
		})
		reply, err := p.Invoke(context.Background(), "summarize")
		require.NoError(t, err)
		assert.Equal(t, "- finding", reply)
	})

	t.Run("no blocks is an empty response", func(t *testing.T) {
		t.Parallel()
		p, _ := fakeMessagesAPI(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			writeText(w)
		})
		_, err := p.Invoke(context.Background(), "summarize")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestAnthropicProvider_Invoke_APIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		kind      string
		wantCalls int32
	}{
		{http.StatusUnauthorized, "authentication_error", 1},
		{http.StatusBadRequest, "invalid_request_error", 1},
		{http.StatusTooManyRequests, "rate_limit_error", 3},
		{529, "overloaded_error", 3},
	}

	for _, tc := range tests {
		t.Run(tc.kind, func(t *testing.T) {
			t.Parallel()
			p, calls := fakeMessagesAPI(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tc.status, tc.kind, "details for "+tc.kind)
			})

			reply, err := p.Invoke(context.Background(), "test query")
			assert.Empty(t, reply)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.kind, apiErr.Type)
			assert.Contains(t, err.Error(), "details for "+tc.kind)
			assert.Equal(t, tc.wantCalls, calls.Load(), "one call plus two retries for transient errors")
		})
	}
}

func TestAnthropicProvider_Invoke_Retries(t *testing.T) {
	t.Parallel()

	t.Run("recovers after transient failures", func(t *testing.T) {
		t.Parallel()
		p, calls := fakeMessagesAPI(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
			if n < 3 {
				writeAPIError(w, http.StatusInternalServerError, "api_error", "internal error")
				return
			}
			writeText(w, contentBlock{Type: "text", Text: "Overall reliability: high"})
		})
		reply, err := p.Invoke(context.Background(), "critique")
		require.NoError(t, err)
		assert.Equal(t, "Overall reliability: high", reply)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("zero retries makes one call", func(t *testing.T) {
		t.Parallel()
		p, calls := fakeMessagesAPI(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		p.maxRetries = 0
		_, err := p.Invoke(context.Background(), "prompt")
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "retries exhausted")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("cancellation interrupts the backoff", func(t *testing.T) {
		t.Parallel()
		p, _ := fakeMessagesAPI(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			writeAPIError(w, http.StatusTooManyRequests, "rate_limit_error", "rate limited")
		})
		p.retryDelay = 500 * time.Millisecond

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		reply, err := p.Invoke(ctx, "test")
		assert.Empty(t, reply)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "context cancelled")
	})
}

func TestAnthropicProvider_Defaults(t *testing.T) {
	t.Parallel()

	p := NewAnthropicProvider(AnthropicConfig{APIKey: "k"}, 0.7, time.Second, -1)
	assert.Equal(t, "anthropic", p.Provider())
	assert.Equal(t, defaultAnthropicModel, p.Name())
	assert.Equal(t, defaultAnthropicBaseURL, p.baseURL)
	assert.Equal(t, 0, p.maxRetries)
}
