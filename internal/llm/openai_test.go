package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check that OpenAIProvider implements Model.
var _ Model = (*OpenAIProvider)(nil)

// newOpenAITestServer creates an httptest server that responds with the given handler.
func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// newOpenAITestProvider creates an OpenAIProvider configured to use the test server.
func newOpenAITestProvider(t *testing.T, serverURL string, maxRetries int) *OpenAIProvider {
	t.Helper()
	cfg := OpenAIConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o-mini",
		BaseURL: serverURL + "/v1",
	}
	provider := NewOpenAIProvider(cfg, 0.3, 10*time.Second, maxRetries)
	provider.retryDelay = 10 * time.Millisecond
	return provider
}

func writeChatCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:     "chatcmpl-abc123",
		Object: "chat.completion",
		Model:  "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			},
		},
	})
}

func writeOpenAIError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
			"code":    "test_code",
		},
	})
}

func TestOpenAIProvider_Invoke(t *testing.T) {
	t.Run("sends a single user message and returns the first choice", func(t *testing.T) {
		var receivedReq openai.ChatCompletionRequest
		var receivedAuthHeader, receivedPath string

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			receivedAuthHeader = r.Header.Get("Authorization")
			receivedPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&receivedReq))
			writeChatCompletion(w, "- Finding one\n- Finding two")
		})

		provider := newOpenAITestProvider(t, server.URL, 0)
		reply, err := provider.Invoke(context.Background(), "Analyze this research content")

		require.NoError(t, err)
		assert.Equal(t, "- Finding one\n- Finding two", reply)

		assert.Equal(t, "Bearer test-api-key", receivedAuthHeader)
		assert.Equal(t, "/v1/chat/completions", receivedPath)
		assert.Equal(t, "gpt-4o-mini", receivedReq.Model)
		assert.InDelta(t, 0.3, receivedReq.Temperature, 0.001)
		require.Len(t, receivedReq.Messages, 1)
		assert.Equal(t, openai.ChatMessageRoleUser, receivedReq.Messages[0].Role)
		assert.Equal(t, "Analyze this research content", receivedReq.Messages[0].Content)
	})

	t.Run("empty choice is an error", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatCompletion(w, "")
		})

		_, err := newOpenAITestProvider(t, server.URL, 0).Invoke(context.Background(), "p")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyResponse))
	})

	t.Run("context cancellation stops request", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})

		provider := newOpenAITestProvider(t, server.URL, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := provider.Invoke(ctx, "test query")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "openai:")
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestOpenAIProvider_Invoke_APIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errType   string
		wantCalls int32
	}{
		{name: "unauthorized is not retried", status: http.StatusUnauthorized, errType: "invalid_request_error", wantCalls: 1},
		{name: "rate limit is retried", status: http.StatusTooManyRequests, errType: "rate_limit_error", wantCalls: 3},
		{name: "server error is retried", status: http.StatusInternalServerError, errType: "server_error", wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeOpenAIError(w, tt.status, tt.errType, "boom")
			})

			_, err := newOpenAITestProvider(t, server.URL, 2).Invoke(context.Background(), "p")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "openai", apiErr.Provider)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.errType, apiErr.Type)
			assert.Equal(t, "boom", apiErr.Message)
			assert.Equal(t, "test_code", apiErr.Code)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestOpenAIProvider_Invoke_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeOpenAIError(w, http.StatusServiceUnavailable, "server_error", "busy")
			return
		}
		writeChatCompletion(w, "YES")
	})

	reply, err := newOpenAITestProvider(t, server.URL, 1).Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "YES", reply)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIProvider_Identity(t *testing.T) {
	t.Run("returns configured model", func(t *testing.T) {
		provider := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"}, 0.5, 30*time.Second, 0)
		assert.Equal(t, "openai", provider.Provider())
		assert.Equal(t, "gpt-4o", provider.Name())
	})

	t.Run("returns default model when not configured", func(t *testing.T) {
		provider := NewOpenAIProvider(OpenAIConfig{}, 0.5, 0, -1)
		assert.Equal(t, defaultOpenAIModel, provider.Name())
		assert.Equal(t, 0, provider.maxRetries)
	})
}

func TestIsTransientError(t *testing.T) {
	t.Run("returns true for transient APIError", func(t *testing.T) {
		err := &APIError{StatusCode: http.StatusTooManyRequests}
		assert.True(t, isTransientError(err))
	})

	t.Run("returns true for wrapped transient APIError", func(t *testing.T) {
		err := fmt.Errorf("call failed: %w", &APIError{StatusCode: http.StatusBadGateway})
		assert.True(t, isTransientError(err))
	})

	t.Run("returns false for non-transient APIError", func(t *testing.T) {
		err := &APIError{StatusCode: http.StatusBadRequest}
		assert.False(t, isTransientError(err))
	})

	t.Run("returns false for non-APIError", func(t *testing.T) {
		assert.False(t, isTransientError(context.DeadlineExceeded))
	})
}
