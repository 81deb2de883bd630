package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicProviderName = "anthropic"
	anthropicAPIVersion   = "2023-06-01"
	anthropicMessagesPath = "/v1/messages"

	// defaultAnthropicMaxTokens caps the reply. Reports are the longest output.
	defaultAnthropicMaxTokens = 2048

	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-latest"

	// maxAnthropicBody bounds how much of a reply is read.
	maxAnthropicBody = 10 << 20
)

// Wire types for the Messages API. Only the fields the stages need are mapped.
type (
	messagesRequest struct {
		Model       string             `json:"model"`
		MaxTokens   int                `json:"max_tokens"`
		Messages    []anthropicMessage `json:"messages"`
		Temperature float64            `json:"temperature"`
	}

	anthropicMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	contentBlock struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	}

	messagesResponse struct {
		ID         string         `json:"id"`
		Type       string         `json:"type"`
		Role       string         `json:"role"`
		Content    []contentBlock `json:"content"`
		Model      string         `json:"model"`
		StopReason string         `json:"stop_reason"`
	}

	anthropicAPIErrorDetail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}

	anthropicErrorResponse struct {
		Type  string                  `json:"type"`
		Error anthropicAPIErrorDetail `json:"error"`
	}
)

// AnthropicConfig holds the Anthropic provider settings.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AnthropicProvider implements Model over the Anthropic Messages API. There
// is no official Go SDK in use here, so requests are plain JSON over HTTP.
type AnthropicProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// NewAnthropicProvider creates an AnthropicProvider. Empty model and base URL
// fall back to the defaults; a negative maxRetries means no retries.
func NewAnthropicProvider(cfg AnthropicConfig, temperature float64, timeout time.Duration, maxRetries int) *AnthropicProvider {
	p := &AnthropicProvider{
		httpClient:  newProviderHTTPClient(timeout),
		apiKey:      cfg.APIKey,
		model:       firstNonEmpty(cfg.Model, defaultAnthropicModel),
		baseURL:     strings.TrimRight(firstNonEmpty(cfg.BaseURL, defaultAnthropicBaseURL), "/"),
		temperature: temperature,
		maxRetries:  max(maxRetries, 0),
		retryDelay:  time.Second,
	}
	return p
}

// Invoke sends prompt as one user turn and returns the reply text. Transient
// failures (network, 429, 5xx including 529 overloaded) are retried with
// exponential backoff.
func (p *AnthropicProvider) Invoke(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:       p.model,
		MaxTokens:   defaultAnthropicMaxTokens,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}

	return invokeWithRetry(ctx, anthropicProviderName, p.maxRetries, p.retryDelay, func(ctx context.Context) (string, error) {
		msg, err := p.post(ctx, payload)
		if err != nil {
			return "", err
		}
		return replyText(msg)
	})
}

// Provider returns "anthropic".
func (p *AnthropicProvider) Provider() string { return anthropicProviderName }

// Name returns the model identifier.
func (p *AnthropicProvider) Name() string { return p.model }

func (p *AnthropicProvider) post(ctx context.Context, payload []byte) (*messagesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+anthropicMessagesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("anthropic: request aborted: %w", ctx.Err())
		}
		return nil, networkError(anthropicProviderName, "send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnthropicBody))
	if err != nil {
		return nil, networkError(anthropicProviderName, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAnthropicError(resp.StatusCode, body)
	}

	var msg messagesResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	return &msg, nil
}

// replyText joins the text blocks of a reply. Tool and thinking blocks are
// skipped.
func replyText(msg *messagesResponse) (string, error) {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("anthropic: %w (stop_reason %q)", ErrEmptyResponse, msg.StopReason)
	}
	return strings.Join(parts, "\n"), nil
}

// decodeAnthropicError prefers the typed error envelope and falls back to the
// raw body.
func decodeAnthropicError(status int, body []byte) *APIError {
	out := &APIError{Provider: anthropicProviderName, StatusCode: status, Message: strings.TrimSpace(string(body))}
	var env anthropicErrorResponse
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		out.Type = env.Error.Type
		out.Message = env.Error.Message
	}
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}
