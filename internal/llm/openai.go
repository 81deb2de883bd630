package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAIMaxTokens  = 2048
	defaultOpenAIRetryDelay = 2 * time.Second
)

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o-mini").
	Model string
	// BaseURL is the API base URL (empty means default). Any OpenAI-compatible
	// endpoint works here.
	BaseURL string
}

// OpenAIProvider implements Model using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// NewOpenAIProvider creates a new OpenAI chat completions provider.
func NewOpenAIProvider(cfg OpenAIConfig, temperature float64, timeout time.Duration, maxRetries int) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = firstNonEmpty(cfg.BaseURL, defaultOpenAIBaseURL)
	clientCfg.HTTPClient = newProviderHTTPClient(timeout)

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       firstNonEmpty(cfg.Model, defaultOpenAIModel),
		temperature: temperature,
		maxRetries:  max(maxRetries, 0),
		retryDelay:  defaultOpenAIRetryDelay,
	}
}

// Invoke sends prompt as a single user message and returns the first choice.
// Transient errors (5xx and 429) are retried with exponential backoff.
func (p *OpenAIProvider) Invoke(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(p.temperature),
		MaxTokens:   defaultOpenAIMaxTokens,
	}

	return invokeWithRetry(ctx, p.Provider(), p.maxRetries, p.retryDelay, func(ctx context.Context) (string, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", convertOpenAIError(ctx, err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// Provider returns the provider name.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Name returns the model identifier being used.
func (p *OpenAIProvider) Name() string {
	return p.model
}

// convertOpenAIError maps client errors onto APIError so retry and metrics
// classification work the same for every provider.
func convertOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("openai: request aborted: %w", ctx.Err())
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		out := &APIError{
			Provider:   "openai",
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Type:       apiErr.Type,
		}
		if apiErr.Code != nil {
			out.Code = fmt.Sprint(apiErr.Code)
		}
		return out
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{
			Provider:   "openai",
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
		}
	}

	return networkError("openai", "request failed", err)
}
