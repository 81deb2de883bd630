package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Default values for the Ollama provider.
const (
	defaultOllamaModel   = "llama3.2"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// OllamaConfig holds the parameters needed to create an Ollama provider.
type OllamaConfig struct {
	// Model is the local model name (e.g., "llama3.2").
	Model string
	// BaseURL is the Ollama server URL.
	BaseURL string
}

// OllamaProvider implements Model against a local Ollama server through
// langchaingo.
type OllamaProvider struct {
	llm         llms.Model
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// NewOllamaProvider creates a provider for a locally hosted model.
func NewOllamaProvider(cfg OllamaConfig, temperature float64, timeout time.Duration, maxRetries int) (*OllamaProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	client, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(baseURL),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: failed to create client: %w", err)
	}

	return &OllamaProvider{
		llm:         client,
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  time.Second,
	}, nil
}

// Invoke sends prompt to the local model and returns its reply.
func (p *OllamaProvider) Invoke(ctx context.Context, prompt string) (string, error) {
	return invokeWithRetry(ctx, p.Provider(), p.maxRetries, p.retryDelay, func(ctx context.Context) (string, error) {
		reply, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt, llms.WithTemperature(p.temperature))
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("ollama: request aborted: %w", ctx.Err())
			}
			// Connection failures to the local server are the common case.
			return "", &APIError{
				Provider: "ollama",
				Message:  err.Error(),
				Type:     "request_error",
			}
		}
		if strings.TrimSpace(reply) == "" {
			return "", fmt.Errorf("ollama: %w", ErrEmptyResponse)
		}
		return reply, nil
	})
}

// Provider returns the provider name.
func (p *OllamaProvider) Provider() string {
	return "ollama"
}

// Name returns the model identifier being used.
func (p *OllamaProvider) Name() string {
	return p.model
}
