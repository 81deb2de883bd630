package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/observability"
)

// Instrumented wraps a Model with a per-call timeout, structured logging and
// Prometheus metrics. The operation label is read from the context.
type Instrumented struct {
	next    Model
	timeout time.Duration
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// InstrumentedOption configures an Instrumented model.
type InstrumentedOption func(*Instrumented)

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) InstrumentedOption {
	return func(m *Instrumented) {
		m.timeout = d
	}
}

// WithLogger sets the logger used for call logging.
func WithLogger(logger zerolog.Logger) InstrumentedOption {
	return func(m *Instrumented) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) InstrumentedOption {
	return func(m *Instrumented) {
		m.metrics = metrics
	}
}

// NewInstrumented wraps next.
func NewInstrumented(next Model, opts ...InstrumentedOption) *Instrumented {
	m := &Instrumented{
		next:   next,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().
		Str("component", "llm").
		Str("provider", next.Provider()).
		Str("model", next.Name()).
		Logger()
	return m
}

// Invoke calls the wrapped model.
func (m *Instrumented) Invoke(ctx context.Context, prompt string) (string, error) {
	operation := OperationFromContext(ctx)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := m.next.Invoke(ctx, prompt)
	elapsed := time.Since(start)

	logger := observability.WithRequestContext(m.logger, ctx)
	if err != nil {
		kind := errorType(err)
		logger.Warn().
			Err(err).
			Str("operation", operation).
			Str("error_type", kind).
			Dur("duration", elapsed).
			Msg("model call failed")
		if m.metrics != nil {
			m.metrics.RecordLLMRequestFailed(operation, m.next.Name(), kind)
		}
		return "", err
	}

	logger.Debug().
		Str("operation", operation).
		Int("prompt_chars", len(prompt)).
		Int("reply_chars", len(reply)).
		Dur("duration", elapsed).
		Msg("model call completed")
	if m.metrics != nil {
		m.metrics.RecordLLMRequest(operation, m.next.Name(), elapsed.Seconds())
	}
	return reply, nil
}

// Provider returns the wrapped provider name.
func (m *Instrumented) Provider() string {
	return m.next.Provider()
}

// Name returns the wrapped model identifier.
func (m *Instrumented) Name() string {
	return m.next.Name()
}
