package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/observability"
)

// Kafka header names set on every message.
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
	HeaderSource    = "source"
	HeaderRequestID = "request_id"
)

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.ResearchEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, *domain.ResearchEvent) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ MessageWriter = (*kafka.Writer)(nil)

// KafkaPublisher writes events as JSON messages keyed by run id.
type KafkaPublisher struct {
	writer  MessageWriter
	source  string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

var _ Publisher = (*KafkaPublisher)(nil)

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithLogger sets the publisher logger.
func WithLogger(logger zerolog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// WithMetrics records delivery counters.
func WithMetrics(metrics *observability.Metrics) KafkaOption {
	return func(p *KafkaPublisher) {
		p.metrics = metrics
	}
}

// WithSource sets the source header value.
func WithSource(source string) KafkaOption {
	return func(p *KafkaPublisher) {
		p.source = source
	}
}

// NewKafkaPublisher wraps an existing writer.
func NewKafkaPublisher(writer MessageWriter, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: writer,
		source: DefaultServiceName,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "event_publisher").Logger()
	return p
}

// NewKafkaWriter builds a writer for cfg. Messages with the same key go to
// the same partition.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
}

// NewPublisher returns a KafkaPublisher when cfg is enabled and a
// NoopPublisher otherwise.
func NewPublisher(cfg config.KafkaConfig, opts ...KafkaOption) (Publisher, error) {
	if !cfg.Enabled {
		return NoopPublisher{}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required when kafka is enabled")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required when kafka is enabled")
	}
	return NewKafkaPublisher(NewKafkaWriter(cfg), opts...), nil
}

// Publish writes one message and waits for the acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.ResearchEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "event is required")
	}

	msg, err := p.message(ctx, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		if p.metrics != nil {
			p.metrics.RecordEventFailed(event.EventType)
		}
		p.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Str("run_id", event.RunID.String()).
			Msg("failed to publish event")
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(event.EventType)
	}
	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("event_id", event.EventID).
		Str("run_id", event.RunID.String()).
		Msg("event published")
	return nil
}

func (p *KafkaPublisher) message(ctx context.Context, event *domain.ResearchEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(event.EventType)},
		{Key: HeaderEventID, Value: []byte(event.EventID)},
		{Key: HeaderSource, Value: []byte(p.source)},
	}
	if reqID := observability.RequestIDFromContext(ctx); reqID != "" {
		headers = append(headers, kafka.Header{Key: HeaderRequestID, Value: []byte(reqID)})
	}

	return kafka.Message{
		Key:     []byte(event.RunID.String()),
		Value:   value,
		Headers: headers,
		Time:    event.CreatedAt,
	}, nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
