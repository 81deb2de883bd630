package observability

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

var (
	_ log.Logger     = (*TemporalLogger)(nil)
	_ log.WithLogger = (*TemporalLogger)(nil)
)

// TemporalLogger routes Temporal SDK, workflow and activity logs through
// zerolog so worker output matches the rest of the service.
type TemporalLogger struct {
	logger zerolog.Logger
}

// NewTemporalLogger tags every entry with component=temporal-sdk.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Debug(), msg, keyvals)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Info(), msg, keyvals)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Warn(), msg, keyvals)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.emit(l.logger.Error(), msg, keyvals)
}

// With returns a logger that always carries keyvals. The SDK attaches
// WorkflowID, RunID and ActivityType this way.
func (l *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return &TemporalLogger{logger: l.logger.With().Fields(keyvalToMap(keyvals)).Logger()}
}

func (l *TemporalLogger) emit(ev *zerolog.Event, msg string, keyvals []interface{}) {
	if len(keyvals) > 0 {
		ev = ev.Fields(keyvalToMap(keyvals))
	}
	ev.Msg(msg)
}

// keyvalToMap pairs up alternating keys and values. Non-string keys are
// formatted and a trailing key without a value is dropped.
func keyvalToMap(keyvals []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keyvals)/2)
	for i := 1; i < len(keyvals); i += 2 {
		key, ok := keyvals[i-1].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i-1])
		}
		m[key] = keyvals[i]
	}
	return m
}
