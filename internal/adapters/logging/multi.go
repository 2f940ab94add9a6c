package logging

import (
	"context"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// MultiLogger fans every entry out to several loggers, each applying its own level.
type MultiLogger struct {
	loggers []ports.Logger
}

// NewMultiLogger combines loggers. Nil entries are dropped.
func NewMultiLogger(loggers ...ports.Logger) *MultiLogger {
	kept := make([]ports.Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			kept = append(kept, l)
		}
	}
	return &MultiLogger{loggers: kept}
}

// Debug logs a debug message.
func (m *MultiLogger) Debug(ctx context.Context, msg string, fields ...ports.Field) {
	for _, l := range m.loggers {
		l.Debug(ctx, msg, fields...)
	}
}

// Info logs an informational message.
func (m *MultiLogger) Info(ctx context.Context, msg string, fields ...ports.Field) {
	for _, l := range m.loggers {
		l.Info(ctx, msg, fields...)
	}
}

// Warn logs a warning message.
func (m *MultiLogger) Warn(ctx context.Context, msg string, fields ...ports.Field) {
	for _, l := range m.loggers {
		l.Warn(ctx, msg, fields...)
	}
}

// Error logs an error message.
func (m *MultiLogger) Error(ctx context.Context, msg string, fields ...ports.Field) {
	for _, l := range m.loggers {
		l.Error(ctx, msg, fields...)
	}
}

// With derives every underlying logger.
func (m *MultiLogger) With(fields ...ports.Field) ports.Logger {
	derived := make([]ports.Logger, len(m.loggers))
	for i, l := range m.loggers {
		derived[i] = l.With(fields...)
	}
	return &MultiLogger{loggers: derived}
}

// Level returns the most verbose level among the underlying loggers.
func (m *MultiLogger) Level() ports.Level {
	level := ports.LevelError
	for _, l := range m.loggers {
		if l.Level() < level {
			level = l.Level()
		}
	}
	return level
}

// SetLevel sets the level on every underlying logger.
func (m *MultiLogger) SetLevel(level ports.Level) {
	for _, l := range m.loggers {
		l.SetLevel(level)
	}
}

// Ensure MultiLogger implements Logger.
var _ ports.Logger = (*MultiLogger)(nil)
