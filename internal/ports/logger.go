package ports

import (
	"context"
	"strings"
)

// Level represents the severity of a log entry.
type Level int

const (
	// LevelDebug is for step-level tracing (enabled with --verbose).
	LevelDebug Level = iota
	// LevelInfo is for run progress.
	LevelInfo
	// LevelWarn is for failures the run survives.
	LevelWarn
	// LevelError is for failures that abort a step or the run.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name into a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field represents a structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// FieldMap flattens fields into a map. Later fields win on duplicate keys.
// error values are stored as their message so they survive JSON encoding.
func FieldMap(fields []Field) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok && err != nil {
			m[f.Key] = err.Error()
			continue
		}
		m[f.Key] = f.Value
	}
	return m
}

// Logger defines the interface for structured logging.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// With returns a new Logger with the given fields added to every log entry.
	With(fields ...Field) Logger

	Level() Level
	SetLevel(level Level)
}

// LoggerFromContext retrieves a Logger from the context.
// Returns nil if no logger is present.
func LoggerFromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return logger
	}
	return nil
}

// ContextWithLogger returns a new context with the logger attached.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

type loggerKey struct{}
