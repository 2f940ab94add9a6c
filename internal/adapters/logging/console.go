package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// StepKey is the field the console logger renders as a "[step]" prefix.
const StepKey = "step"

// ConsoleLogger writes human-readable lines for the operator. Machine-readable
// output goes to the FileLogger.
type ConsoleLogger struct {
	mu           *sync.Mutex
	out          io.Writer
	level        ports.Level
	fields       []ports.Field
	includeTime  bool
	includeLevel bool
	now          func() time.Time
}

// ConsoleLoggerOption configures the console logger.
type ConsoleLoggerOption func(*ConsoleLogger)

// WithOutput sets the output writer (default: os.Stderr).
func WithOutput(w io.Writer) ConsoleLoggerOption {
	return func(l *ConsoleLogger) {
		l.out = w
	}
}

// WithLevel sets the minimum log level (default: Info).
func WithLevel(level ports.Level) ConsoleLoggerOption {
	return func(l *ConsoleLogger) {
		l.level = level
	}
}

// WithTimestamp includes timestamp in log entries.
func WithTimestamp(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) {
		l.includeTime = enabled
	}
}

// WithLevelLabel includes level label in log entries.
func WithLevelLabel(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) {
		l.includeLevel = enabled
	}
}

// NewConsoleLogger creates a new console logger.
func NewConsoleLogger(opts ...ConsoleLoggerOption) *ConsoleLogger {
	l := &ConsoleLogger{
		mu:           &sync.Mutex{},
		out:          os.Stderr,
		level:        ports.LevelInfo,
		includeTime:  true,
		includeLevel: true,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelError, msg, fields)
}

// With returns a new logger with additional fields. The derived logger shares
// the writer and its lock with the parent.
func (l *ConsoleLogger) With(fields ...ports.Field) ports.Logger {
	derived := *l
	derived.fields = appendFields(l.fields, fields)
	return &derived
}

// Level returns the minimum log level.
func (l *ConsoleLogger) Level() ports.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel sets the minimum log level.
func (l *ConsoleLogger) SetLevel(level ports.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *ConsoleLogger) log(_ context.Context, level ports.Level, msg string, fields []ports.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	l.writeText(level, msg, appendFields(l.fields, fields))
}

func (l *ConsoleLogger) writeText(level ports.Level, msg string, fields []ports.Field) {
	var b strings.Builder

	if l.includeTime {
		b.WriteString(l.now().Format("15:04:05"))
		b.WriteByte(' ')
	}
	if l.includeLevel {
		fmt.Fprintf(&b, "[%s] ", level.String())
	}

	var rest []ports.Field
	for _, f := range fields {
		if f.Key == StepKey {
			fmt.Fprintf(&b, "[%v] ", f.Value)
			continue
		}
		rest = append(rest, f)
	}

	b.WriteString(msg)
	for _, f := range rest {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}

	_, _ = fmt.Fprintln(l.out, b.String())
}

func appendFields(base, extra []ports.Field) []ports.Field {
	out := make([]ports.Field, len(base)+len(extra))
	copy(out, base)
	copy(out[len(base):], extra)
	return out
}

// Ensure ConsoleLogger implements Logger.
var _ ports.Logger = (*ConsoleLogger)(nil)
