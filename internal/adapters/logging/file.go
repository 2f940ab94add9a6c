package logging

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// fileEntry is one line of the run log.
type fileEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// FileLogger appends newline-delimited JSON entries to a log file.
type FileLogger struct {
	sink   *fileSink
	level  ports.Level
	fields []ports.Field
	now    func() time.Time
}

type fileSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// FileLoggerOption configures a FileLogger.
type FileLoggerOption func(*FileLogger)

// WithFileLevel sets the minimum level written to the file (default: Debug).
func WithFileLevel(level ports.Level) FileLoggerOption {
	return func(l *FileLogger) {
		l.level = level
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) FileLoggerOption {
	return func(l *FileLogger) {
		l.now = now
	}
}

// OpenFileLogger opens (or creates) path in append mode.
func OpenFileLogger(path string, opts ...FileLoggerOption) (*FileLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := NewFileLogger(f, opts...)
	l.sink.closer = f
	return l, nil
}

// NewFileLogger writes entries to w.
func NewFileLogger(w io.Writer, opts ...FileLoggerOption) *FileLogger {
	l := &FileLogger{
		sink:  &fileSink{w: w},
		level: ports.LevelDebug,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Debug logs a debug message.
func (l *FileLogger) Debug(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *FileLogger) Info(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *FileLogger) Warn(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *FileLogger) Error(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelError, msg, fields)
}

// With returns a logger that adds fields to every entry's data.
func (l *FileLogger) With(fields ...ports.Field) ports.Logger {
	derived := *l
	derived.fields = appendFields(l.fields, fields)
	return &derived
}

// Level returns the minimum log level.
func (l *FileLogger) Level() ports.Level {
	return l.level
}

// SetLevel sets the minimum log level.
func (l *FileLogger) SetLevel(level ports.Level) {
	l.level = level
}

// Close closes the underlying file when the logger owns it.
func (l *FileLogger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.closer == nil {
		return nil
	}
	err := l.sink.closer.Close()
	l.sink.closer = nil
	return err
}

func (l *FileLogger) log(_ context.Context, level ports.Level, msg string, fields []ports.Field) {
	if level < l.level {
		return
	}

	entry := fileEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Level:     strings.ToLower(level.String()),
		Message:   msg,
		Data:      ports.FieldMap(appendFields(l.fields, fields)),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.w.Write(append(data, '\n'))
}

// Ensure FileLogger implements Logger.
var _ ports.Logger = (*FileLogger)(nil)
