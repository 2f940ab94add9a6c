package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Error(ctx, "error")

	assert.Same(t, logger, logger.With(ports.F("k", "v")))
	assert.Equal(t, ports.LevelInfo, logger.Level())
	logger.SetLevel(ports.LevelDebug)
	assert.Equal(t, ports.LevelDebug, logger.Level())
}

func TestConsoleLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(
		WithOutput(&buf),
		WithTimestamp(false),
	)

	logger.Info(context.Background(), "step completed", ports.F("step", "Asset Cleanup"), ports.F("files", 3))

	out := buf.String()
	assert.Equal(t, "[INFO] [Asset Cleanup] step completed files=3\n", out)
}

func TestConsoleLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(WithOutput(&buf), WithTimestamp(false))

	logger.Warn(context.Background(), "checkpoint failed", ports.F("error", errors.New("disk full")))

	assert.Equal(t, "[WARN] checkpoint failed error=disk full\n", buf.String())
}

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(WithOutput(&buf), WithLevel(ports.LevelWarn), WithTimestamp(false))
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	assert.Empty(t, buf.String())

	logger.Warn(ctx, "warn message")
	assert.Contains(t, buf.String(), "warn message")

	logger.SetLevel(ports.LevelDebug)
	logger.Debug(ctx, "now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestConsoleLogger_With_DoesNotModifyOriginal(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(WithOutput(&buf), WithTimestamp(false), WithLevelLabel(false))
	ctx := context.Background()

	derived := logger.With(ports.F("step", "Dead Code Detection"))
	logger.Info(ctx, "original")
	derived.Info(ctx, "derived")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "original", lines[0])
	assert.Equal(t, "[Dead Code Detection] derived", lines[1])
}

func TestFileLogger_WritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	logger := NewFileLogger(&buf, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	logger.Info(ctx, "starting cleanup orchestration", ports.F("dryRun", true))
	logger.With(ports.F("step", "Final Validation")).Error(ctx, "step failed", ports.F("error", errors.New("tsc exited 2")))
	logger.Debug(ctx, "bare")

	scanner := bufio.NewScanner(&buf)
	var entries []fileEntry
	for scanner.Scan() {
		var e fileEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 3)

	assert.Equal(t, "2026-10-16T09:30:00Z", entries[0].Timestamp)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "starting cleanup orchestration", entries[0].Message)
	assert.Equal(t, true, entries[0].Data["dryRun"])

	assert.Equal(t, "error", entries[1].Level)
	assert.Equal(t, "Final Validation", entries[1].Data["step"])
	assert.Equal(t, "tsc exited 2", entries[1].Data["error"])

	assert.Equal(t, "debug", entries[2].Level)
	assert.Nil(t, entries[2].Data)
}

func TestFileLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFileLogger(&buf, WithFileLevel(ports.LevelWarn))

	logger.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	logger.Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}

func TestOpenFileLogger_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cleanup-orchestrator.log")

	first, err := OpenFileLogger(path)
	require.NoError(t, err)
	first.Info(context.Background(), "run one")
	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "closing twice is harmless")

	second, err := OpenFileLogger(path)
	require.NoError(t, err)
	second.Info(context.Background(), "run two")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}

func TestMultiLogger(t *testing.T) {
	var console, file bytes.Buffer
	multi := NewMultiLogger(
		NewConsoleLogger(WithOutput(&console), WithTimestamp(false), WithLevel(ports.LevelInfo)),
		nil,
		NewFileLogger(&file),
	)
	ctx := context.Background()

	multi.Debug(ctx, "only in file")
	multi.With(ports.F("step", "Initial Setup")).Info(ctx, "everywhere")

	assert.NotContains(t, console.String(), "only in file")
	assert.Contains(t, console.String(), "[Initial Setup] everywhere")
	assert.Contains(t, file.String(), "only in file")
	assert.Contains(t, file.String(), `"step":"Initial Setup"`)

	assert.Equal(t, ports.LevelDebug, multi.Level())
	multi.SetLevel(ports.LevelError)
	assert.Equal(t, ports.LevelError, multi.Level())
}

func TestLoggerContext(t *testing.T) {
	logger := NewConsoleLogger()
	ctx := ports.ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, ports.LoggerFromContext(ctx))
}
