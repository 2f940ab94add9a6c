package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunner_ReturnsRegisteredResult(t *testing.T) {
	m := NewCommandRunner()
	m.AddResult("git", []string{"rev-parse", "HEAD"}, ports.CommandResult{Stdout: "abc123\n"})

	result, err := m.Run(context.Background(), "git", "rev-parse", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", result.Stdout)
}

func TestCommandRunner_QueuedResults(t *testing.T) {
	m := NewCommandRunner()
	args := []string{"status", "--porcelain"}
	m.AddResult("git", args, ports.CommandResult{Stdout: " M app.json\n"})
	m.AddResult("git", args, ports.CommandResult{Stdout: ""})

	ctx := context.Background()
	first, _ := m.Run(ctx, "git", args...)
	second, _ := m.Run(ctx, "git", args...)
	third, _ := m.Run(ctx, "git", args...)

	assert.Equal(t, " M app.json\n", first.Stdout)
	assert.Empty(t, second.Stdout)
	assert.Empty(t, third.Stdout, "last result is sticky")
}

func TestCommandRunner_ErrorsAndFallback(t *testing.T) {
	m := NewCommandRunner()
	m.AddError("npx", []string{"knip"}, errors.New("exec: npx not found"))

	_, err := m.Run(context.Background(), "npx", "knip")
	assert.EqualError(t, err, "exec: npx not found")

	_, err = m.Run(context.Background(), "tsc")
	assert.Error(t, err, "unregistered commands fail by default")

	m.SetFallback(ports.CommandResult{ExitCode: 0})
	result, err := m.Run(context.Background(), "tsc")
	require.NoError(t, err)
	assert.True(t, result.Success())
}

func TestCommandRunner_RecordsCalls(t *testing.T) {
	m := NewCommandRunner()
	m.SetFallback(ports.CommandResult{})

	_, _ = m.Run(context.Background(), "git", "reset", "--hard", "abc")
	_, _ = m.Run(context.Background(), "git", "stash", "pop")

	assert.Equal(t, []string{"git reset --hard abc", "git stash pop"}, m.CallStrings())
	assert.True(t, m.Called("git stash"))
	assert.False(t, m.Called("git commit"))

	m.Reset()
	assert.Empty(t, m.Calls())
}
