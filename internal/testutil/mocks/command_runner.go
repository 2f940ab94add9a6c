// Package mocks provides test doubles for testing.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// CommandRunner is a thread-safe test double for ports.CommandRunner.
// Several results registered for the same command are returned in order; the
// last one keeps being returned once the queue is drained.
type CommandRunner struct {
	mu       sync.Mutex
	results  map[string][]ports.CommandResult
	errors   map[string]error
	fallback *ports.CommandResult
	calls    []ports.CommandCall
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string][]ports.CommandResult),
		errors:  make(map[string]error),
		calls:   make([]ports.CommandCall, 0),
	}
}

// AddResult registers an expected command and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := buildKey(command, args)
	m.results[key] = append(m.results[key], result)
}

// AddError registers an expected command that should return an error.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// SetFallback answers every unregistered command with result instead of an error.
func (m *CommandRunner) SetFallback(result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &result
}

// Run executes a mock command.
func (m *CommandRunner) Run(_ context.Context, command string, args ...string) (ports.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ports.CommandCall{
		Command: command,
		Args:    append([]string(nil), args...),
	})

	key := buildKey(command, args)

	if err, ok := m.errors[key]; ok {
		return ports.CommandResult{}, err
	}

	if queue, ok := m.results[key]; ok && len(queue) > 0 {
		result := queue[0]
		if len(queue) > 1 {
			m.results[key] = queue[1:]
		}
		return result, nil
	}

	if m.fallback != nil {
		return *m.fallback, nil
	}

	return ports.CommandResult{}, fmt.Errorf("no mock result for command: %s %v", command, args)
}

// Calls returns all recorded command invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallStrings returns recorded invocations rendered as shell lines.
func (m *CommandRunner) CallStrings() []string {
	calls := m.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Called reports whether a command whose rendered line starts with prefix was run.
func (m *CommandRunner) Called(prefix string) bool {
	for _, line := range m.CallStrings() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Reset clears all registered results, errors, and recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string][]ports.CommandResult)
	m.errors = make(map[string]error)
	m.fallback = nil
	m.calls = make([]ports.CommandCall, 0)
}

func buildKey(command string, args []string) string {
	return command + ":" + strings.Join(args, ":")
}

// Ensure CommandRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*CommandRunner)(nil)
