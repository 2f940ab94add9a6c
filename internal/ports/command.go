// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
	"strings"
)

// CommandResult represents the result of executing an external tool.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Output returns trimmed stdout, falling back to stderr when stdout is empty.
func (r CommandResult) Output() string {
	if out := strings.TrimSpace(r.Stdout); out != "" {
		return out
	}
	return strings.TrimSpace(r.Stderr)
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// String renders the call the way it would be typed in a shell.
func (c CommandCall) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// CommandRunner executes external tools such as git, npx and tsc.
// A non-zero exit code is reported through CommandResult, not as an error;
// the error is reserved for commands that could not be started at all.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}
