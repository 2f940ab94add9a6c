// Package command provides command execution adapters.
package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// RealRunner executes external tools as child processes.
type RealRunner struct {
	dir string
	env []string
}

// Option configures a RealRunner.
type Option func(*RealRunner)

// WithDir sets the working directory for every command (default: process cwd).
func WithDir(dir string) Option {
	return func(r *RealRunner) {
		r.dir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *RealRunner) {
		r.env = append(r.env, env...)
	}
}

// NewRealRunner creates a new RealRunner.
func NewRealRunner(opts ...Option) *RealRunner {
	r := &RealRunner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the configured working directory.
func (r *RealRunner) Dir() string {
	return r.dir
}

// Run executes a command and returns the result. A non-zero exit is not an error.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := ports.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, err
	}

	return result, nil
}

// Ensure RealRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*RealRunner)(nil)
