//go:build e2e

package framework

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

// Result is the outcome of one binary invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Success returns true if the command exited with code 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// Contains checks if stdout contains the given substring.
func (r *Result) Contains(s string) bool {
	return strings.Contains(r.Stdout, s)
}

// StderrContains checks if stderr contains the given substring.
func (r *Result) StderrContains(s string) bool {
	return strings.Contains(r.Stderr, s)
}

// Runner executes the binary inside an Environment. PATH is limited to the
// binary's directory so npx and git are never found.
type Runner struct {
	t   *testing.T
	env *Environment
}

// NewRunner creates a new command runner.
func NewRunner(t *testing.T, env *Environment) *Runner {
	return &Runner{t: t, env: env}
}

// Run executes the binary with args in the project directory.
func (r *Runner) Run(args ...string) *Result {
	r.t.Helper()

	cmd := exec.Command(r.env.BinaryPath(), args...)
	cmd.Dir = r.env.ProjectDir()
	cmd.Env = []string{
		"HOME=" + r.env.HomeDir(),
		"PATH=" + r.env.HomeDir(),
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Err:    err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Err = nil
	} else if err != nil {
		result.ExitCode = -1
	}
	return result
}

// Version runs the version command.
func (r *Runner) Version() *Result {
	return r.Run("version")
}

// DryRun runs a cleanup without --apply.
func (r *Runner) DryRun(args ...string) *Result {
	return r.Run(append([]string{"--no-git"}, args...)...)
}

// Apply runs a cleanup with --apply and file copy backups.
func (r *Runner) Apply(args ...string) *Result {
	return r.Run(append([]string{"--apply", "--no-git"}, args...)...)
}

// Rollback runs the rollback command.
func (r *Runner) Rollback() *Result {
	return r.Run("rollback", "--no-git")
}

// Scenario provides a fluent interface for writing BDD-style tests.
type Scenario struct {
	t      *testing.T
	env    *Environment
	runner *Runner
	result *Result
}

// NewScenario creates a new test scenario.
func NewScenario(t *testing.T) *Scenario {
	env := NewEnvironment(t)
	return &Scenario{
		t:      t,
		env:    env,
		runner: NewRunner(t, env),
	}
}

// Given sets up the test preconditions.
func (s *Scenario) Given(description string, setup func(*Environment)) *Scenario {
	s.t.Helper()
	s.t.Logf("Given %s", description)
	setup(s.env)
	return s
}

// When executes the action under test.
func (s *Scenario) When(description string, action func(*Runner) *Result) *Scenario {
	s.t.Helper()
	s.t.Logf("When %s", description)
	s.result = action(s.runner)
	return s
}

// Then asserts the expected outcome.
func (s *Scenario) Then(description string, assertion func(*testing.T, *Result)) *Scenario {
	s.t.Helper()
	s.t.Logf("Then %s", description)
	assertion(s.t, s.result)
	return s
}

// And is an alias for Then for chaining assertions.
func (s *Scenario) And(description string, assertion func(*testing.T, *Result)) *Scenario {
	return s.Then(description, assertion)
}

// Environment returns the test environment for direct access.
func (s *Scenario) Environment() *Environment {
	return s.env
}
