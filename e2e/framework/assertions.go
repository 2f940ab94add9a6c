//go:build e2e

package framework

import (
	"strings"
	"testing"
)

// AssertSuccess asserts that the command succeeded.
func AssertSuccess(t *testing.T, r *Result) {
	t.Helper()
	if !r.Success() {
		t.Errorf("Expected command to succeed, got exit code %d\nStdout: %s\nStderr: %s",
			r.ExitCode, r.Stdout, r.Stderr)
	}
}

// AssertExitCode asserts the expected exit code.
func AssertExitCode(t *testing.T, r *Result, expected int) {
	t.Helper()
	if r.ExitCode != expected {
		t.Errorf("Expected exit code %d, got %d\nStdout: %s\nStderr: %s",
			expected, r.ExitCode, r.Stdout, r.Stderr)
	}
}

// AssertStdoutContains asserts that stdout contains the expected substring.
func AssertStdoutContains(t *testing.T, r *Result, expected string) {
	t.Helper()
	if !r.Contains(expected) {
		t.Errorf("Expected stdout to contain %q, but got:\n%s", expected, r.Stdout)
	}
}

// AssertStderrContains asserts that stderr contains the expected substring.
func AssertStderrContains(t *testing.T, r *Result, expected string) {
	t.Helper()
	if !r.StderrContains(expected) {
		t.Errorf("Expected stderr to contain %q, but got:\n%s", expected, r.Stderr)
	}
}

// AssertFileEquals asserts that a project file has exactly the expected content.
func AssertFileEquals(t *testing.T, env *Environment, path, expected string) {
	t.Helper()
	if got := env.ReadFile(path); got != expected {
		t.Errorf("Expected file %s to equal %q, but got:\n%s", path, expected, got)
	}
}

// AssertFileContains asserts that a project file contains the expected content.
func AssertFileContains(t *testing.T, env *Environment, path, expected string) {
	t.Helper()
	if got := env.ReadFile(path); !strings.Contains(got, expected) {
		t.Errorf("Expected file %s to contain %q, but got:\n%s", path, expected, got)
	}
}

// AssertFileNotExists asserts that a project file does not exist.
func AssertFileNotExists(t *testing.T, env *Environment, path string) {
	t.Helper()
	if env.FileExists(path) {
		t.Errorf("Expected file %s to NOT exist", path)
	}
}

// AssertMatches asserts how many project files match pattern.
func AssertMatches(t *testing.T, env *Environment, pattern string, n int) {
	t.Helper()
	if got := env.Glob(pattern); len(got) != n {
		t.Errorf("Expected %d files matching %s, got %v", n, pattern, got)
	}
}
