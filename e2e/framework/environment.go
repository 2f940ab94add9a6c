//go:build e2e

// Package framework provides the E2E test infrastructure for cleanup-orchestrator.
package framework

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

// Environment is an isolated project directory plus the built binary.
type Environment struct {
	t          *testing.T
	projectDir string
	homeDir    string
	binaryPath string
}

var (
	buildOnce  sync.Once
	binaryPath string
	buildErr   error
)

// findModuleRoot walks up from the working directory to go.mod.
func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// buildBinary builds the binary once per test run.
func buildBinary(t *testing.T) (string, error) {
	buildOnce.Do(func() {
		root, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		tmpDir, err := os.MkdirTemp("", "cleanup-orchestrator-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		binaryPath = filepath.Join(tmpDir, "cleanup-orchestrator")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/cleanup-orchestrator")
		cmd.Dir = root

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			buildErr = err
			t.Logf("Build stderr: %s", stderr.String())
		}
	})

	return binaryPath, buildErr
}

// NewEnvironment creates an empty project directory and builds the binary.
func NewEnvironment(t *testing.T) *Environment {
	t.Helper()

	binary, err := buildBinary(t)
	if err != nil {
		t.Fatalf("Failed to build binary: %v", err)
	}

	root := t.TempDir()
	env := &Environment{
		t:          t,
		projectDir: filepath.Join(root, "project"),
		homeDir:    filepath.Join(root, "home"),
		binaryPath: binary,
	}
	for _, dir := range []string{env.projectDir, env.homeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	return env
}

// ProjectDir returns the directory the binary runs in.
func (e *Environment) ProjectDir() string {
	return e.projectDir
}

// HomeDir returns the simulated home directory.
func (e *Environment) HomeDir() string {
	return e.homeDir
}

// BinaryPath returns the path to the built binary.
func (e *Environment) BinaryPath() string {
	return e.binaryPath
}

// WriteFile writes content to a project file.
func (e *Environment) WriteFile(path, content string) {
	e.t.Helper()

	fullPath := filepath.Join(e.projectDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		e.t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		e.t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

// WritePackage writes a package.json with the given scripts block.
func (e *Environment) WritePackage(scripts string) {
	e.t.Helper()
	if scripts == "" {
		scripts = "{}"
	}
	e.WriteFile("package.json", `{"name": "e2e", "version": "1.0.0", "scripts": `+scripts+"}\n")
}

// FileExists reports whether a project file exists.
func (e *Environment) FileExists(path string) bool {
	_, err := os.Stat(filepath.Join(e.projectDir, path))
	return err == nil
}

// ReadFile reads a project file.
func (e *Environment) ReadFile(path string) string {
	e.t.Helper()

	content, err := os.ReadFile(filepath.Join(e.projectDir, path))
	if err != nil {
		e.t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// Glob returns project files matching pattern.
func (e *Environment) Glob(pattern string) []string {
	e.t.Helper()

	matches, err := filepath.Glob(filepath.Join(e.projectDir, pattern))
	if err != nil {
		e.t.Fatalf("Bad pattern %s: %v", pattern, err)
	}
	return matches
}
