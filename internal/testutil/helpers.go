// Package testutil provides helpers for tests that work on throwaway
// JavaScript projects.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to rel under dir, creating parent directories.
// It returns the absolute path.
func WriteFile(t testing.TB, dir, rel, content string) string {
	t.Helper()

	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "failed to create parent of %s", rel)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "failed to write %s", rel)
	return path
}

// ReadFile returns the content of rel under dir.
func ReadFile(t testing.TB, dir, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err, "failed to read %s", rel)
	return string(data)
}
