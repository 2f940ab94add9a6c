package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONFile asserts that rel under dir holds JSON semantically equal to
// expected.
func AssertJSONFile(t testing.TB, dir, rel, expected string, msgAndArgs ...interface{}) {
	t.Helper()

	assert.JSONEq(t, expected, ReadFile(t, dir, rel), msgAndArgs...)
}

// AssertFileUnchanged asserts that rel under dir still holds content byte for
// byte.
func AssertFileUnchanged(t testing.TB, dir, rel, content string) {
	t.Helper()

	assert.Equal(t, content, ReadFile(t, dir, rel), "%s was modified", rel)
}

// AssertMoved asserts that from no longer exists and to does.
func AssertMoved(t testing.TB, dir, from, to string) {
	t.Helper()

	assert.NoFileExists(t, filepath.Join(dir, from))
	assert.FileExists(t, filepath.Join(dir, to))
}

// AssertOneMatch asserts that exactly one file matches pattern under dir and
// returns its path.
func AssertOneMatch(t testing.TB, dir, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	require.NoError(t, err)
	require.Len(t, matches, 1, "matches for %s", pattern)
	_, err = os.Stat(matches[0])
	require.NoError(t, err)
	return matches[0]
}
