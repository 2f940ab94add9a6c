package ports

import (
	"os"
	"path/filepath"
	"strings"
)

// SkipFunc reports whether a path (relative to the copy source, slash separated)
// should be left out of a recursive copy.
type SkipFunc func(rel string, isDir bool) bool

// FileSystem provides the file operations used by the backup store and the
// cleanup tasks.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Exists(path string) bool
	IsDir(path string) bool
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	RemoveAll(path string) error
	Rename(oldPath, newPath string) error
	FileHash(path string) (string, error)

	// CopyFile copies a single file, creating parent directories of dest.
	CopyFile(src, dest string) error

	// CopyTree copies src (file or directory) to dest recursively and returns
	// the number of regular files copied. skip may be nil.
	CopyTree(src, dest string, skip SkipFunc) (int, error)
}

// RelativeTo returns path relative to root using forward slashes.
// Paths outside root are returned unchanged.
func RelativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
