// Package filesystem provides file system adapters.
package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// RealFileSystem implements ports.FileSystem using actual file system operations.
type RealFileSystem struct{}

// NewRealFileSystem creates a new RealFileSystem.
func NewRealFileSystem() *RealFileSystem {
	return &RealFileSystem{}
}

// ReadFile reads a file and returns its contents.
func (fs *RealFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a file, creating parent directories as needed.
func (fs *RealFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

// Exists checks if a file or directory exists.
func (fs *RealFileSystem) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsDir checks if a path is a directory.
func (fs *RealFileSystem) IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// MkdirAll creates a directory and all necessary parents.
func (fs *RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes a file or empty directory.
func (fs *RealFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// RemoveAll removes a path and everything below it.
func (fs *RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Rename renames (moves) a file, creating the destination directory.
func (fs *RealFileSystem) Rename(oldPath, newPath string) error {
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return err
	}
	return os.Rename(oldPath, newPath)
}

// FileHash returns a SHA256 hash of a file's contents.
func (fs *RealFileSystem) FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyFile copies a file from src to dest, keeping the source permissions.
func (fs *RealFileSystem) CopyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("copy %s: is a directory", src)
	}
	return copyRegular(src, dest, info.Mode().Perm())
}

// CopyTree copies src to dest. Directories are walked recursively and paths
// rejected by skip are left out; symlinks are recreated, not followed.
func (fs *RealFileSystem) CopyTree(src, dest string, skip ports.SkipFunc) (int, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		if err := copyEntry(src, dest, info); err != nil {
			return 0, err
		}
		if info.Mode().IsRegular() {
			return 1, nil
		}
		return 0, nil
	}

	copied := 0
	err = filepath.WalkDir(src, func(path string, d iofs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && skip != nil && skip(filepath.ToSlash(rel), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		entryInfo, err := d.Info()
		if err != nil {
			return err
		}
		if err := copyEntry(path, target, entryInfo); err != nil {
			return err
		}
		if entryInfo.Mode().IsRegular() {
			copied++
		}
		return nil
	})

	return copied, err
}

func copyEntry(src, dest string, info os.FileInfo) error {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		_ = os.Remove(dest)
		return os.Symlink(target, dest)
	case info.Mode().IsRegular():
		return copyRegular(src, dest, info.Mode().Perm())
	default:
		// Sockets, devices and pipes have no place in a project backup.
		return nil
	}
}

func copyRegular(src, dest string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Ensure RealFileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*RealFileSystem)(nil)
