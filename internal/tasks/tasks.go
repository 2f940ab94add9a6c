// Package tasks implements the cleanup collaborators that pipeline steps
// delegate to. Each task reads the project, reports what it found and, unless
// running dry, applies its changes.
package tasks

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/logging"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// ErrToolUnavailable is returned when an external tool could not be started.
var ErrToolUnavailable = errors.New("tool unavailable")

// Env is what every task needs to operate on a project.
type Env struct {
	Root   string
	DryRun bool
	FS     ports.FileSystem
	Runner ports.CommandRunner
	Logger ports.Logger
	// Ignore holds extra gitignore-style patterns, such as the run's own log
	// and report locations when they are configured.
	Ignore []string
}

func (e Env) logger() ports.Logger {
	if e.Logger == nil {
		return logging.NewNopLogger()
	}
	return e.Logger
}

func (e Env) path(rel string) string {
	return filepath.Join(e.Root, filepath.FromSlash(rel))
}

// alwaysIgnored are never scanned, whatever .gitignore says.
var alwaysIgnored = []string{
	"node_modules",
	".git",
	".expo",
	".cleanup-backups",
	"dist",
	"build",
	"web-build",
	"coverage",
	"ios/Pods",
	"android/build",
	"android/app/build",
	// Run artifacts list asset names and must not count as references.
	"cleanup-orchestrator.log",
	"cleanup-report-*.json",
	"backup-manifest-*.json",
}

// ignoreMatcher combines alwaysIgnored, Env.Ignore and the project's root
// .gitignore.
func (e Env) ignoreMatcher() gitignore.Matcher {
	var ps []gitignore.Pattern
	for _, p := range alwaysIgnored {
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	for _, p := range e.Ignore {
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	if data, err := e.FS.ReadFile(e.path(".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ps = append(ps, gitignore.ParsePattern(line, nil))
		}
	}
	return gitignore.NewMatcher(ps)
}

// walk visits every non-ignored regular file under dir (project-relative),
// passing slash-separated project-relative paths.
func (e Env) walk(dir string, m gitignore.Matcher, fn func(rel string) error) error {
	start := e.path(dir)
	if !e.FS.IsDir(start) {
		return nil
	}
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return nil
			}
			return err
		}
		rel := ports.RelativeTo(e.Root, path)
		if rel != "." && m.Match(strings.Split(rel, "/"), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		return fn(rel)
	})
}

// sourceExtensions are scanned for references.
var sourceExtensions = map[string]bool{
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".mjs":  true,
	".cjs":  true,
	".json": true,
}

func isSource(rel string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(rel))]
}

// firstLines trims s to at most n lines.
func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}
