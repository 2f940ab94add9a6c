package backup

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultImportantPaths are copied into a filesystem snapshot when they exist.
var DefaultImportantPaths = []string{
	"src",
	"app",
	"components",
	"screens",
	"hooks",
	"services",
	"utils",
	"assets",
	"scripts",
	"App.js",
	"App.tsx",
	"index.js",
	"package.json",
	"package-lock.json",
	"yarn.lock",
	"app.json",
	"app.config.js",
	"app.config.ts",
	"eas.json",
	"firebase.json",
	".firebaserc",
	"firestore.rules",
	"firestore.indexes.json",
	"storage.rules",
	"tsconfig.json",
	"babel.config.js",
	"metro.config.js",
}

// DefaultExcludes are gitignore-style patterns never copied into a backup.
var DefaultExcludes = []string{
	"node_modules",
	".git",
	".expo",
	"dist",
	"build",
	"web-build",
	"coverage",
	"android/build",
	"android/app/build",
	"ios/build",
	"ios/Pods",
}

// excludeMatcher matches project-relative paths against exclude patterns.
type excludeMatcher struct {
	m gitignore.Matcher
}

func newExcludeMatcher(patterns []string) excludeMatcher {
	ps := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return excludeMatcher{m: gitignore.NewMatcher(ps)}
}

// Excluded reports whether the slash-separated project-relative path is excluded.
func (e excludeMatcher) Excluded(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	return e.m.Match(strings.Split(rel, "/"), isDir)
}

// skipUnder adapts the matcher to a copy rooted at the project-relative base.
func (e excludeMatcher) skipUnder(base string) func(rel string, isDir bool) bool {
	base = strings.Trim(filepath.ToSlash(base), "/")
	return func(rel string, isDir bool) bool {
		if base != "" && base != "." {
			rel = base + "/" + rel
		}
		return e.Excluded(rel, isDir)
	}
}
