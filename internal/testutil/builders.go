package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// Package is a minimal package.json for fixtures.
type Package struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

// ProjectBuilder lays out a JavaScript project in a temp directory.
type ProjectBuilder struct {
	t     testing.TB
	dir   string
	pkg   *Package
	files map[string]string
	order []string
}

// NewProject starts a project rooted at a fresh t.TempDir.
func NewProject(t testing.TB) *ProjectBuilder {
	t.Helper()
	return &ProjectBuilder{
		t:     t,
		dir:   t.TempDir(),
		files: make(map[string]string),
	}
}

// WithPackage sets the package.json name.
func (b *ProjectBuilder) WithPackage(name string) *ProjectBuilder {
	b.pkg = &Package{Name: name}
	return b
}

// WithScript adds an npm script, creating package.json if needed.
func (b *ProjectBuilder) WithScript(name, command string) *ProjectBuilder {
	b.ensurePackage()
	if b.pkg.Scripts == nil {
		b.pkg.Scripts = make(map[string]string)
	}
	b.pkg.Scripts[name] = command
	return b
}

// WithDependency adds a runtime dependency.
func (b *ProjectBuilder) WithDependency(name, version string) *ProjectBuilder {
	b.ensurePackage()
	if b.pkg.Dependencies == nil {
		b.pkg.Dependencies = make(map[string]string)
	}
	b.pkg.Dependencies[name] = version
	return b
}

// WithDevDependency adds a dev dependency.
func (b *ProjectBuilder) WithDevDependency(name, version string) *ProjectBuilder {
	b.ensurePackage()
	if b.pkg.DevDependencies == nil {
		b.pkg.DevDependencies = make(map[string]string)
	}
	b.pkg.DevDependencies[name] = version
	return b
}

// WithFile adds a file with literal content.
func (b *ProjectBuilder) WithFile(rel, content string) *ProjectBuilder {
	if _, ok := b.files[rel]; !ok {
		b.order = append(b.order, rel)
	}
	b.files[rel] = content
	return b
}

// Build writes the project and returns its root.
func (b *ProjectBuilder) Build() string {
	b.t.Helper()

	if b.pkg != nil {
		data, err := json.MarshalIndent(b.pkg, "", "  ")
		require.NoError(b.t, err)
		WriteFile(b.t, b.dir, "package.json", string(data)+"\n")
	}
	for _, rel := range b.order {
		WriteFile(b.t, b.dir, rel, b.files[rel])
	}
	return b.dir
}

func (b *ProjectBuilder) ensurePackage() {
	if b.pkg == nil {
		b.pkg = &Package{Name: "fixture"}
	}
}
