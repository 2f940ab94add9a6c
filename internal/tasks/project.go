package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// ErrNotAProject is returned when the working directory has no package.json.
var ErrNotAProject = errors.New("package.json not found")

const packageJSON = "package.json"

// ProjectInfo describes the project found by ProjectCheck.
type ProjectInfo struct {
	Name            string `json:"name,omitempty"`
	Version         string `json:"version,omitempty"`
	TypeScript      bool   `json:"typescript"`
	Expo            bool   `json:"expo"`
	Firebase        bool   `json:"firebase"`
	Gitignore       bool   `json:"gitignore"`
	Scripts         int    `json:"scripts"`
	Dependencies    int    `json:"dependencies"`
	DevDependencies int    `json:"devDependencies"`
}

// ProjectCheck verifies the working directory is a JavaScript project.
type ProjectCheck struct {
	env Env
}

// NewProjectCheck creates a ProjectCheck.
func NewProjectCheck(env Env) *ProjectCheck {
	return &ProjectCheck{env: env}
}

// Run reads package.json and reports what kind of project this is.
func (c *ProjectCheck) Run(ctx context.Context) (*ProjectInfo, error) {
	pkg, err := readPackage(c.env)
	if err != nil {
		return nil, err
	}

	info := &ProjectInfo{
		TypeScript: c.env.FS.Exists(c.env.path("tsconfig.json")),
		Firebase:   c.env.FS.Exists(c.env.path("firebase.json")),
		Gitignore:  c.env.FS.Exists(c.env.path(".gitignore")),
	}
	if v, ok := pkg.Get("name"); ok {
		info.Name, _ = v.(string)
	}
	if v, ok := pkg.Get("version"); ok {
		info.Version, _ = v.(string)
	}
	if scripts, ok := pkg.Object("scripts"); ok {
		info.Scripts = scripts.Len()
	}
	if deps, ok := pkg.Object("dependencies"); ok {
		info.Dependencies = deps.Len()
		_, info.Expo = deps.Get("expo")
	}
	if deps, ok := pkg.Object("devDependencies"); ok {
		info.DevDependencies = deps.Len()
	}

	c.env.logger().Info(ctx, "project detected", ports.F("name", info.Name), ports.F("typescript", info.TypeScript))
	return info, nil
}

// readPackage parses the project's package.json.
func readPackage(env Env) (*object, error) {
	data, err := env.FS.ReadFile(env.path(packageJSON))
	if err != nil {
		return nil, fmt.Errorf("%w in %s", ErrNotAProject, env.Root)
	}
	obj, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", packageJSON, err)
	}
	return obj, nil
}
