package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// UpdateType indicates the type of version update available.
type UpdateType string

const (
	// UpdateMajor indicates a major version update (breaking changes likely).
	UpdateMajor UpdateType = "major"
	// UpdateMinor indicates a minor version update (new features).
	UpdateMinor UpdateType = "minor"
	// UpdatePatch indicates a patch version update (bug fixes).
	UpdatePatch UpdateType = "patch"
	// UpdateUnknown indicates the update type couldn't be determined.
	UpdateUnknown UpdateType = ""
)

// String returns the string representation of the update type.
func (u UpdateType) String() string {
	if u == "" {
		return "unknown"
	}
	return string(u)
}

// DetermineUpdateType classifies the update from current to latest.
func DetermineUpdateType(current, latest string) UpdateType {
	current = normalizeVersion(current)
	latest = normalizeVersion(latest)

	if !semver.IsValid(current) || !semver.IsValid(latest) {
		return UpdateUnknown
	}
	if semver.Compare(current, latest) == 0 {
		return UpdateUnknown
	}
	if semver.Major(current) != semver.Major(latest) {
		return UpdateMajor
	}
	if extractMinor(current) != extractMinor(latest) {
		return UpdateMinor
	}
	return UpdatePatch
}

// normalizeVersion strips npm range operators and adds the v prefix semver wants.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "^~=<> ")
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// extractMinor extracts the minor version from a semver string.
func extractMinor(version string) string {
	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) < 2 {
		return ""
	}
	minor := parts[1]
	if idx := strings.IndexAny(minor, "-+"); idx >= 0 {
		minor = minor[:idx]
	}
	return minor
}

// OutdatedDependency is a package with a newer release.
type OutdatedDependency struct {
	Name       string     `json:"name"`
	Current    string     `json:"current"`
	Wanted     string     `json:"wanted"`
	Latest     string     `json:"latest"`
	UpdateType UpdateType `json:"updateType"`
}

// DependencyReport is the result of DependencyScanner.
type DependencyReport struct {
	Unused    []string             `json:"unused"`
	UnusedDev []string             `json:"unusedDev"`
	Missing   map[string][]string  `json:"missing,omitempty"`
	Outdated  []OutdatedDependency `json:"outdated"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// Major returns the outdated dependencies that need a major upgrade.
func (r *DependencyReport) Major() []OutdatedDependency {
	var out []OutdatedDependency
	for _, d := range r.Outdated {
		if d.UpdateType == UpdateMajor {
			out = append(out, d)
		}
	}
	return out
}

// DependencyScanner finds unused, missing and outdated npm dependencies. It
// only reports; removing packages is left to the developer.
type DependencyScanner struct {
	env Env
}

// NewDependencyScanner creates a DependencyScanner.
func NewDependencyScanner(env Env) *DependencyScanner {
	return &DependencyScanner{env: env}
}

// Run runs depcheck and npm outdated. One failing tool is a warning; both
// failing is an error.
func (s *DependencyScanner) Run(ctx context.Context) (*DependencyReport, error) {
	log := s.env.logger()
	report := &DependencyReport{Unused: []string{}, UnusedDev: []string{}, Outdated: []OutdatedDependency{}}

	depErr := s.depcheck(ctx, report)
	if depErr != nil {
		log.Warn(ctx, "depcheck failed", ports.F("error", depErr))
		report.Warnings = append(report.Warnings, depErr.Error())
	}

	outErr := s.outdated(ctx, report)
	if outErr != nil {
		log.Warn(ctx, "npm outdated failed", ports.F("error", outErr))
		report.Warnings = append(report.Warnings, outErr.Error())
	}

	if depErr != nil && outErr != nil {
		return nil, fmt.Errorf("dependency analysis failed: %w", errors.Join(depErr, outErr))
	}

	log.Info(ctx, "dependency analysis complete",
		ports.F("unused", len(report.Unused)+len(report.UnusedDev)),
		ports.F("missing", len(report.Missing)),
		ports.F("outdated", len(report.Outdated)),
		ports.F("major", len(report.Major())))
	return report, nil
}

type depcheckOutput struct {
	Dependencies    []string            `json:"dependencies"`
	DevDependencies []string            `json:"devDependencies"`
	Missing         map[string][]string `json:"missing"`
}

func (s *DependencyScanner) depcheck(ctx context.Context, report *DependencyReport) error {
	res, err := s.env.Runner.Run(ctx, "npx", "--yes", "depcheck", "--json")
	if err != nil {
		return fmt.Errorf("%w: depcheck: %w", ErrToolUnavailable, err)
	}
	// depcheck exits non-zero whenever it finds something.
	if strings.TrimSpace(res.Stdout) == "" {
		return fmt.Errorf("depcheck produced no output (exit %d): %s", res.ExitCode, firstLines(res.Stderr, 3))
	}

	var out depcheckOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return fmt.Errorf("parse depcheck output: %w", err)
	}
	if out.Dependencies != nil {
		report.Unused = out.Dependencies
	}
	if out.DevDependencies != nil {
		report.UnusedDev = out.DevDependencies
	}
	if len(out.Missing) > 0 {
		report.Missing = out.Missing
	}
	sort.Strings(report.Unused)
	sort.Strings(report.UnusedDev)
	return nil
}

type npmOutdatedEntry struct {
	Current string `json:"current"`
	Wanted  string `json:"wanted"`
	Latest  string `json:"latest"`
}

func (s *DependencyScanner) outdated(ctx context.Context, report *DependencyReport) error {
	res, err := s.env.Runner.Run(ctx, "npm", "outdated", "--json")
	if err != nil {
		return fmt.Errorf("%w: npm: %w", ErrToolUnavailable, err)
	}
	// npm outdated exits 1 when anything is outdated.
	if res.ExitCode > 1 {
		return fmt.Errorf("npm outdated failed (exit %d): %s", res.ExitCode, firstLines(res.Output(), 3))
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return nil
	}

	var entries map[string]npmOutdatedEntry
	if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
		return fmt.Errorf("parse npm outdated output: %w", err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := entries[name]
		report.Outdated = append(report.Outdated, OutdatedDependency{
			Name:       name,
			Current:    e.Current,
			Wanted:     e.Wanted,
			Latest:     e.Latest,
			UpdateType: DetermineUpdateType(e.Current, e.Latest),
		})
	}
	return nil
}
