package tasks

import (
	"context"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

const debugScriptsDir = "scripts/debug"

// debugScript matches root level one-off scripts.
var debugScript = regexp.MustCompile(`^(debug|test|fix)-[^/]+\.(js|mjs|cjs)$`)

// MovedScript records a relocated debug script.
type MovedScript struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ScriptReport is the result of DebugScriptOrganizer.
type ScriptReport struct {
	Moved          []MovedScript `json:"moved"`
	Skipped        []string      `json:"skipped,omitempty"`
	UpdatedScripts []string      `json:"updatedScripts,omitempty"`
}

// DebugScriptOrganizer moves debug-*, test-* and fix-* scripts out of the
// project root into scripts/debug and points package.json scripts at the new
// location.
type DebugScriptOrganizer struct {
	env Env
}

// NewDebugScriptOrganizer creates a DebugScriptOrganizer.
func NewDebugScriptOrganizer(env Env) *DebugScriptOrganizer {
	return &DebugScriptOrganizer{env: env}
}

// Run finds and, unless running dry, moves the scripts.
func (o *DebugScriptOrganizer) Run(ctx context.Context) (*ScriptReport, error) {
	log := o.env.logger()
	report := &ScriptReport{Moved: []MovedScript{}}

	names, err := FindDebugScripts(o.env.Root)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		dest := path.Join(debugScriptsDir, name)
		if o.env.FS.Exists(o.env.path(dest)) {
			log.Warn(ctx, "debug script already exists at destination", ports.F("file", name), ports.F("dest", dest))
			report.Skipped = append(report.Skipped, name)
			continue
		}
		report.Moved = append(report.Moved, MovedScript{From: name, To: dest})
	}
	if len(report.Moved) == 0 {
		return report, nil
	}

	if o.env.DryRun {
		for _, m := range report.Moved {
			log.Info(ctx, "would move debug script", ports.F("from", m.From), ports.F("to", m.To))
		}
		return report, nil
	}

	if err := o.env.FS.MkdirAll(o.env.path(debugScriptsDir), 0o755); err != nil {
		return report, fmt.Errorf("create %s: %w", debugScriptsDir, err)
	}
	for _, m := range report.Moved {
		if err := o.env.FS.Rename(o.env.path(m.From), o.env.path(m.To)); err != nil {
			return report, fmt.Errorf("move %s: %w", m.From, err)
		}
		log.Info(ctx, "moved debug script", ports.F("from", m.From), ports.F("to", m.To))
	}

	updated, err := o.rewriteReferences(report.Moved)
	if err != nil {
		return report, err
	}
	report.UpdatedScripts = updated
	return report, nil
}

// FindDebugScripts lists the debug scripts in the root directory, sorted by name.
func FindDebugScripts(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list project root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && debugScript.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// rewriteReferences points package.json scripts at the moved files and
// returns the names of the scripts it changed.
func (o *DebugScriptOrganizer) rewriteReferences(moved []MovedScript) ([]string, error) {
	pkg, err := readPackage(o.env)
	if err != nil {
		return nil, err
	}
	scripts, ok := pkg.Object("scripts")
	if !ok {
		return nil, nil
	}

	targets := make(map[string]string, len(moved)*2)
	for _, m := range moved {
		targets[m.From] = m.To
		targets["./"+m.From] = m.To
	}

	var updated []string
	for _, name := range scripts.Keys() {
		v, _ := scripts.Get(name)
		cmd, ok := v.(string)
		if !ok {
			continue
		}
		fields := strings.Split(cmd, " ")
		changed := false
		for i, f := range fields {
			if to, ok := targets[f]; ok {
				fields[i] = to
				changed = true
			}
		}
		if changed {
			scripts.Set(name, strings.Join(fields, " "))
			updated = append(updated, name)
		}
	}
	if len(updated) == 0 {
		return nil, nil
	}
	return updated, writePackage(o.env, pkg)
}

// writePackage writes package.json back with stable formatting.
func writePackage(env Env, pkg *object) error {
	out, err := encodeDocument(pkg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", packageJSON, err)
	}
	if err := env.FS.WriteFile(env.path(packageJSON), out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", packageJSON, err)
	}
	return nil
}

// nodeScript matches a script that runs a single file with node.
var nodeScript = regexp.MustCompile(`^\s*node\s+([^\s;&|]+)`)

// StaleScript is a package.json script whose target file is gone.
type StaleScript struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	File    string `json:"file"`
}

// PackageScriptReport is the result of PackageScriptCleaner.
type PackageScriptReport struct {
	Checked int           `json:"checked"`
	Removed []StaleScript `json:"removed"`
}

// PackageScriptCleaner removes "node <file>" scripts whose file no longer
// exists. Other scripts keep their order.
type PackageScriptCleaner struct {
	env Env
}

// NewPackageScriptCleaner creates a PackageScriptCleaner.
func NewPackageScriptCleaner(env Env) *PackageScriptCleaner {
	return &PackageScriptCleaner{env: env}
}

// Run checks every script and, unless running dry, rewrites package.json.
func (c *PackageScriptCleaner) Run(ctx context.Context) (*PackageScriptReport, error) {
	log := c.env.logger()
	report := &PackageScriptReport{Removed: []StaleScript{}}

	pkg, err := readPackage(c.env)
	if err != nil {
		return nil, err
	}
	scripts, ok := pkg.Object("scripts")
	if !ok {
		return report, nil
	}

	for _, name := range scripts.Keys() {
		v, _ := scripts.Get(name)
		cmd, ok := v.(string)
		if !ok {
			continue
		}
		m := nodeScript.FindStringSubmatch(cmd)
		if m == nil {
			continue
		}
		report.Checked++
		if c.env.FS.Exists(c.env.path(m[1])) {
			continue
		}
		report.Removed = append(report.Removed, StaleScript{Name: name, Command: cmd, File: m[1]})
	}
	sort.Slice(report.Removed, func(i, j int) bool { return report.Removed[i].Name < report.Removed[j].Name })

	if len(report.Removed) == 0 {
		return report, nil
	}
	for _, s := range report.Removed {
		if c.env.DryRun {
			log.Info(ctx, "would remove stale script", ports.F("script", s.Name), ports.F("file", s.File))
			continue
		}
		scripts.Delete(s.Name)
		log.Info(ctx, "removed stale script", ports.F("script", s.Name), ports.F("file", s.File))
	}
	if c.env.DryRun {
		return report, nil
	}
	return report, writePackage(c.env, pkg)
}
