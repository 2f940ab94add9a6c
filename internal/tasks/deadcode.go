package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// UnusedExport is an exported symbol nothing imports.
type UnusedExport struct {
	File string `json:"file"`
	Name string `json:"name"`
	Line int    `json:"line,omitempty"`
}

// DeadCodeReport is the result of DeadCodeDetector.
type DeadCodeReport struct {
	Tool          string         `json:"tool"`
	UnusedFiles   []string       `json:"unusedFiles"`
	UnusedExports []UnusedExport `json:"unusedExports"`
}

// DeadCodeDetector finds unused files and exports. It tries knip first, then
// ts-prune, then unimported.
type DeadCodeDetector struct {
	env Env
}

// NewDeadCodeDetector creates a DeadCodeDetector.
func NewDeadCodeDetector(env Env) *DeadCodeDetector {
	return &DeadCodeDetector{env: env}
}

type deadCodeTool struct {
	name  string
	args  []string
	parse func(ports.CommandResult) (*DeadCodeReport, error)
}

// Run returns the report of the first tool that works.
func (d *DeadCodeDetector) Run(ctx context.Context) (*DeadCodeReport, error) {
	tools := []deadCodeTool{
		{name: "knip", args: []string{"--yes", "knip", "--reporter", "json", "--no-exit-code"}, parse: parseKnip},
		{name: "ts-prune", args: []string{"--yes", "ts-prune"}, parse: parseTSPrune},
		{name: "unimported", args: []string{"--yes", "unimported", "--show-unused-files"}, parse: parseUnimported},
	}

	log := d.env.logger()
	var errs []error
	for _, tool := range tools {
		res, err := d.env.Runner.Run(ctx, "npx", tool.args...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tool.name, err))
			continue
		}
		report, err := tool.parse(res)
		if err != nil {
			log.Debug(ctx, "dead code tool unusable", ports.F("tool", tool.name), ports.F("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", tool.name, err))
			continue
		}
		report.Tool = tool.name
		sort.Strings(report.UnusedFiles)
		log.Info(ctx, "dead code detection complete",
			ports.F("tool", tool.name),
			ports.F("unusedFiles", len(report.UnusedFiles)),
			ports.F("unusedExports", len(report.UnusedExports)))
		return report, nil
	}
	return nil, fmt.Errorf("%w: no dead code tool succeeded: %w", ErrToolUnavailable, errors.Join(errs...))
}

func newDeadCodeReport() *DeadCodeReport {
	return &DeadCodeReport{UnusedFiles: []string{}, UnusedExports: []UnusedExport{}}
}

type knipOutput struct {
	Files  []string `json:"files"`
	Issues []struct {
		File    string `json:"file"`
		Exports []struct {
			Name string `json:"name"`
			Line int    `json:"line"`
		} `json:"exports"`
		Types []struct {
			Name string `json:"name"`
			Line int    `json:"line"`
		} `json:"types"`
	} `json:"issues"`
}

func parseKnip(res ports.CommandResult) (*DeadCodeReport, error) {
	if res.ExitCode > 1 || strings.TrimSpace(res.Stdout) == "" {
		return nil, fmt.Errorf("exit %d: %s", res.ExitCode, firstLines(res.Output(), 3))
	}
	var out knipOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}
	report := newDeadCodeReport()
	report.UnusedFiles = append(report.UnusedFiles, out.Files...)
	for _, issue := range out.Issues {
		for _, e := range issue.Exports {
			report.UnusedExports = append(report.UnusedExports, UnusedExport{File: issue.File, Name: e.Name, Line: e.Line})
		}
		for _, e := range issue.Types {
			report.UnusedExports = append(report.UnusedExports, UnusedExport{File: issue.File, Name: e.Name, Line: e.Line})
		}
	}
	return report, nil
}

// tsPruneLine matches "src/a.ts:12 - foo" and "src/a.ts:12 - foo (used in module)".
var tsPruneLine = regexp.MustCompile(`^(.+?):(\d+) - (\S+)(.*)$`)

func parseTSPrune(res ports.CommandResult) (*DeadCodeReport, error) {
	if !res.Success() {
		return nil, fmt.Errorf("exit %d: %s", res.ExitCode, firstLines(res.Output(), 3))
	}
	report := newDeadCodeReport()
	for _, line := range strings.Split(res.Stdout, "\n") {
		m := tsPruneLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || strings.Contains(m[4], "used in module") {
			continue
		}
		var n int
		_, _ = fmt.Sscanf(m[2], "%d", &n)
		report.UnusedExports = append(report.UnusedExports, UnusedExport{File: m[1], Name: m[3], Line: n})
	}
	return report, nil
}

// unimportedFile matches a file row of unimported's table output.
var unimportedFile = regexp.MustCompile(`^\s*\d+\s*│\s*(\S+\.(?:js|jsx|ts|tsx|mjs|cjs))\s*$`)

func parseUnimported(res ports.CommandResult) (*DeadCodeReport, error) {
	if res.ExitCode > 1 {
		return nil, fmt.Errorf("exit %d: %s", res.ExitCode, firstLines(res.Output(), 3))
	}
	report := newDeadCodeReport()
	for _, line := range strings.Split(res.Stdout, "\n") {
		if m := unimportedFile.FindStringSubmatch(line); m != nil {
			report.UnusedFiles = append(report.UnusedFiles, m[1])
		}
	}
	return report, nil
}
