package orchestrator

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/execution"
)

// ReportTimeFormat is the timestamp used in report file names.
const ReportTimeFormat = "2006-01-02T15-04-05Z"

// Summary holds the report's tallies.
type Summary struct {
	execution.Counts
	SuccessRate float64 `json:"successRate"`
}

// StepError is one entry of the report's error list.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// RunReport is the persisted outcome of a run.
type RunReport struct {
	State      State                  `json:"state"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt time.Time              `json:"finishedAt"`
	Options    Options                `json:"options"`
	Steps      []execution.StepResult `json:"steps"`
	Summary    Summary                `json:"summary"`
	Errors     []StepError            `json:"errors,omitempty"`
	Cause      string                 `json:"cause,omitempty"`
	Backup     string                 `json:"backup,omitempty"`
	Method     backup.Method          `json:"backupMethod,omitempty"`

	// Path and Manifest are filled in after persistence.
	Path     string `json:"-"`
	Manifest string `json:"-"`
}

// Success reports whether the run completed without any failed step.
func (r *RunReport) Success() bool {
	return r.State == StateCompleted && r.Summary.Failed == 0
}

// Failed returns the names of failed steps in order.
func (r *RunReport) Failed() []string {
	names := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		names = append(names, e.Step)
	}
	return names
}

func (o *Orchestrator) buildReport(j *execution.Journal, snap *backup.Snapshot, started time.Time) *RunReport {
	counts := j.Counts()
	report := &RunReport{
		State:      o.State(),
		StartedAt:  started,
		FinishedAt: o.deps.Clock(),
		Options:    o.opts,
		Steps:      j.Entries(),
		Summary:    Summary{Counts: counts, SuccessRate: counts.SuccessRate()},
	}
	for _, e := range j.Failed() {
		report.Errors = append(report.Errors, StepError{Step: e.Step, Error: e.Error})
	}
	if o.cause != nil {
		report.Cause = o.cause.Error()
	}
	if snap != nil {
		report.Backup = snap.Locator()
		report.Method = snap.Method
	}
	return report
}

// writeReport persists the report as cleanup-report-<timestamp>.json.
func (o *Orchestrator) writeReport(r *RunReport) (string, error) {
	if o.deps.FS == nil {
		return "", fmt.Errorf("no file system configured")
	}
	dir := o.opts.ReportDir
	if dir == "" {
		dir = o.opts.ProjectDir
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "cleanup-report-"+r.FinishedAt.UTC().Format(ReportTimeFormat)+".json")
	if err := o.deps.FS.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
