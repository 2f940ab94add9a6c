// Package execution runs pipeline steps one at a time, checkpointing before
// each and rolling the step back when it fails.
package execution

import (
	"time"
)

// Status is the state a journal entry records for a step.
type Status string

// Step statuses.
const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepResult is one journal entry.
type StepResult struct {
	Step      string    `json:"step"`
	Status    Status    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Success returns true if the entry records a completed step.
func (r StepResult) Success() bool {
	return r.Status == StatusCompleted
}

// Terminal reports whether the entry ends the step's lifecycle.
func (r StepResult) Terminal() bool {
	return r.Status != StatusStarted
}

// Counts tallies a journal.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SuccessRate returns completed steps as a percentage of started steps.
func (c Counts) SuccessRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Completed) / float64(c.Total) * 100
}

// Journal is the append-only, ordered audit trail of a run.
type Journal struct {
	entries []StepResult
	counts  Counts
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Record appends an entry and updates the counters. Total counts started steps.
func (j *Journal) Record(r StepResult) {
	j.entries = append(j.entries, r)
	switch r.Status {
	case StatusStarted:
		j.counts.Total++
	case StatusCompleted:
		j.counts.Completed++
	case StatusFailed:
		j.counts.Failed++
	case StatusSkipped:
		j.counts.Skipped++
	}
}

// Entries returns a copy of every entry in order.
func (j *Journal) Entries() []StepResult {
	out := make([]StepResult, len(j.entries))
	copy(out, j.entries)
	return out
}

// Counts returns the current tallies.
func (j *Journal) Counts() Counts {
	return j.counts
}

// Len returns the number of entries.
func (j *Journal) Len() int {
	return len(j.entries)
}

// Final returns the last entry for each step, in first-seen order.
func (j *Journal) Final() []StepResult {
	index := make(map[string]int)
	var out []StepResult
	for _, e := range j.entries {
		if i, ok := index[e.Step]; ok {
			out[i] = e
			continue
		}
		index[e.Step] = len(out)
		out = append(out, e)
	}
	return out
}

// Failed returns the terminal failed entries.
func (j *Journal) Failed() []StepResult {
	var out []StepResult
	for _, e := range j.entries {
		if e.Status == StatusFailed {
			out = append(out, e)
		}
	}
	return out
}
