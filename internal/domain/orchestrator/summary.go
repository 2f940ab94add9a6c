package orchestrator

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/execution"
)

// Summary colors.
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	colorError   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
	colorPrimary = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
)

type summaryStyles struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
	command lipgloss.Style
}

func newSummaryStyles(styled bool) summaryStyles {
	if !styled {
		plain := lipgloss.NewStyle()
		return summaryStyles{title: plain, ok: plain, warn: plain, fail: plain, muted: plain, command: plain}
	}
	return summaryStyles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		ok:      lipgloss.NewStyle().Foreground(colorSuccess),
		warn:    lipgloss.NewStyle().Foreground(colorWarning),
		fail:    lipgloss.NewStyle().Bold(true).Foreground(colorError),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
		command: lipgloss.NewStyle().Bold(true),
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (o *Orchestrator) styled() bool {
	if o.deps.Styled != nil {
		return *o.deps.Styled
	}
	return isTerminal(o.deps.Out)
}

func (o *Orchestrator) printSummary(r *RunReport, backupKept bool) {
	WriteSummary(o.deps.Out, r, backupKept, o.styled())
}

// WriteSummary renders the human-readable run summary.
func WriteSummary(w io.Writer, r *RunReport, backupKept, styled bool) {
	st := newSummaryStyles(styled)
	title := cases.Title(language.English)

	var b strings.Builder
	mode := "apply"
	if r.Options.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "%s\n", st.title.Render(fmt.Sprintf("Cleanup %s (%s)", title.String(string(r.State)), mode)))

	for _, step := range finalSteps(r.Steps) {
		label := fmt.Sprintf("%-9s", title.String(string(step.Status)))
		switch step.Status {
		case execution.StatusCompleted:
			label = st.ok.Render(label)
		case execution.StatusFailed:
			label = st.fail.Render(label)
		case execution.StatusSkipped:
			label = st.muted.Render(label)
		default:
			label = st.warn.Render(label)
		}
		line := fmt.Sprintf("  %s %s", label, step.Step)
		if step.Error != "" {
			line += st.muted.Render(": " + step.Error)
		}
		b.WriteString(line + "\n")
	}

	s := r.Summary
	fmt.Fprintf(&b, "\n%d steps: %d completed, %d failed, %d skipped (%.0f%% success)\n",
		s.Total, s.Completed, s.Failed, s.Skipped, s.SuccessRate)

	if len(r.Errors) > 0 {
		b.WriteString(st.fail.Render("Failed steps:") + "\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s: %s\n", e.Step, e.Error)
		}
	}
	if r.Cause != "" {
		fmt.Fprintf(&b, "%s %s\n", st.fail.Render("Aborted:"), r.Cause)
	}
	if r.Path != "" {
		fmt.Fprintf(&b, "%s %s\n", st.muted.Render("Report:"), r.Path)
	}
	if backupKept {
		fmt.Fprintf(&b, "%s %s\n", st.warn.Render("Backup kept at"), r.Backup)
		fmt.Fprintf(&b, "Run %s to restore the initial state.\n", st.command.Render(RollbackCommand))
	}

	_, _ = io.WriteString(w, b.String())
}

// finalSteps keeps the last journal entry per step.
func finalSteps(entries []execution.StepResult) []execution.StepResult {
	j := execution.NewJournal()
	for _, e := range entries {
		j.Record(e)
	}
	return j.Final()
}
