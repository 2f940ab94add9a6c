// Package orchestrator drives the ordered cleanup pipeline through the step
// runner and produces the run report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/logging"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/execution"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// ErrAborted is returned by Run when a required step or the backup failed.
var ErrAborted = errors.New("cleanup aborted")

// RollbackCommand is printed when a run leaves a backup behind.
const RollbackCommand = "cleanup-orchestrator rollback"

// State is the orchestrator's lifecycle state.
type State string

// Orchestrator states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

func (s State) id() statekit.StateID { return statekit.StateID(s) }

// Event types for the orchestrator state machine.
const (
	EventStart    = "START"
	EventComplete = "COMPLETE"
	EventAbort    = "ABORT"
)

// BackupStore is the part of *backup.Store the orchestrator drives.
type BackupStore interface {
	execution.Checkpointer
	CreateSnapshot(ctx context.Context) (*backup.Snapshot, error)
	Cleanup(ctx context.Context, keepBackup bool) (string, error)
}

// Options are the run settings recorded in the report.
type Options struct {
	DryRun     bool     `json:"dryRun"`
	Verbose    bool     `json:"verbose"`
	SkipSteps  []string `json:"skipSteps,omitempty"`
	UseBackup  bool     `json:"useBackup"`
	UseGit     bool     `json:"useGit"`
	ProjectDir string   `json:"projectDir"`
	ReportDir  string   `json:"reportDir"`
	LogFile    string   `json:"logFile,omitempty"`
}

// Deps are the orchestrator's collaborators. Every field is optional.
type Deps struct {
	Store     BackupStore
	Logger    ports.Logger
	Out       io.Writer
	FS        ports.FileSystem
	Validator execution.Validator
	Clock     func() time.Time
	// Styled forces lipgloss rendering of the summary; nil detects a terminal on Out.
	Styled *bool
}

// machineContext is the statekit context; the orchestrator keeps its own state.
type machineContext struct {
	Cause error
}

// Orchestrator runs one pipeline once.
type Orchestrator struct {
	opts   Options
	steps  []execution.Step
	deps   Deps
	interp *statekit.Interpreter[machineContext]
	final  State
	cause  error
}

// New creates an orchestrator for steps.
func New(opts Options, steps []execution.Step, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Orchestrator{opts: opts, steps: steps, deps: deps}
}

func buildMachine() (*statekit.Interpreter[machineContext], error) {
	machine, err := statekit.NewMachine[machineContext]("cleanup-orchestrator").
		WithInitial(StateIdle.id()).
		WithContext(machineContext{}).
		WithAction("recordCause", func(c *machineContext, event statekit.Event) {
			if err, ok := event.Payload.(error); ok {
				c.Cause = err
			}
		}).
		State(StateIdle.id()).
		On(EventStart).Target(StateRunning.id()).Done().
		State(StateRunning.id()).
		On(EventComplete).Target(StateCompleted.id()).
		On(EventAbort).Target(StateAborted.id()).Done().
		State(StateCompleted.id()).Done().
		State(StateAborted.id()).
		OnEntry("recordCause").Done().
		Build()
	if err != nil {
		return nil, err
	}
	return statekit.NewInterpreter(machine), nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	if o.final != "" {
		return o.final
	}
	if o.interp == nil {
		return StateIdle
	}
	return State(o.interp.State().Value)
}

// Run walks the steps, writes the report and settles the backup. It returns
// ErrAborted, wrapping the cause, when a required step or the snapshot failed.
// Failed optional steps only show up in the report.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	interp, err := buildMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}
	o.interp = interp
	o.final = ""
	o.cause = nil
	o.interp.Start()
	defer o.interp.Stop()

	log := o.deps.Logger
	started := o.deps.Clock()
	o.interp.Send(statekit.Event{Type: EventStart})
	log.Info(ctx, "starting cleanup", ports.F("dryRun", o.opts.DryRun), ports.F("steps", len(o.steps)))

	var snapshot *backup.Snapshot
	store := o.activeStore()
	if store != nil {
		snapshot, err = store.CreateSnapshot(ctx)
		if err != nil {
			o.abort(ctx, err)
			store = nil
		}
	}

	runner := execution.NewRunner(o.runnerOptions(store)...)

	if o.cause == nil {
		for _, step := range o.steps {
			if err := ctx.Err(); err != nil {
				o.abort(ctx, err)
				break
			}
			out := runner.Execute(ctx, step)
			if out.IsFatal() {
				o.abort(ctx, out.Err())
				break
			}
		}
	}

	if o.cause == nil {
		o.interp.Send(statekit.Event{Type: EventComplete})
		o.final = StateCompleted
	} else {
		o.final = StateAborted
	}

	report := o.buildReport(runner.Journal(), snapshot, started)
	if path, err := o.writeReport(report); err != nil {
		log.Error(ctx, "failed to write report", ports.F("error", err))
	} else {
		report.Path = path
		log.Info(ctx, "wrote report", ports.F("path", path))
	}

	keep := !report.Success()
	if store != nil {
		manifest, err := store.Cleanup(ctx, keep)
		if err != nil {
			keep = true
			log.Warn(ctx, "backup cleanup incomplete", ports.F("error", err))
		}
		report.Manifest = manifest
	}

	o.printSummary(report, snapshot != nil && keep)

	if o.final == StateAborted {
		return report, fmt.Errorf("%w: %w", ErrAborted, o.cause)
	}
	return report, nil
}

func (o *Orchestrator) activeStore() BackupStore {
	if o.opts.DryRun || !o.opts.UseBackup || o.deps.Store == nil {
		return nil
	}
	return o.deps.Store
}

func (o *Orchestrator) runnerOptions(store BackupStore) []execution.RunnerOption {
	opts := []execution.RunnerOption{
		execution.WithDryRun(o.opts.DryRun),
		execution.WithSkip(o.opts.SkipSteps),
		execution.WithLogger(o.deps.Logger),
		execution.WithClock(o.deps.Clock),
	}
	if store != nil {
		opts = append(opts, execution.WithCheckpointer(store))
	}
	if o.deps.Validator != nil {
		opts = append(opts, execution.WithDefaultValidator(o.deps.Validator))
	}
	return opts
}

func (o *Orchestrator) abort(ctx context.Context, cause error) {
	o.cause = cause
	o.deps.Logger.Error(ctx, "aborting cleanup", ports.F("error", cause))
	o.interp.Send(statekit.Event{Type: EventAbort, Payload: cause})
}
