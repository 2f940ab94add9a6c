package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/logging"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// ErrValidation wraps validator failures.
var ErrValidation = errors.New("validation failed")

// Checkpointer protects a step's files. Implemented by *backup.Store.
type Checkpointer interface {
	CreateCheckpoint(ctx context.Context, name string, files []string) *backup.Checkpoint
	RollbackToCheckpoint(ctx context.Context, name string) error
}

// Runner executes steps and journals every transition.
type Runner struct {
	dryRun       bool
	skip         map[string]bool
	checkpointer Checkpointer
	validate     Validator
	logger       ports.Logger
	now          func() time.Time
	journal      *Journal
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDryRun disables checkpoints, rollbacks and validation.
func WithDryRun(dryRun bool) RunnerOption {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// WithSkip sets the names of steps that are journaled as skipped without running.
func WithSkip(names []string) RunnerOption {
	return func(r *Runner) {
		for _, n := range names {
			r.skip[n] = true
		}
	}
}

// WithCheckpointer enables per-step checkpoints.
func WithCheckpointer(c Checkpointer) RunnerOption {
	return func(r *Runner) {
		r.checkpointer = c
	}
}

// WithDefaultValidator sets the validator used for steps without their own.
func WithDefaultValidator(v Validator) RunnerOption {
	return func(r *Runner) {
		r.validate = v
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithClock overrides time.Now for journal timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner with an empty journal.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		skip:    make(map[string]bool),
		logger:  logging.NewNopLogger(),
		now:     time.Now,
		journal: NewJournal(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Journal returns the runner's journal.
func (r *Runner) Journal() *Journal {
	return r.journal
}

// DryRun reports whether the runner is in dry-run mode.
func (r *Runner) DryRun() bool {
	return r.dryRun
}

// Execute runs one step. Failures of optional steps are contained in an
// OutcomeStepFailed; failures of required steps, errors wrapped with Fatal and
// panics become OutcomeFatal.
func (r *Runner) Execute(ctx context.Context, step Step) Outcome {
	log := r.logger.With(ports.F("step", step.Name))

	if r.skip[step.Name] {
		r.record(step.Name, StatusSkipped, nil, nil)
		log.Info(ctx, "skipping step")
		return OutcomeOK(nil)
	}

	r.record(step.Name, StatusStarted, nil, nil)
	log.Info(ctx, "starting step", ports.F("description", step.Description))

	checkpointed := false
	if r.checkpointer != nil && !r.dryRun {
		cp := r.checkpointer.CreateCheckpoint(ctx, step.Name, step.Files)
		if cp != nil && cp.Success {
			checkpointed = true
		} else {
			log.Warn(ctx, "continuing without checkpoint")
		}
	}

	value, err := r.run(ctx, step)
	if err == nil {
		err = r.validateStep(ctx, step)
	}

	if err == nil {
		r.record(step.Name, StatusCompleted, value, nil)
		log.Info(ctx, "completed step")
		return OutcomeOK(value)
	}

	r.record(step.Name, StatusFailed, nil, err)
	log.Error(ctx, "step failed", ports.F("error", err))

	if checkpointed {
		if rbErr := r.checkpointer.RollbackToCheckpoint(ctx, step.Name); rbErr != nil {
			log.Error(ctx, "rollback to checkpoint failed", ports.F("error", rbErr))
		} else {
			log.Info(ctx, "rolled back step")
		}
	}

	if step.Required || IsFatal(err) {
		return OutcomeFatal(fmt.Errorf("step %q: %w", step.Name, err))
	}
	log.Warn(ctx, "continuing after optional step failure")
	return OutcomeStepFailed(err)
}

// run invokes the work function, converting a panic into a fatal error.
func (r *Runner) run(ctx context.Context, step Step) (value any, err error) {
	if step.Run == nil {
		return nil, nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = Fatal(fmt.Errorf("panic: %v", p))
		}
	}()
	return step.Run(ctx)
}

func (r *Runner) validateStep(ctx context.Context, step Step) error {
	if r.dryRun || step.SkipValidation {
		return nil
	}
	v := step.Validate
	if v == nil {
		v = r.validate
	}
	if v == nil {
		return nil
	}
	if err := v(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (r *Runner) record(name string, status Status, value any, err error) {
	entry := StepResult{
		Step:      name,
		Status:    status,
		Result:    value,
		Timestamp: r.now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	r.journal.Record(entry)
}
