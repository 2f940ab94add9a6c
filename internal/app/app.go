// Package app wires the cleanup pipeline, the backup store and the loggers
// for one invocation of the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/command"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/filesystem"
	gitadapter "github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/git"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/config"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/execution"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/orchestrator"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/tasks"
)

// App is one configured invocation.
type App struct {
	opts   config.Options
	fs     ports.FileSystem
	runner ports.CommandRunner
	git    backup.Git
	logger ports.Logger
	closer io.Closer
	out    io.Writer
	errOut io.Writer
	clock  func() time.Time
	styled *bool
	steps  []execution.Step
}

// Option configures an App.
type Option func(*App)

// WithFileSystem replaces the real file system.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(a *App) {
		a.fs = fs
	}
}

// WithCommandRunner replaces the process runner used by tasks and git.
func WithCommandRunner(r ports.CommandRunner) Option {
	return func(a *App) {
		a.runner = r
	}
}

// WithGit replaces the git client used by the backup store.
func WithGit(g backup.Git) Option {
	return func(a *App) {
		a.git = g
	}
}

// WithLogger replaces the console and file loggers.
func WithLogger(l ports.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithOutput sets where the summary and the console log go.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.clock = now
	}
}

// WithStyled forces the summary style instead of detecting a terminal.
func WithStyled(styled bool) Option {
	return func(a *App) {
		a.styled = &styled
	}
}

// WithSteps replaces the default pipeline.
func WithSteps(steps []execution.Step) Option {
	return func(a *App) {
		a.steps = steps
	}
}

// New creates an App for opts. Call Close when done to flush the log file.
func New(opts config.Options, options ...Option) (*App, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		opts:   opts,
		out:    os.Stdout,
		errOut: os.Stderr,
		clock:  time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	if a.fs == nil {
		a.fs = filesystem.NewRealFileSystem()
	}
	if a.runner == nil {
		a.runner = command.NewRealRunner(command.WithDir(opts.ProjectDir))
	}
	if a.git == nil && opts.UseGit {
		a.git = gitadapter.NewClient(opts.ProjectDir, a.runner, gitadapter.WithExcludes(opts.ArtifactPatterns()...))
	}
	if a.logger == nil {
		logger, closer, err := NewLogger(opts, a.errOut)
		if err != nil {
			return nil, err
		}
		a.logger, a.closer = logger, closer
	}
	return a, nil
}

// Options returns the options the App was created with.
func (a *App) Options() config.Options {
	return a.opts
}

// Logger returns the App's logger.
func (a *App) Logger() ports.Logger {
	return a.logger
}

// Close flushes and closes the log file.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *App) taskEnv() tasks.Env {
	return tasks.Env{
		Root:   a.opts.ProjectDir,
		DryRun: a.opts.DryRun,
		FS:     a.fs,
		Runner: a.runner,
		Logger: a.logger,
		Ignore: a.opts.ArtifactPatterns(),
	}
}

// NewStore creates the backup store for the project.
func (a *App) NewStore() *backup.Store {
	method := backup.MethodGit
	if !a.opts.UseGit || a.git == nil {
		method = backup.MethodFilesystem
	}
	excludes := append(append([]string(nil), backup.DefaultExcludes...), a.opts.Excludes...)
	return backup.NewStore(a.opts.ProjectDir, a.fs, a.git,
		backup.WithMethod(method),
		backup.WithBackupRoot(a.opts.BackupDir),
		backup.WithExcludes(excludes),
		backup.WithLogger(a.logger),
		backup.WithClock(a.clock),
	)
}

// Run runs the cleanup pipeline once. The error wraps orchestrator.ErrAborted
// when a required step or the backup failed.
func (a *App) Run(ctx context.Context) (*orchestrator.RunReport, error) {
	ctx = ports.ContextWithLogger(ctx, a.logger)
	env := a.taskEnv()

	steps := a.steps
	if steps == nil {
		steps = Pipeline(env)
	}

	deps := orchestrator.Deps{
		Logger:    a.logger,
		Out:       a.out,
		FS:        a.fs,
		Validator: tasks.NewTypeChecker(env).Validate,
		Clock:     a.clock,
		Styled:    a.styled,
	}
	if a.opts.UseBackup && !a.opts.DryRun {
		deps.Store = a.NewStore()
	}

	orch := orchestrator.New(orchestrator.Options{
		DryRun:     a.opts.DryRun,
		Verbose:    a.opts.Verbose,
		SkipSteps:  a.opts.SkipSteps,
		UseBackup:  a.opts.UseBackup,
		UseGit:     a.opts.UseGit,
		ProjectDir: a.opts.ProjectDir,
		ReportDir:  a.opts.ResolvePath(a.opts.ReportDir),
		LogFile:    a.opts.ResolvePath(a.opts.LogFile),
	}, steps, deps)
	return orch.Run(ctx)
}

// ErrNothingToRollback is returned by Rollback when no backup exists.
var ErrNothingToRollback = errors.New("no backup found to roll back to")

// Rollback restores the project to the most recent snapshot and returns it.
func (a *App) Rollback(ctx context.Context) (*backup.Snapshot, error) {
	ctx = ports.ContextWithLogger(ctx, a.logger)
	store := a.NewStore()

	snap, err := store.LoadLatest(ctx)
	if err != nil {
		if errors.Is(err, backup.ErrNoSnapshot) {
			return nil, fmt.Errorf("%w in %s", ErrNothingToRollback, store.BackupRoot())
		}
		return nil, err
	}
	a.logger.Info(ctx, "rolling back", ports.F("snapshot", snap.ShortID()), ports.F("method", snap.Method))

	if err := store.RollbackToInitial(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}
