package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/logging"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/config"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/orchestrator"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/tasks"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/testutil"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/testutil/mocks"
)

const messyAppJSON = `{"expo":{"name":"demo","plugins":[]}}`

func fixedClock() time.Time {
	return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
}

func newProject(t *testing.T) string {
	t.Helper()
	return testutil.NewProject(t).
		WithPackage("demo").
		WithScript("start", "expo start").
		WithFile("app.json", messyAppJSON).
		Build()
}

func testOptions(dir string, dryRun bool) config.Options {
	opts := config.Defaults()
	opts.ProjectDir = dir
	opts.DryRun = dryRun
	opts.UseGit = false
	return opts
}

func newTestApp(t *testing.T, opts config.Options) (*App, *mocks.CommandRunner, *bytes.Buffer) {
	t.Helper()
	runner := mocks.NewCommandRunner()
	runner.SetFallback(ports.CommandResult{Stdout: "{}"})
	var out bytes.Buffer
	a, err := New(opts,
		WithCommandRunner(runner),
		WithLogger(logging.NewNopLogger()),
		WithOutput(&out, &out),
		WithClock(fixedClock),
		WithStyled(false),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, runner, &out
}

func TestPipeline(t *testing.T) {
	dir := newProject(t)
	testutil.WriteFile(t, dir, "debug-login.js", "")

	steps := Pipeline(tasks.Env{Root: dir})
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
		assert.NotNil(t, s.Run, s.Name)
	}
	assert.Equal(t, StepNames(), names)

	assert.True(t, steps[0].Required)
	assert.True(t, steps[len(steps)-1].Required)
	for _, s := range steps[1 : len(steps)-1] {
		assert.False(t, s.Required, s.Name)
	}
	assert.Contains(t, steps[7].Files, "debug-login.js")
	assert.Contains(t, steps[7].Files, "package.json")
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := config.Defaults()
	opts.ProjectDir = ""
	_, err := New(opts)
	require.ErrorIs(t, err, config.ErrInvalidOptions)
}

func TestApp_RunDryRun(t *testing.T) {
	dir := newProject(t)
	a, runner, out := newTestApp(t, testOptions(dir, true))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StateCompleted, report.State)
	assert.True(t, report.Success())
	assert.Equal(t, 10, report.Summary.Total)

	testutil.AssertFileUnchanged(t, dir, "app.json", messyAppJSON)
	assert.NoDirExists(t, filepath.Join(dir, backup.DefaultBackupDir))
	assert.FileExists(t, filepath.Join(dir, "cleanup-report-2026-05-06T07-08-09Z.json"))
	assert.True(t, runner.Called("npx --yes depcheck"))
	assert.False(t, runner.Called("npx --no-install tsc"))
	assert.NotEmpty(t, out.String())
}

func TestApp_RunApplyWithFilesystemBackup(t *testing.T) {
	dir := newProject(t)
	a, _, _ := newTestApp(t, testOptions(dir, false))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.Equal(t, backup.MethodFilesystem, report.Method)

	assert.Equal(t, "{\n  \"expo\": {\n    \"name\": \"demo\"\n  }\n}\n", testutil.ReadFile(t, dir, "app.json"))
	assert.NoDirExists(t, filepath.Join(dir, backup.DefaultBackupDir))

	testutil.AssertOneMatch(t, dir, "backup-manifest-*.json")
}

func TestApp_ApplyAfterDryRunMovesReportedAssets(t *testing.T) {
	dir := newProject(t)
	testutil.WriteFile(t, dir, "assets/unused-icon.png", "png")

	dry, _, _ := newTestApp(t, testOptions(dir, true))
	_, err := dry.Run(context.Background())
	require.NoError(t, err)
	testutil.AssertOneMatch(t, dir, "cleanup-report-*.json")

	apply, _, _ := newTestApp(t, testOptions(dir, false))
	report, err := apply.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.NoFileExists(t, filepath.Join(dir, "assets", "unused-icon.png"))
	assert.FileExists(t, filepath.Join(dir, "assets", ".unused", "unused-icon.png"))
}

func TestNew_GitClientIgnoresRunArtifacts(t *testing.T) {
	opts := config.Defaults()
	opts.ProjectDir = t.TempDir()
	runner := mocks.NewCommandRunner()
	runner.SetFallback(ports.CommandResult{})

	a, err := New(opts, WithCommandRunner(runner), WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	require.NotNil(t, a.git)

	_, err = a.git.IsDirty(context.Background())
	require.NoError(t, err)
	assert.True(t, runner.Called("git status --porcelain -- . :(exclude).cleanup-backups :(exclude)cleanup-orchestrator.log"))
}

func TestApp_RunAbortsWithoutProject(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "app.json", messyAppJSON)
	a, _, out := newTestApp(t, testOptions(dir, false))

	report, err := a.Run(context.Background())
	require.ErrorIs(t, err, orchestrator.ErrAborted)
	require.ErrorIs(t, err, tasks.ErrNotAProject)
	assert.Equal(t, orchestrator.StateAborted, report.State)

	// Nothing after the failed required step ran.
	testutil.AssertFileUnchanged(t, dir, "app.json", messyAppJSON)
	assert.DirExists(t, filepath.Join(dir, backup.DefaultBackupDir))
	assert.Contains(t, out.String(), orchestrator.RollbackCommand)
}

func TestApp_RunSkipsSteps(t *testing.T) {
	dir := newProject(t)
	opts := testOptions(dir, false)
	opts.SkipSteps = []string{StepExpoConfig}
	a, _, _ := newTestApp(t, opts)

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Skipped)
	testutil.AssertFileUnchanged(t, dir, "app.json", messyAppJSON)
}

func TestApp_Rollback(t *testing.T) {
	dir := newProject(t)
	a, _, _ := newTestApp(t, testOptions(dir, false))

	store := a.NewStore()
	_, err := store.CreateSnapshot(context.Background())
	require.NoError(t, err)
	testutil.WriteFile(t, dir, "app.json", "{}")

	snap, err := a.Rollback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backup.MethodFilesystem, snap.Method)
	testutil.AssertFileUnchanged(t, dir, "app.json", messyAppJSON)
}

func TestApp_RollbackWithoutBackup(t *testing.T) {
	a, _, _ := newTestApp(t, testOptions(t.TempDir(), false))

	_, err := a.Rollback(context.Background())
	require.ErrorIs(t, err, ErrNothingToRollback)
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, true)
	opts.LogFile = "logs/run.log"

	var console bytes.Buffer
	logger, closer, err := NewLogger(opts, &console)
	require.NoError(t, err)
	logger.Debug(context.Background(), "hidden on console", ports.F("step", "x"))
	logger.Info(context.Background(), "shown everywhere")
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "hidden on console")
	assert.Contains(t, console.String(), "shown everywhere")

	logged := testutil.ReadFile(t, dir, "logs/run.log")
	assert.Contains(t, logged, `"message":"hidden on console"`)
	assert.Contains(t, logged, `"message":"shown everywhere"`)
}
