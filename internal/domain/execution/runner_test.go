package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
)

type fakeCheckpointer struct {
	fail    bool
	created []string
	rolled  []string
	rollErr error
	events  *[]string
}

func (f *fakeCheckpointer) CreateCheckpoint(_ context.Context, name string, _ []string) *backup.Checkpoint {
	f.created = append(f.created, name)
	if f.events != nil {
		*f.events = append(*f.events, "checkpoint:"+name)
	}
	if f.fail {
		return &backup.Checkpoint{Name: name, Error: "disk full"}
	}
	return &backup.Checkpoint{Name: name, Success: true}
}

func (f *fakeCheckpointer) RollbackToCheckpoint(_ context.Context, name string) error {
	f.rolled = append(f.rolled, name)
	return f.rollErr
}

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRunner(opts ...RunnerOption) *Runner {
	return NewRunner(append([]RunnerOption{WithClock(func() time.Time { return testTime })}, opts...)...)
}

func statuses(j *Journal) []Status {
	var out []Status
	for _, e := range j.Entries() {
		out = append(out, e.Status)
	}
	return out
}

func TestRunner_Success(t *testing.T) {
	cp := &fakeCheckpointer{}
	r := newTestRunner(WithCheckpointer(cp))

	out := r.Execute(context.Background(), Step{
		Name: "Asset Cleanup",
		Run: func(context.Context) (any, error) {
			return map[string]int{"moved": 2}, nil
		},
		Files: []string{"assets"},
	})

	require.True(t, out.OK())
	assert.Equal(t, KindOK, out.Kind())
	assert.Equal(t, map[string]int{"moved": 2}, out.Value())
	assert.NoError(t, out.Err())
	assert.Equal(t, []string{"Asset Cleanup"}, cp.created)
	assert.Empty(t, cp.rolled)

	assert.Equal(t, []Status{StatusStarted, StatusCompleted}, statuses(r.Journal()))
	entries := r.Journal().Entries()
	assert.Equal(t, testTime, entries[1].Timestamp)
	assert.Equal(t, Counts{Total: 1, Completed: 1}, r.Journal().Counts())
}

func TestRunner_Skip(t *testing.T) {
	cp := &fakeCheckpointer{}
	called := false
	r := newTestRunner(WithCheckpointer(cp), WithSkip([]string{"Dead Code Detection"}))

	out := r.Execute(context.Background(), Step{
		Name: "Dead Code Detection",
		Run: func(context.Context) (any, error) {
			called = true
			return nil, nil
		},
	})

	assert.True(t, out.OK())
	assert.Nil(t, out.Value())
	assert.False(t, called)
	assert.Empty(t, cp.created)
	assert.Equal(t, []Status{StatusSkipped}, statuses(r.Journal()))
	assert.Equal(t, Counts{Skipped: 1}, r.Journal().Counts())
}

func TestRunner_OptionalFailureRollsBack(t *testing.T) {
	cp := &fakeCheckpointer{}
	r := newTestRunner(WithCheckpointer(cp))

	out := r.Execute(context.Background(), Step{
		Name: "Asset Cleanup",
		Run: func(context.Context) (any, error) {
			return nil, errors.New("boom")
		},
	})

	assert.Equal(t, KindStepFailed, out.Kind())
	assert.EqualError(t, out.Err(), "boom")
	assert.Equal(t, []string{"Asset Cleanup"}, cp.rolled)

	entries := r.Journal().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, StatusFailed, entries[1].Status)
	assert.Equal(t, "boom", entries[1].Error)
}

func TestRunner_RequiredFailureIsFatal(t *testing.T) {
	r := newTestRunner()

	out := r.Execute(context.Background(), Step{
		Name:     "Initial Setup",
		Required: true,
		Run: func(context.Context) (any, error) {
			return nil, errors.New("no package.json")
		},
	})

	assert.True(t, out.IsFatal())
	assert.ErrorContains(t, out.Err(), "no package.json")
	assert.ErrorContains(t, out.Err(), "Initial Setup")
}

func TestRunner_FatalErrorFromOptionalStep(t *testing.T) {
	r := newTestRunner()
	cause := errors.New("corrupt state")

	out := r.Execute(context.Background(), Step{
		Name: "optional",
		Run: func(context.Context) (any, error) {
			return nil, Fatal(cause)
		},
	})

	assert.True(t, out.IsFatal())
	assert.ErrorIs(t, out.Err(), cause)
}

func TestRunner_PanicIsFatal(t *testing.T) {
	cp := &fakeCheckpointer{}
	r := newTestRunner(WithCheckpointer(cp))

	out := r.Execute(context.Background(), Step{
		Name: "bad",
		Run: func(context.Context) (any, error) {
			panic("nil map")
		},
	})

	assert.True(t, out.IsFatal())
	assert.ErrorContains(t, out.Err(), "panic: nil map")
	assert.Equal(t, []string{"bad"}, cp.rolled)
	assert.Equal(t, 1, r.Journal().Counts().Failed)
}

func TestRunner_CheckpointFailureContinuesWithoutRollback(t *testing.T) {
	cp := &fakeCheckpointer{fail: true}
	r := newTestRunner(WithCheckpointer(cp))

	out := r.Execute(context.Background(), Step{
		Name: "step",
		Run: func(context.Context) (any, error) {
			return nil, errors.New("boom")
		},
	})

	assert.Equal(t, KindStepFailed, out.Kind())
	assert.Equal(t, []string{"step"}, cp.created)
	assert.Empty(t, cp.rolled)
}

func TestRunner_RollbackErrorIsSwallowed(t *testing.T) {
	cp := &fakeCheckpointer{rollErr: errors.New("restore failed")}
	r := newTestRunner(WithCheckpointer(cp))

	out := r.Execute(context.Background(), Step{
		Name: "step",
		Run: func(context.Context) (any, error) {
			return nil, errors.New("boom")
		},
	})

	assert.Equal(t, KindStepFailed, out.Kind())
	assert.EqualError(t, out.Err(), "boom")
}

func TestRunner_CheckpointPrecedesTerminalEntry(t *testing.T) {
	var events []string
	cp := &fakeCheckpointer{events: &events}
	r := newTestRunner(WithCheckpointer(cp))

	r.Execute(context.Background(), Step{
		Name: "step",
		Run: func(context.Context) (any, error) {
			events = append(events, "work")
			return nil, nil
		},
	})

	assert.Equal(t, []string{"checkpoint:step", "work"}, events)
}

func TestRunner_Validation(t *testing.T) {
	failing := func(context.Context) error { return errors.New("tsc: 3 errors") }
	passing := func(context.Context) error { return nil }
	ok := func(context.Context) (any, error) { return "done", nil }

	tests := []struct {
		name     string
		opts     []RunnerOption
		step     Step
		wantKind OutcomeKind
	}{
		{
			name:     "default validator failure",
			opts:     []RunnerOption{WithDefaultValidator(failing)},
			step:     Step{Name: "s", Run: ok},
			wantKind: KindStepFailed,
		},
		{
			name:     "step validator overrides default",
			opts:     []RunnerOption{WithDefaultValidator(failing)},
			step:     Step{Name: "s", Run: ok, Validate: passing},
			wantKind: KindOK,
		},
		{
			name:     "skip validation",
			opts:     []RunnerOption{WithDefaultValidator(failing)},
			step:     Step{Name: "s", Run: ok, SkipValidation: true},
			wantKind: KindOK,
		},
		{
			name:     "dry run skips validation",
			opts:     []RunnerOption{WithDefaultValidator(failing), WithDryRun(true)},
			step:     Step{Name: "s", Run: ok},
			wantKind: KindOK,
		},
		{
			name:     "required step validation failure is fatal",
			opts:     []RunnerOption{WithDefaultValidator(failing)},
			step:     Step{Name: "s", Run: ok, Required: true},
			wantKind: KindFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(tt.opts...)
			out := r.Execute(context.Background(), tt.step)
			assert.Equal(t, tt.wantKind, out.Kind())
			if tt.wantKind != KindOK {
				assert.ErrorIs(t, out.Err(), ErrValidation)
			}
		})
	}
}

func TestRunner_DryRunNeverCheckpoints(t *testing.T) {
	cp := &fakeCheckpointer{}
	r := newTestRunner(WithCheckpointer(cp), WithDryRun(true))
	assert.True(t, r.DryRun())

	out := r.Execute(context.Background(), Step{
		Name: "step",
		Run: func(context.Context) (any, error) {
			return nil, errors.New("boom")
		},
	})

	assert.Equal(t, KindStepFailed, out.Kind())
	assert.Empty(t, cp.created)
	assert.Empty(t, cp.rolled)
}

func TestRunner_NilWork(t *testing.T) {
	r := newTestRunner()
	out := r.Execute(context.Background(), Step{Name: "noop"})
	assert.True(t, out.OK())
}

func TestJournal_Final(t *testing.T) {
	j := NewJournal()
	j.Record(StepResult{Step: "a", Status: StatusStarted})
	j.Record(StepResult{Step: "b", Status: StatusSkipped})
	j.Record(StepResult{Step: "a", Status: StatusFailed, Error: "x"})

	final := j.Final()
	require.Len(t, final, 2)
	assert.Equal(t, StatusFailed, final[0].Status)
	assert.Equal(t, StatusSkipped, final[1].Status)
	assert.Len(t, j.Failed(), 1)
	assert.Equal(t, 3, j.Len())
}

func TestCounts_SuccessRate(t *testing.T) {
	assert.Zero(t, Counts{}.SuccessRate())
	assert.InDelta(t, 75.0, Counts{Total: 4, Completed: 3}.SuccessRate(), 0.001)
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "ok", KindOK.String())
	assert.Equal(t, "step_failed", KindStepFailed.String())
	assert.Equal(t, "fatal", KindFatal.String())
	assert.Equal(t, "unknown", OutcomeKind(42).String())
}

func TestFatal_Nil(t *testing.T) {
	assert.NoError(t, Fatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
}

// Every executed step leaves exactly one terminal entry and the counters agree
// with the journal, whatever mix of successes, failures and skips runs.
func TestRunner_JournalCounts_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("counts match terminal entries", prop.ForAll(
		func(fails []bool, skipFirst bool) bool {
			var skip []string
			if skipFirst {
				skip = []string{"step-0"}
			}
			r := NewRunner(WithSkip(skip))
			for i, fail := range fails {
				fail := fail
				r.Execute(context.Background(), Step{
					Name: fmt.Sprintf("step-%d", i),
					Run: func(context.Context) (any, error) {
						if fail {
							return nil, errors.New("failed")
						}
						return nil, nil
					},
				})
			}

			c := r.Journal().Counts()
			terminal := 0
			for _, e := range r.Journal().Entries() {
				if e.Terminal() {
					terminal++
				}
			}
			return c.Completed+c.Failed+c.Skipped == terminal &&
				c.Total == c.Completed+c.Failed &&
				terminal == len(fails)
		},
		gen.SliceOf(gen.Bool()),
		gen.Bool(),
	))

	properties.Property("skipped steps never run", prop.ForAll(
		func(name string) bool {
			ran := false
			r := NewRunner(WithSkip([]string{name}))
			out := r.Execute(context.Background(), Step{
				Name: name,
				Run: func(context.Context) (any, error) {
					ran = true
					return nil, nil
				},
			})
			return !ran && out.OK() && r.Journal().Counts() == Counts{Skipped: 1}
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
