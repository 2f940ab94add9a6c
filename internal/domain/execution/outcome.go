package execution

// OutcomeKind classifies how a step ended.
type OutcomeKind int

// Outcome kinds.
const (
	// KindOK means the step completed or was skipped.
	KindOK OutcomeKind = iota
	// KindStepFailed means an optional step failed and the run continues.
	KindStepFailed
	// KindFatal means the run must abort.
	KindFatal
)

// String returns the string representation of the kind.
func (k OutcomeKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindStepFailed:
		return "step_failed"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of Runner.Execute.
type Outcome struct {
	kind  OutcomeKind
	value any
	err   error
}

// OutcomeOK creates a successful outcome carrying the step's result.
func OutcomeOK(value any) Outcome {
	return Outcome{kind: KindOK, value: value}
}

// OutcomeStepFailed creates a non-fatal failure.
func OutcomeStepFailed(err error) Outcome {
	return Outcome{kind: KindStepFailed, err: err}
}

// OutcomeFatal creates a failure that aborts the run.
func OutcomeFatal(err error) Outcome {
	return Outcome{kind: KindFatal, err: err}
}

// Kind returns the outcome kind.
func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

// Value returns the step result; nil unless the outcome is OK.
func (o Outcome) Value() any {
	return o.value
}

// Err returns the failure, nil for OK outcomes.
func (o Outcome) Err() error {
	return o.err
}

// OK reports whether the step succeeded or was skipped.
func (o Outcome) OK() bool {
	return o.kind == KindOK
}

// IsFatal reports whether the run must abort.
func (o Outcome) IsFatal() bool {
	return o.kind == KindFatal
}
