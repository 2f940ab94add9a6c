package execution

import (
	"context"
	"errors"
)

// Work performs a step and returns a result payload for the journal.
type Work func(ctx context.Context) (any, error)

// Validator checks the project after a step's work succeeded.
type Validator func(ctx context.Context) error

// Step is one named unit of the cleanup pipeline.
type Step struct {
	Name        string
	Description string
	Run         Work
	// Required steps abort the whole run when they fail.
	Required bool
	// Files are the project-relative paths checkpointed before Run.
	Files []string
	// Validate overrides the runner's default validator.
	Validate Validator
	// SkipValidation disables post-step validation entirely.
	SkipValidation bool
}

// fatalError marks an error that must abort the run even from an optional step.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

// Fatal wraps err so the runner escalates it regardless of Step.Required.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was wrapped with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
