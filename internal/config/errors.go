package config

import (
	"fmt"
	"strings"
)

// Error codes for categorization.
const (
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeNotAProject    = "NOT_A_PROJECT"
	ErrCodeNoBackup       = "NO_BACKUP"
	ErrCodeToolMissing    = "TOOL_MISSING"
	ErrCodeCleanupAborted = "CLEANUP_ABORTED"
)

// UserError is an error with a message meant for the person running the CLI.
type UserError struct {
	Code       string // Error code for categorization (e.g., "NO_BACKUP")
	Message    string // User-friendly error message
	Context    string // Directory, file or step the error refers to
	Suggestion string // Actionable suggestion to fix the error
	Underlying error  // Wrapped error for error chain
}

// Error returns the message and its context.
func (e *UserError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, " (at %s)", e.Context)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain support.
func (e *UserError) Unwrap() error {
	return e.Underlying
}

// Is matches another UserError with the same code.
func (e *UserError) Is(target error) bool {
	if t, ok := target.(*UserError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewUserError creates a UserError wrapping err.
func NewUserError(code, message, suggestion string, err error) *UserError {
	return &UserError{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Underlying: err,
	}
}

// WithContext returns a copy of e pointing at context.
func (e *UserError) WithContext(context string) *UserError {
	c := *e
	c.Context = context
	return &c
}
