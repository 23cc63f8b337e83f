// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies a command failure.
type ErrorCategory string

const (
	// CategoryValidation means the invocation was wrong: a bad flag, a
	// missing argument, an invalid config file.
	CategoryValidation ErrorCategory = "validation"

	// CategoryConflict means the command collided with existing state,
	// such as another harmd holding the state directory.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient means a retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal is everything else.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command error with an optional hint for
// the operator.
type ToolError struct {
	Category ErrorCategory
	Err      error

	// Hint is printed after the message, separated by a blank line.
	Hint string
}

func (e *ToolError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + e.Hint
}

func (e *ToolError) Unwrap() error { return e.Err }

// WithHint sets the hint and returns e.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// ExitCode maps the category to a process exit code.
func (e *ToolError) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryConflict:
		return 3
	case CategoryTransient:
		return 4
	default:
		return 1
	}
}

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryConflict, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
