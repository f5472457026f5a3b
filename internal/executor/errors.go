package executor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LaunchError indicates the process or container failed to start at all.
type LaunchError struct {
	Err error
}

// Error implements the error interface.
func (e *LaunchError) Error() string { return fmt.Sprintf("failed to launch task: %v", e.Err) }

// Unwrap returns the underlying launch failure.
func (e *LaunchError) Unwrap() error { return e.Err }

// NonZeroExitError indicates the tool ran but returned a nonzero exit code.
type NonZeroExitError struct {
	Code int
}

// Error implements the error interface.
func (e *NonZeroExitError) Error() string { return fmt.Sprintf("task exited with code %d", e.Code) }

// TimeoutError indicates the task exceeded its wall-clock limit and was
// terminated. For retry purposes it counts as a failed attempt, like a
// nonzero exit.
type TimeoutError struct {
	Limit time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task timed out after %s and was terminated", e.Limit)
}

// MissingOutputError indicates the tool exited 0 but a declared output
// artifact is absent.
type MissingOutputError struct {
	Key  string
	Path string
}

// Error implements the error interface.
func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("task exited 0 but declared output %q is missing at %s", e.Key, e.Path)
}

// Categorize maps an execution error to its report category.
func Categorize(err error) string {
	var launch *LaunchError
	var nonzero *NonZeroExitError
	var timeout *TimeoutError
	var missing *MissingOutputError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &launch):
		return "launch"
	case errors.As(err, &nonzero):
		return "nonzero_exit"
	case errors.As(err, &missing):
		return "missing_output"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
