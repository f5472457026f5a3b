package tracker

import "fmt"

// Status is the execution status of one task.
type Status int32

const (
	// Pending indicates the task is waiting for upstream dependencies.
	Pending Status = iota
	// Ready indicates every upstream dependency has succeeded and the task
	// is eligible for dispatch.
	Ready
	// Running indicates a worker is executing the task.
	Running
	// Succeeded indicates the task completed and produced all declared outputs.
	Succeeded
	// Failed indicates the task exhausted its retry attempts without succeeding.
	Failed
	// Skipped indicates the task never ran because an upstream dependency
	// failed or the run was canceled.
	Skipped
)

// String returns the lower-case status name used in traces and reports.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Terminal reports whether the status is final. A task's state may not be
// mutated once it reaches a terminal status.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

// MarshalJSON encodes the status as its string name.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// legalNext enumerates the allowed status transitions.
func legalNext(from, to Status) bool {
	switch from {
	case Pending:
		return to == Ready || to == Skipped
	case Ready:
		return to == Running || to == Skipped
	case Running:
		return to == Succeeded || to == Failed
	default:
		return false
	}
}
