package dag

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle. Cycle holds the task ids on the
// cycle in traversal order, with the first id repeated at the end.
type CycleError struct {
	Cycle []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// UnresolvedInputError reports a declared input key that no task produces
// and that was not supplied as an external run input.
type UnresolvedInputError struct {
	TaskID string
	Input  string
}

// Error implements the error interface.
func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("task %q declares input %q, but no task produces it and it was not supplied as a run input",
		e.TaskID, e.Input)
}

// AmbiguousProducerError reports two tasks claiming to produce the same
// output key.
type AmbiguousProducerError struct {
	Output  string
	TaskIDs [2]string
}

// Error implements the error interface.
func (e *AmbiguousProducerError) Error() string {
	return fmt.Sprintf("output %q is produced by both %q and %q", e.Output, e.TaskIDs[0], e.TaskIDs[1])
}
