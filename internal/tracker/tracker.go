package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Event is one append-only trace record. Retried attempts append additional
// running events with an increasing attempt number.
type Event struct {
	Task      string    `json:"task"`
	Status    Status    `json:"status"`
	Attempt   int       `json:"attempt,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Result carries the outcome details of a finished attempt.
type Result struct {
	ExitCode int
	Attempts int
	// Category is the failure classification (launch, nonzero_exit, timeout,
	// missing_output, canceled). Empty on success.
	Category string
	// Message is the underlying error text. Empty on success.
	Message string
	// OutputTail holds the last captured lines of combined output.
	OutputTail []string
	// Artifacts maps declared output keys to their artifact paths.
	Artifacts map[string]string
}

// RunState is the mutable per-task record owned by the Tracker. It is
// mutated only through Transition/Finish calls issued by the scheduler and
// becomes frozen once the status is terminal.
type RunState struct {
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Result     Result
}

// Tracker records every task state transition for one run. Writes go through
// a single scheduler goroutine, but the tracker carries its own lock so the
// report can be rendered safely from anywhere.
type Tracker struct {
	mu        sync.Mutex
	states    map[string]*RunState
	canceled  bool
	trace     *json.Encoder
	startedAt time.Time
	clock     func() time.Time
}

// New creates a tracker with one Pending entry per task id. Each entry's
// creation is itself recorded in the trace. traceW receives one JSON event
// per line; pass io.Discard to disable trace persistence.
func New(taskIDs []string, traceW io.Writer) *Tracker {
	t := &Tracker{
		states: make(map[string]*RunState, len(taskIDs)),
		trace:  json.NewEncoder(traceW),
		clock:  time.Now,
	}
	t.startedAt = t.clock()

	sorted := append([]string{}, taskIDs...)
	sort.Strings(sorted)
	for _, id := range sorted {
		t.states[id] = &RunState{Status: Pending}
		t.append(Event{Task: id, Status: Pending, Timestamp: t.startedAt})
	}
	return t
}

// Transition moves a task to a non-terminal status or to Skipped. It rejects
// transitions out of a terminal status and any move not permitted by the
// status state machine.
func (t *Tracker) Transition(taskID string, to Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.check(taskID, to)
	if err != nil {
		return err
	}
	if to == Succeeded || to == Failed {
		return fmt.Errorf("task %q: use Finish for terminal status %s", taskID, to)
	}

	now := t.clock()
	state.Status = to
	switch to {
	case Running:
		state.StartedAt = now
		state.Result.Attempts = 1
	case Skipped:
		state.FinishedAt = now
	}
	t.append(Event{Task: taskID, Status: to, Timestamp: now})
	return nil
}

// RecordAttempt appends a retry event for a Running task. attempt is the
// 1-based attempt number about to start.
func (t *Tracker) RecordAttempt(taskID string, attempt int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[taskID]
	if !ok {
		return fmt.Errorf("unknown task %q", taskID)
	}
	if state.Status != Running {
		return fmt.Errorf("task %q: cannot record attempt in status %s", taskID, state.Status)
	}
	state.Result.Attempts = attempt
	t.append(Event{Task: taskID, Status: Running, Attempt: attempt, Timestamp: t.clock()})
	return nil
}

// Finish moves a Running task to Succeeded or Failed and records the attempt
// outcome. The state is frozen afterwards.
func (t *Tracker) Finish(taskID string, to Status, res Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.check(taskID, to)
	if err != nil {
		return err
	}
	if to != Succeeded && to != Failed {
		return fmt.Errorf("task %q: Finish requires Succeeded or Failed, got %s", taskID, to)
	}

	now := t.clock()
	attempts := state.Result.Attempts
	if res.Attempts == 0 {
		res.Attempts = attempts
	}
	state.Status = to
	state.FinishedAt = now
	state.Result = res
	t.append(Event{Task: taskID, Status: to, Timestamp: now})
	return nil
}

// MarkCanceled records that the run was canceled before every task could
// finish. A canceled run is never reported as successful, even when no task
// ended Failed.
func (t *Tracker) MarkCanceled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canceled = true
}

// Status returns the current status of a task.
func (t *Tracker) Status(taskID string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[taskID]
	if !ok {
		return 0, false
	}
	return state.Status, true
}

// check validates that a transition is legal and returns the state record.
// Callers must hold t.mu.
func (t *Tracker) check(taskID string, to Status) (*RunState, error) {
	state, ok := t.states[taskID]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", taskID)
	}
	if state.Status.Terminal() {
		return nil, fmt.Errorf("task %q: already terminal (%s), refusing transition to %s",
			taskID, state.Status, to)
	}
	if !legalNext(state.Status, to) {
		return nil, fmt.Errorf("task %q: illegal transition %s -> %s", taskID, state.Status, to)
	}
	return state, nil
}

// append writes one trace event. Trace write errors must not affect the run,
// so they are swallowed after the encoder records them.
func (t *Tracker) append(ev Event) {
	// Errors intentionally ignored; the trace is best-effort persistence.
	_ = t.trace.Encode(ev)
}
