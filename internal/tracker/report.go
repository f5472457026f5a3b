package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// TaskReport is the per-task section of the final run report.
type TaskReport struct {
	ID         string            `json:"id"`
	Status     Status            `json:"status"`
	Attempts   int               `json:"attempts,omitempty"`
	ExitCode   int               `json:"exit_code"`
	DurationMS int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
	Category   string            `json:"error_category,omitempty"`
	OutputTail []string          `json:"output_tail,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
}

// Report is the machine-parseable summary of one run. Success requires both
// that no task Failed and that the run was not canceled; a cancellation that
// only skipped tasks still makes the run unsuccessful.
type Report struct {
	Success    bool           `json:"success"`
	Canceled   bool           `json:"canceled,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Counts     map[string]int `json:"counts"`
	Tasks      []TaskReport   `json:"tasks"`
}

// Report renders the run summary from the current state. It is normally
// called once, after the scheduler loop has finished.
func (t *Tracker) Report() *Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	rep := &Report{
		Success:    !t.canceled,
		Canceled:   t.canceled,
		StartedAt:  t.startedAt,
		FinishedAt: t.clock(),
		Counts:     make(map[string]int),
	}

	ids := make([]string, 0, len(t.states))
	for id := range t.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		state := t.states[id]
		rep.Counts[state.Status.String()]++
		if state.Status == Failed {
			rep.Success = false
		}

		var duration time.Duration
		if !state.StartedAt.IsZero() && !state.FinishedAt.IsZero() {
			duration = state.FinishedAt.Sub(state.StartedAt)
		}
		rep.Tasks = append(rep.Tasks, TaskReport{
			ID:         id,
			Status:     state.Status,
			Attempts:   state.Result.Attempts,
			ExitCode:   state.Result.ExitCode,
			DurationMS: duration.Milliseconds(),
			Error:      state.Result.Message,
			Category:   state.Result.Category,
			OutputTail: state.Result.OutputTail,
			Artifacts:  state.Result.Artifacts,
		})
	}
	return rep
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteSummary writes a short human-readable summary: one line per task plus
// totals.
func (r *Report) WriteSummary(w io.Writer) {
	for _, task := range r.Tasks {
		line := fmt.Sprintf("%-12s %s", task.Status, task.ID)
		if task.Status == Failed {
			line += fmt.Sprintf(" (%s: %s)", task.Category, task.Error)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d tasks:", len(r.Tasks))
	for _, status := range []Status{Succeeded, Failed, Skipped} {
		if n := r.Counts[status.String()]; n > 0 {
			fmt.Fprintf(w, " %d %s", n, status)
		}
	}
	fmt.Fprintln(w)
}

// FailedTasks returns the ids of tasks that ended Failed, in ascending order.
func (r *Report) FailedTasks() []string {
	var out []string
	for _, task := range r.Tasks {
		if task.Status == Failed {
			out = append(out, task.ID)
		}
	}
	return out
}
