package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/executor"
	"github.com/vk/pipegrid/internal/tracker"
)

// Scheduler walks the dependency graph, dispatching ready tasks to a bounded
// worker pool. A single coordinating goroutine performs every run-state
// transition; workers only execute tasks and report back over a channel.
type Scheduler struct {
	graph     *dag.Graph
	profile   *config.Profile
	exec      executor.Executor
	tracker   *tracker.Tracker
	runInputs map[string]string

	wg sync.WaitGroup
}

// New creates a scheduler for one run. runInputs maps externally supplied
// input keys to artifact paths; the graph build has already verified that
// every unproduced input key appears there.
func New(graph *dag.Graph, profile *config.Profile, exec executor.Executor, tr *tracker.Tracker, runInputs map[string]string) *Scheduler {
	return &Scheduler{
		graph:     graph,
		profile:   profile,
		exec:      exec,
		tracker:   tr,
		runInputs: runInputs,
	}
}

// Run drives the graph to completion. It returns an error if any task ended
// Failed or the run was canceled; tasks skipped only because an upstream
// failed are reported through the tracker, not as separate errors.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	total := len(s.graph.Nodes)
	if total == 0 {
		logger.Info("Nothing to run: pipeline has no tasks.")
		return nil
	}

	dispatchCh := make(chan *dag.Node)
	resultCh := make(chan message, total)

	workers := s.profile.Concurrency
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i, dispatchCh, resultCh)
	}

	err := s.coordinate(ctx, dispatchCh, resultCh)

	close(dispatchCh)
	s.wg.Wait()
	return err
}

// coordinate is the single-writer scheduling loop.
func (s *Scheduler) coordinate(ctx context.Context, dispatchCh chan<- *dag.Node, resultCh <-chan message) error {
	logger := ctxlog.FromContext(ctx)

	remaining := make(map[string]int, len(s.graph.Nodes))
	var ready []string
	for id, n := range s.graph.Nodes {
		remaining[id] = len(n.Deps)
	}
	// Seed the ready queue from the topological order so root tasks come out
	// in ascending id order.
	for _, id := range s.graph.TopologicalOrder() {
		if remaining[id] == 0 {
			s.mustTransition(id, tracker.Ready)
			ready = append(ready, id)
		}
	}

	terminal := 0
	inflight := 0
	canceled := false
	done := ctx.Done()

	for terminal < len(s.graph.Nodes) {
		// Dispatch as many ready tasks as pool slots allow, ascending id.
		for !canceled && inflight < s.profile.Concurrency && len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			if status, ok := s.tracker.Status(id); !ok || status != tracker.Ready {
				// Skipped by a cascade after entering the queue.
				continue
			}
			s.mustTransition(id, tracker.Running)
			logger.Debug("Dispatching task.", "task", id)
			dispatchCh <- s.graph.Nodes[id]
			inflight++
		}

		if inflight == 0 && (canceled || len(ready) == 0) {
			// No work running and nothing dispatchable; every remaining task
			// must be skippable (canceled run or exhausted subgraph).
			break
		}

		select {
		case <-done:
			// Disarm this case so the loop drains results instead of
			// spinning on the closed channel.
			done = nil
			canceled = true
			logger.Warn("Run canceled; skipping pending tasks and terminating running ones.")
			skipped := s.skipNonTerminal(&ready)
			if skipped > 0 || inflight > 0 {
				s.tracker.MarkCanceled()
			}
			terminal += skipped
		case msg := <-resultCh:
			switch msg.kind {
			case kindRetry:
				// Status stays Running; the trace gains an attempt event.
				if err := s.tracker.RecordAttempt(msg.taskID, msg.attempt); err != nil {
					logger.Error("Failed to record retry attempt.", "task", msg.taskID, "error", err)
				}
			case kindDone:
				inflight--
				terminal++
				if msg.err == nil {
					s.finishSucceeded(msg)
					terminal += s.unlockDependents(msg.taskID, remaining, &ready, canceled)
				} else {
					logger.Error("Task failed.", "task", msg.taskID, "error", msg.err)
					s.finishFailed(msg)
					terminal += s.skipDescendants(msg.taskID)
				}
			}
		}
	}

	return s.runError(ctx.Err())
}

// unlockDependents decrements dependents' unmet-dependency counts, moving
// newly unblocked tasks to Ready. During cancellation they are skipped
// instead. Returns how many tasks reached a terminal status.
func (s *Scheduler) unlockDependents(taskID string, remaining map[string]int, ready *[]string, canceled bool) int {
	skipped := 0
	for _, depID := range s.graph.DependentsOf(taskID) {
		remaining[depID]--
		if remaining[depID] > 0 {
			continue
		}
		if status, ok := s.tracker.Status(depID); !ok || status.Terminal() {
			// Already skipped by a cascade or cancellation sweep.
			continue
		}
		if canceled {
			s.mustTransition(depID, tracker.Skipped)
			skipped++
			continue
		}
		s.mustTransition(depID, tracker.Ready)
		insertSorted(ready, depID)
	}
	return skipped
}

// skipDescendants marks every non-terminal task reachable from the failed
// task as Skipped and returns how many were skipped.
func (s *Scheduler) skipDescendants(taskID string) int {
	skipped := 0
	var visit func(id string)
	visit = func(id string) {
		for _, depID := range s.graph.DependentsOf(id) {
			status, ok := s.tracker.Status(depID)
			if !ok || status.Terminal() {
				continue
			}
			s.mustTransition(depID, tracker.Skipped)
			skipped++
			visit(depID)
		}
	}
	visit(taskID)
	return skipped
}

// skipNonTerminal skips every Pending and Ready task during cancellation.
// Running tasks are left to come back through the result channel.
func (s *Scheduler) skipNonTerminal(ready *[]string) int {
	skipped := 0
	for _, id := range s.graph.TopologicalOrder() {
		status, ok := s.tracker.Status(id)
		if !ok || status.Terminal() || status == tracker.Running {
			continue
		}
		s.mustTransition(id, tracker.Skipped)
		skipped++
	}
	*ready = nil
	return skipped
}

// finishSucceeded records a successful terminal state.
func (s *Scheduler) finishSucceeded(msg message) {
	res := tracker.Result{
		Attempts:  msg.attempt,
		Artifacts: msg.artifacts,
	}
	if msg.result != nil {
		res.ExitCode = msg.result.ExitCode
		res.OutputTail = msg.result.OutputTail
	}
	s.mustFinish(msg.taskID, tracker.Succeeded, res)
}

// finishFailed records a failed terminal state with its error category. A
// task killed by cancellation also marks the whole run canceled; the result
// message can reach the coordinator before the context case fires.
func (s *Scheduler) finishFailed(msg message) {
	res := tracker.Result{
		Attempts: msg.attempt,
		Category: executor.Categorize(msg.err),
		Message:  msg.err.Error(),
		ExitCode: -1,
	}
	if msg.result != nil {
		res.ExitCode = msg.result.ExitCode
		res.OutputTail = msg.result.OutputTail
	}
	if res.Category == "canceled" {
		s.tracker.MarkCanceled()
	}
	s.mustFinish(msg.taskID, tracker.Failed, res)
}

// runError summarizes the run outcome as an error, or nil on success. A
// canceled run always carries the context error in its chain so callers can
// tell cancellation apart from ordinary tool failures.
func (s *Scheduler) runError(ctxErr error) error {
	report := s.tracker.Report()
	failed := report.FailedTasks()
	switch {
	case report.Canceled && len(failed) > 0:
		return fmt.Errorf("run canceled, execution failed for %s: %w", strings.Join(failed, ", "), ctxErr)
	case len(failed) > 0:
		return fmt.Errorf("execution failed for %s", strings.Join(failed, ", "))
	case report.Canceled:
		return fmt.Errorf("run canceled: %w", ctxErr)
	default:
		return nil
	}
}

// mustTransition applies a transition that the scheduling invariants
// guarantee to be legal. A rejection here is a scheduler bug.
func (s *Scheduler) mustTransition(taskID string, to tracker.Status) {
	if err := s.tracker.Transition(taskID, to); err != nil {
		panic(fmt.Sprintf("scheduler: %v", err))
	}
}

// mustFinish is mustTransition for terminal results.
func (s *Scheduler) mustFinish(taskID string, to tracker.Status, res tracker.Result) {
	if err := s.tracker.Finish(taskID, to, res); err != nil {
		panic(fmt.Sprintf("scheduler: %v", err))
	}
}

// invocation resolves the artifact paths and environment for one task.
func (s *Scheduler) invocation(n *dag.Node) executor.Invocation {
	inputs := make(map[string]string, len(n.Task.Inputs))
	for _, key := range n.Task.Inputs {
		if producer, ok := s.graph.Producer(key); ok {
			inputs[key] = s.artifactPath(producer, key)
		} else {
			inputs[key] = s.runInputs[key]
		}
	}
	outputs := make(map[string]string, len(n.Task.Outputs))
	for _, key := range n.Task.Outputs {
		outputs[key] = s.artifactPath(n.ID, key)
	}
	return executor.Invocation{
		Inputs:  inputs,
		Outputs: outputs,
		WorkDir: s.taskDir(n.ID),
		Env:     s.profile.Env,
	}
}

// taskDir returns the task-scoped working directory. The tree is partitioned
// by task id so concurrent tasks never share a writer.
func (s *Scheduler) taskDir(taskID string) string {
	return filepath.Join(s.profile.WorkDir, "tasks", taskID)
}

// artifactPath returns where the given task's declared output key lives.
func (s *Scheduler) artifactPath(taskID, key string) string {
	return filepath.Join(s.taskDir(taskID), key)
}

// insertSorted inserts id into the ready queue keeping ascending order.
func insertSorted(queue *[]string, id string) {
	q := *queue
	i := sort.SearchStrings(q, id)
	q = append(q, "")
	copy(q[i+1:], q[i:])
	q[i] = id
	*queue = q
}
