package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/executor"
)

// messageKind distinguishes worker notifications.
type messageKind int

const (
	// kindRetry announces the start of another attempt for a running task.
	kindRetry messageKind = iota
	// kindDone reports a task's final attempt outcome.
	kindDone
)

// message is a worker-to-coordinator notification.
type message struct {
	kind      messageKind
	taskID    string
	attempt   int
	result    *executor.Result
	err       error
	artifacts map[string]string
}

// worker executes dispatched tasks one at a time, applying the task's retry
// policy, and reports outcomes to the coordinator. A worker blocks only
// while an executor call (or a backoff sleep) is outstanding.
func (s *Scheduler) worker(ctx context.Context, workerID int, dispatchCh <-chan *dag.Node, resultCh chan<- message) {
	defer s.wg.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range dispatchCh {
		resultCh <- s.runTask(ctx, n, resultCh)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// runTask runs one task through its bounded retry loop.
func (s *Scheduler) runTask(ctx context.Context, n *dag.Node, resultCh chan<- message) message {
	logger := ctxlog.FromContext(ctx).With("task", n.ID)
	inv := s.invocation(n)

	bo := backoff.NewExponentialBackOff()
	if n.Task.Retry.Backoff > 0 {
		bo.InitialInterval = n.Task.Retry.Backoff
	}
	bo.Reset()

	var result *executor.Result
	var err error
	attempt := 1
	for {
		result, err = s.exec.Run(ctx, n.Task, inv)
		if err == nil {
			return message{
				kind:      kindDone,
				taskID:    n.ID,
				attempt:   attempt,
				result:    result,
				artifacts: inv.Outputs,
			}
		}
		if attempt >= n.Task.Retry.Attempts || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			break
		}

		wait := bo.NextBackOff()
		logger.Warn("Attempt failed, retrying.",
			"attempt", attempt, "of", n.Task.Retry.Attempts, "backoff", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return message{kind: kindDone, taskID: n.ID, attempt: attempt, result: result, err: ctx.Err()}
		}

		attempt++
		resultCh <- message{kind: kindRetry, taskID: n.ID, attempt: attempt}
	}

	return message{kind: kindDone, taskID: n.ID, attempt: attempt, result: result, err: err}
}
