package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/runtime"
)

// outputTailLines is how many trailing lines of combined output are retained
// per attempt for the report.
const outputTailLines = 20

// killGrace bounds how long Wait blocks on the output pipes after the task's
// context is done. Orphaned grandchildren of a killed shell can otherwise hold
// the pipes open indefinitely.
const killGrace = time.Second

// Invocation carries the resolved, per-attempt context for one task: where
// its artifacts live and under which environment it runs.
type Invocation struct {
	// Inputs maps declared input keys to resolved artifact paths.
	Inputs map[string]string
	// Outputs maps declared output keys to the paths the task must produce.
	Outputs map[string]string
	// WorkDir is the task-scoped working directory.
	WorkDir string
	// Env is the profile environment.
	Env map[string]string
}

// Result is the outcome of one attempt.
type Result struct {
	ExitCode   int
	OutputTail []string
}

// Executor runs one ready task in an isolated environment. Implementations
// must be safe for concurrent use; the scheduler calls Run from multiple
// workers.
type Executor interface {
	Run(ctx context.Context, task *config.Task, inv Invocation) (*Result, error)
}

// Local launches tasks as local processes, wrapped for the selected
// container runtime. Isolation boundary: the task-scoped working directory
// plus whatever namespace the runtime provides.
type Local struct {
	runtime runtime.Runtime
}

// NewLocal creates an executor for the given runtime.
func NewLocal(rt runtime.Runtime) *Local {
	return &Local{runtime: rt}
}

// Run renders the task's command, launches it, and verifies the declared
// outputs. The returned error classifies the failure (LaunchError,
// NonZeroExitError, TimeoutError, MissingOutputError); the Result is non-nil
// whenever the process produced any observable outcome.
func (l *Local) Run(ctx context.Context, task *config.Task, inv Invocation) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("task", task.ID)

	script, err := renderCommand(task.Command, inv.Inputs, inv.Outputs)
	if err != nil {
		return nil, &LaunchError{Err: err}
	}

	if err := os.MkdirAll(inv.WorkDir, 0o755); err != nil {
		return nil, &LaunchError{Err: err}
	}

	runCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	name, args := l.runtime.Command(runtime.Spec{
		Image:     task.Image,
		WorkDir:   inv.WorkDir,
		Script:    script,
		Env:       inv.Env,
		Resources: task.Resources,
	})
	logger.Debug("Launching task command.", "runtime", l.runtime.Name(), "argv0", name)

	tail := newTailBuffer(outputTailLines)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.WaitDelay = killGrace
	cmd.Dir = inv.WorkDir
	cmd.Stdout = tail
	cmd.Stderr = tail
	cmd.Env = append(os.Environ(), runtime.EnvPairs(inv.Env)...)

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Err: err}
	}

	waitErr := cmd.Wait()
	result := &Result{ExitCode: cmd.ProcessState.ExitCode(), OutputTail: tail.Tail()}

	if waitErr != nil {
		// A deadline on runCtx means the process was killed by the timeout;
		// report that rather than the opaque kill status.
		if task.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Task exceeded its timeout.", "timeout", task.Timeout)
			return result, &TimeoutError{Limit: task.Timeout}
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return result, &NonZeroExitError{Code: exitErr.ExitCode()}
		}
		return result, &LaunchError{Err: waitErr}
	}

	for key, path := range inv.Outputs {
		if _, err := os.Stat(path); err != nil {
			logger.Warn("Declared output artifact missing.", "key", key, "path", path)
			return result, &MissingOutputError{Key: key, Path: path}
		}
	}

	return result, nil
}
