package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of the entire pipeline
// configuration: every task descriptor plus every named execution profile.
// It is built once at startup and read-only thereafter.
type Model struct {
	Tasks    []*Task
	Profiles map[string]*Profile
}

// Task is the immutable descriptor of one external-tool invocation.
type Task struct {
	// ID is the unique task identifier.
	ID string
	// Image is the container image reference, opaque to the engine.
	Image string
	// Command is the unevaluated command template. It is evaluated by the
	// executor with `in`/`out` variables bound to resolved artifact paths.
	Command hcl.Expression
	// Inputs are the declared input keys consumed by this task.
	Inputs []string
	// Outputs are the declared output keys produced by this task.
	Outputs []string
	// Resources are the task's requested resources, after profile overrides.
	Resources Resources
	// Retry bounds how many times a failing invocation is attempted.
	Retry RetryPolicy
	// Timeout is the wall-clock limit for one attempt. Zero means no limit.
	Timeout time.Duration
}

// Resources describes a task's cpu and memory request. The engine records and
// exposes these; it does not enforce them (enforcement belongs to the
// container runtime).
type Resources struct {
	CPUs   int
	Memory string
}

// RetryPolicy bounds the attempts made for a failing task.
type RetryPolicy struct {
	// Attempts is the total number of attempts, including the first.
	Attempts int
	// Backoff is the initial interval between attempts; subsequent intervals
	// grow exponentially.
	Backoff time.Duration
}

// Profile is the process-wide execution configuration, initialized once at
// run start and read-only thereafter.
type Profile struct {
	Name        string
	Concurrency int
	Runtime     string
	WorkDir     string
	Env         map[string]string
	// Inputs maps externally supplied input keys to artifact paths.
	Inputs map[string]string
	// Overrides replaces the named tasks' resources for this profile.
	Overrides map[string]Resources
}

// TaskByID returns the task with the given id, or nil if none exists.
func (m *Model) TaskByID(id string) *Task {
	for _, t := range m.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
