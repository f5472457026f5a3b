package config

import "fmt"

// ConfigurationError reports an invalid model or profile. It is fatal and is
// surfaced before any task is scheduled.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// runtimes recognized by the executor. "none" runs commands as plain
// local processes.
var knownRuntimes = map[string]bool{
	"none":        true,
	"docker":      true,
	"singularity": true,
	"conda":       true,
}

// KnownRuntime reports whether name is a supported container runtime.
func KnownRuntime(name string) bool {
	return knownRuntimes[name]
}

// Validate checks the model's tasks for internal consistency. Structural
// properties that need the dependency graph (cycles, unresolved inputs) are
// checked by the graph builder, not here.
func (m *Model) Validate() error {
	seen := make(map[string]bool, len(m.Tasks))
	for _, t := range m.Tasks {
		if t.ID == "" {
			return &ConfigurationError{Field: "task", Reason: "empty task id"}
		}
		if seen[t.ID] {
			return &ConfigurationError{Field: "task." + t.ID, Reason: "duplicate task id"}
		}
		seen[t.ID] = true

		if t.Command == nil {
			return &ConfigurationError{Field: "task." + t.ID + ".command", Reason: "missing command"}
		}
		if t.Retry.Attempts < 1 {
			return &ConfigurationError{
				Field:  "task." + t.ID + ".retry.attempts",
				Reason: fmt.Sprintf("must be at least 1, got %d", t.Retry.Attempts),
			}
		}
		if t.Timeout < 0 {
			return &ConfigurationError{Field: "task." + t.ID + ".timeout", Reason: "must not be negative"}
		}

		keys := make(map[string]bool, len(t.Outputs))
		for _, out := range t.Outputs {
			if keys[out] {
				return &ConfigurationError{
					Field:  "task." + t.ID + ".outputs",
					Reason: fmt.Sprintf("duplicate output key %q", out),
				}
			}
			keys[out] = true
		}
	}

	for name, p := range m.Profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		for taskID := range p.Overrides {
			if !seen[taskID] {
				return &ConfigurationError{
					Field:  "profile." + name + ".override",
					Reason: fmt.Sprintf("override references unknown task %q", taskID),
				}
			}
		}
	}
	return nil
}

// Validate checks a single profile.
func (p *Profile) Validate() error {
	if p.Concurrency < 1 {
		return &ConfigurationError{
			Field:  "profile." + p.Name + ".concurrency",
			Reason: fmt.Sprintf("must be at least 1, got %d", p.Concurrency),
		}
	}
	if !KnownRuntime(p.Runtime) {
		return &ConfigurationError{
			Field:  "profile." + p.Name + ".runtime",
			Reason: fmt.Sprintf("unknown runtime %q (want none, docker, singularity or conda)", p.Runtime),
		}
	}
	if p.WorkDir == "" {
		return &ConfigurationError{Field: "profile." + p.Name + ".workdir", Reason: "missing working directory"}
	}
	return nil
}

// ApplyOverrides returns a copy of the task list with this profile's resource
// overrides applied. The original tasks are not mutated; descriptors stay
// immutable once the graph is built from the returned slice.
func (p *Profile) ApplyOverrides(tasks []*Task) []*Task {
	if len(p.Overrides) == 0 {
		return tasks
	}
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		if res, ok := p.Overrides[t.ID]; ok {
			clone := *t
			clone.Resources = res
			out[i] = &clone
		} else {
			out[i] = t
		}
	}
	return out
}
