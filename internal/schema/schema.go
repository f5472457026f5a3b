// Package schema defines the HCL block structures that make up a pipeline
// definition. These structs are the raw, format-specific decoding targets;
// they are translated into the format-agnostic config model by the loader.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Resources represents the 'resources' block within a task, declaring the
// task's requested cpu and memory.
type Resources struct {
	CPUs   int    `hcl:"cpus,optional"`
	Memory string `hcl:"memory,optional"`
}

// Retry represents the 'retry' block within a task. Backoff is a duration
// string ("2s", "500ms") parsed during translation.
type Retry struct {
	Attempts int    `hcl:"attempts"`
	Backoff  string `hcl:"backoff,optional"`
}

// Task represents a `task` block from a user's pipeline file: one external
// tool invocation. The command attribute is kept as an unevaluated expression
// because its `in`/`out` template variables are only resolvable at execution
// time, once artifact paths are known.
type Task struct {
	ID        string         `hcl:"id,label"`
	Image     string         `hcl:"image,optional"`
	Command   hcl.Expression `hcl:"command"`
	Inputs    []string       `hcl:"inputs,optional"`
	Outputs   []string       `hcl:"outputs,optional"`
	Resources *Resources     `hcl:"resources,block"`
	Retry     *Retry         `hcl:"retry,block"`
	Timeout   string         `hcl:"timeout,optional"`
}

// Override represents an 'override' block within a profile, replacing a
// task's declared resources for that profile.
type Override struct {
	TaskID string `hcl:"task_id,label"`
	CPUs   int    `hcl:"cpus,optional"`
	Memory string `hcl:"memory,optional"`
}

// Profile represents a `profile` block: a named deployment profile carrying
// the process-wide execution settings.
type Profile struct {
	Name        string            `hcl:"name,label"`
	Concurrency int               `hcl:"concurrency,optional"`
	Runtime     string            `hcl:"runtime,optional"`
	WorkDir     string            `hcl:"workdir,optional"`
	Env         map[string]string `hcl:"env,optional"`
	Inputs      map[string]string `hcl:"inputs,optional"`
	Overrides   []*Override       `hcl:"override,block"`
}

// PipelineConfig represents the top-level structure of a pipeline file,
// containing all defined tasks and profiles.
type PipelineConfig struct {
	Tasks    []*Task    `hcl:"task,block"`
	Profiles []*Profile `hcl:"profile,block"`
	Body     hcl.Body   `hcl:",remain"`
}
