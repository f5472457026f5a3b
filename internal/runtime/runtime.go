// Package runtime maps a profile's container runtime selection to the
// concrete command line that launches one task. Each implementation wraps an
// already-rendered shell script; none of them interpret the script itself.
package runtime

import (
	"fmt"
	"sort"

	"github.com/vk/pipegrid/internal/config"
)

// Spec carries everything a runtime needs to wrap one invocation.
type Spec struct {
	// Image is the container image reference (or conda environment name).
	Image string
	// WorkDir is the task-scoped working directory, bind-mounted into
	// containerized runtimes.
	WorkDir string
	// Script is the rendered command, executed via `/bin/sh -c`.
	Script string
	// Env is the profile environment, applied inside the execution boundary.
	Env map[string]string
	// Resources is the task's resource request, enforced where the runtime
	// supports it.
	Resources config.Resources
}

// Runtime wraps a rendered command into an argv for one isolation backend.
type Runtime interface {
	Name() string
	Command(spec Spec) (name string, args []string)
}

// registry holds the known runtime constructors, keyed by profile name.
var registry = map[string]func() Runtime{
	"none":        func() Runtime { return noneRuntime{} },
	"docker":      func() Runtime { return dockerRuntime{} },
	"singularity": func() Runtime { return singularityRuntime{} },
	"conda":       func() Runtime { return condaRuntime{} },
}

// New returns the runtime registered under the given name.
func New(name string) (Runtime, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown container runtime %q", name)
	}
	return ctor(), nil
}

// noneRuntime runs the script as a plain local process.
type noneRuntime struct{}

func (noneRuntime) Name() string { return "none" }

func (noneRuntime) Command(spec Spec) (string, []string) {
	return "/bin/sh", []string{"-c", spec.Script}
}

// dockerRuntime runs the script inside a docker container with the task
// working directory bind-mounted.
type dockerRuntime struct{}

func (dockerRuntime) Name() string { return "docker" }

func (dockerRuntime) Command(spec Spec) (string, []string) {
	args := []string{"run", "--rm",
		"-v", spec.WorkDir + ":" + spec.WorkDir,
		"-w", spec.WorkDir,
	}
	if spec.Resources.CPUs > 0 {
		args = append(args, "--cpus", fmt.Sprintf("%d", spec.Resources.CPUs))
	}
	if spec.Resources.Memory != "" {
		args = append(args, "--memory", spec.Resources.Memory)
	}
	for _, kv := range EnvPairs(spec.Env) {
		args = append(args, "-e", kv)
	}
	args = append(args, spec.Image, "/bin/sh", "-c", spec.Script)
	return "docker", args
}

// singularityRuntime runs the script inside a singularity container.
type singularityRuntime struct{}

func (singularityRuntime) Name() string { return "singularity" }

func (singularityRuntime) Command(spec Spec) (string, []string) {
	args := []string{"exec",
		"--bind", spec.WorkDir,
		"--pwd", spec.WorkDir,
	}
	for _, kv := range EnvPairs(spec.Env) {
		args = append(args, "--env", kv)
	}
	args = append(args, spec.Image, "/bin/sh", "-c", spec.Script)
	return "singularity", args
}

// condaRuntime runs the script inside a conda environment. The task's image
// reference names the environment.
type condaRuntime struct{}

func (condaRuntime) Name() string { return "conda" }

func (condaRuntime) Command(spec Spec) (string, []string) {
	args := []string{"run", "-n", spec.Image, "/bin/sh", "-c", spec.Script}
	return "conda", args
}

// EnvPairs flattens the env map into deterministic KEY=VALUE pairs.
func EnvPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
