package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/config"
)

func TestNewKnownRuntimes(t *testing.T) {
	for _, name := range []string{"none", "docker", "singularity", "conda"} {
		rt, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, rt.Name())
	}
}

func TestNewUnknownRuntime(t *testing.T) {
	_, err := New("podman")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "podman")
}

func TestNoneCommand(t *testing.T) {
	rt, _ := New("none")
	name, args := rt.Command(Spec{Script: "echo hi"})
	assert.Equal(t, "/bin/sh", name)
	assert.Equal(t, []string{"-c", "echo hi"}, args)
}

func TestDockerCommand(t *testing.T) {
	rt, _ := New("docker")
	name, args := rt.Command(Spec{
		Image:   "ontresearch/flye:2.9",
		WorkDir: "/work/tasks/assemble",
		Script:  "flye --version",
		Env:     map[string]string{"THREADS": "4", "MODE": "fast"},
		Resources: config.Resources{
			CPUs:   8,
			Memory: "16G",
		},
	})

	assert.Equal(t, "docker", name)
	assert.Equal(t, []string{
		"run", "--rm",
		"-v", "/work/tasks/assemble:/work/tasks/assemble",
		"-w", "/work/tasks/assemble",
		"--cpus", "8",
		"--memory", "16G",
		"-e", "MODE=fast",
		"-e", "THREADS=4",
		"ontresearch/flye:2.9",
		"/bin/sh", "-c", "flye --version",
	}, args)
}

func TestSingularityCommand(t *testing.T) {
	rt, _ := New("singularity")
	name, args := rt.Command(Spec{
		Image:   "flye.sif",
		WorkDir: "/work/tasks/assemble",
		Script:  "flye --version",
	})

	assert.Equal(t, "singularity", name)
	assert.Equal(t, []string{
		"exec",
		"--bind", "/work/tasks/assemble",
		"--pwd", "/work/tasks/assemble",
		"flye.sif",
		"/bin/sh", "-c", "flye --version",
	}, args)
}

func TestCondaCommand(t *testing.T) {
	rt, _ := New("conda")
	name, args := rt.Command(Spec{Image: "assembly-env", Script: "flye --version"})

	assert.Equal(t, "conda", name)
	assert.Equal(t, []string{"run", "-n", "assembly-env", "/bin/sh", "-c", "flye --version"}, args)
}

func TestEnvPairsDeterministic(t *testing.T) {
	env := map[string]string{"Z": "1", "A": "2", "M": "3"}
	assert.Equal(t, []string{"A=2", "M=3", "Z=1"}, EnvPairs(env))
	assert.Empty(t, EnvPairs(nil))
}
