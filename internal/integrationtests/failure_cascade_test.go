package integration_tests

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/testutil"
	"github.com/vk/pipegrid/internal/tracker"
)

func TestRun_FailureSkipsDescendantsButNotSiblings(t *testing.T) {
	// --- Arrange ---
	// broken's subtree must be skipped while the independent chain still runs.
	pipelineHCL := `
		task "broken" {
			command = "exit 3"
			outputs = ["never"]
		}

		task "downstream" {
			command = "cat ${in.never} > ${out.copy}"
			inputs  = ["never"]
			outputs = ["copy"]
		}

		task "independent" {
			command = "printf ok > ${out.fine}"
			outputs = ["fine"]
		}
	`
	files := map[string]string{"main.hcl": pipelineHCL}

	// --- Act ---
	result := testutil.RunPipelineTest(t, files, nil)

	// --- Assert ---
	require.Error(t, result.Err, "a failed task must fail the run")
	assert.Contains(t, result.Err.Error(), "broken")

	require.NotNil(t, result.Report)
	assert.False(t, result.Report.Success)
	assert.Equal(t, tracker.Failed, testutil.TaskStatus(t, result, "broken"))
	assert.Equal(t, tracker.Skipped, testutil.TaskStatus(t, result, "downstream"))
	assert.Equal(t, tracker.Succeeded, testutil.TaskStatus(t, result, "independent"))

	for _, task := range result.Report.Tasks {
		if task.ID == "broken" {
			assert.Equal(t, 3, task.ExitCode)
			assert.Equal(t, "nonzero_exit", task.Category)
		}
	}

	// The skipped task never produced its artifact.
	_, err := os.Stat(filepath.Join(result.WorkDir, "tasks", "downstream", "copy"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MissingDeclaredOutputFailsTask(t *testing.T) {
	// --- Arrange ---
	// The command exits zero but never writes its declared artifact.
	files := map[string]string{"main.hcl": `
		task "forgetful" {
			command = "true"
			outputs = ["result"]
		}
	`}

	// --- Act ---
	result := testutil.RunPipelineTest(t, files, nil)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Equal(t, tracker.Failed, testutil.TaskStatus(t, result, "forgetful"))
	for _, task := range result.Report.Tasks {
		if task.ID == "forgetful" {
			assert.Equal(t, "missing_output", task.Category)
		}
	}
}

func TestRun_TaskTimeoutFailsRun(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{"main.hcl": `
		task "sleeper" {
			command = "sleep 5 && printf done > ${out.slept}"
			outputs = ["slept"]
			timeout = "100ms"
		}
	`}

	// --- Act ---
	result := testutil.RunPipelineTest(t, files, nil)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Equal(t, tracker.Failed, testutil.TaskStatus(t, result, "sleeper"))
	for _, task := range result.Report.Tasks {
		if task.ID == "sleeper" {
			assert.Equal(t, "timeout", task.Category)
		}
	}
}

func TestRun_StartupFailsOnUnresolvedInput(t *testing.T) {
	// --- Arrange ---
	// No task produces "phantom" and no external input supplies it.
	files := map[string]string{"main.hcl": `
		task "consumer" {
			command = "cat ${in.phantom}"
			inputs  = ["phantom"]
		}
	`}

	// --- Act ---
	result := testutil.RunPipelineTest(t, files, nil)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "phantom")
	assert.Nil(t, result.Report, "no report should be written for a graph that never built")
}

func TestRun_StartupFailsOnCycle(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{"main.hcl": `
		task "a" {
			command = "true"
			inputs  = ["from_b"]
			outputs = ["from_a"]
		}

		task "b" {
			command = "true"
			inputs  = ["from_a"]
			outputs = ["from_b"]
		}
	`}

	// --- Act ---
	result := testutil.RunPipelineTest(t, files, nil)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "cycle")
	assert.Nil(t, result.Report)
}
