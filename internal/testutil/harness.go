package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/app"
	"github.com/vk/pipegrid/internal/hcl"
	"github.com/vk/pipegrid/internal/tracker"
)

// HarnessResult holds the outcomes of an end-to-end pipeline run.
type HarnessResult struct {
	LogOutput string
	Err       error
	WorkDir   string
	// Report is the parsed report.json, nil if the run never got that far.
	Report *tracker.Report
}

// RunPipelineTest runs the whole application against the given pipeline
// files using a default background context.
func RunPipelineTest(t *testing.T, files map[string]string, override func(*app.Config)) *HarnessResult {
	t.Helper()
	return RunPipelineTestWithContext(context.Background(), t, files, override)
}

// RunPipelineTestWithContext writes the given pipeline files into a temp
// directory, runs the app end to end with the tasks executing as real local
// processes, and collects logs, the run error, and the parsed report.
// override, if non-nil, can adjust the app config before the run.
func RunPipelineTestWithContext(ctx context.Context, t *testing.T, files map[string]string, override func(*app.Config)) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	pipelineDir := filepath.Join(tmpDir, "pipeline")
	workDir := filepath.Join(tmpDir, "work")
	require.NoError(t, os.Mkdir(pipelineDir, 0o755))

	for name, content := range files {
		filePath := filepath.Join(pipelineDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	appConfig := &app.Config{
		PipelinePath: pipelineDir,
		WorkDir:      workDir,
		Workers:      4,
		Runtime:      "none",
		LogLevel:     "debug",
		LogFormat:    "text",
		Inputs:       map[string]string{},
	}
	if override != nil {
		override(appConfig)
	}

	logBuffer := &SafeBuffer{}
	result := &HarnessResult{WorkDir: appConfig.WorkDir}

	var testApp *app.App
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = fmt.Errorf("application startup panicked | %v", r)
			}
		}()
		testApp = app.NewApp(ctx, logBuffer, appConfig, hcl.NewLoader())
	}()

	if result.Err == nil {
		result.Err = testApp.Run(ctx)
	}
	result.LogOutput = logBuffer.String()
	result.Report = readReport(appConfig)
	return result
}

// readReport parses the run report if the run produced one.
func readReport(cfg *app.Config) *tracker.Report {
	path := cfg.ReportPath
	if path == "" {
		path = filepath.Join(cfg.WorkDir, "report.json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var report reportJSON
	if err := json.Unmarshal(data, &report); err != nil {
		return nil
	}
	return report.toReport()
}

// reportJSON mirrors tracker.Report with string statuses for decoding.
type reportJSON struct {
	Success  bool           `json:"success"`
	Canceled bool           `json:"canceled"`
	Counts   map[string]int `json:"counts"`
	Tasks   []struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Attempts int    `json:"attempts"`
		ExitCode int    `json:"exit_code"`
		Error    string `json:"error"`
		Category string `json:"error_category"`
	} `json:"tasks"`
}

func (r *reportJSON) toReport() *tracker.Report {
	out := &tracker.Report{Success: r.Success, Canceled: r.Canceled, Counts: r.Counts}
	for _, task := range r.Tasks {
		out.Tasks = append(out.Tasks, tracker.TaskReport{
			ID:       task.ID,
			Status:   statusFromString(task.Status),
			Attempts: task.Attempts,
			ExitCode: task.ExitCode,
			Error:    task.Error,
			Category: task.Category,
		})
	}
	return out
}

func statusFromString(s string) tracker.Status {
	for _, status := range []tracker.Status{
		tracker.Pending, tracker.Ready, tracker.Running,
		tracker.Succeeded, tracker.Failed, tracker.Skipped,
	} {
		if status.String() == s {
			return status
		}
	}
	return tracker.Pending
}

// TaskStatus returns the reported status for a task id, failing the test if
// the report or the task is missing.
func TaskStatus(t *testing.T, result *HarnessResult, taskID string) tracker.Status {
	t.Helper()
	require.NotNil(t, result.Report, "run produced no report")
	for _, task := range result.Report.Tasks {
		if task.ID == taskID {
			return task.Status
		}
	}
	t.Fatalf("task %q not present in report", taskID)
	return tracker.Pending
}

// ReadTrace parses the run's trace.jsonl into events.
func ReadTrace(t *testing.T, result *HarnessResult) []tracker.Event {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(result.WorkDir, "trace.jsonl"))
	require.NoError(t, err)

	var events []tracker.Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var raw struct {
			Task    string `json:"task"`
			Status  string `json:"status"`
			Attempt int    `json:"attempt"`
		}
		require.NoError(t, dec.Decode(&raw))
		events = append(events, tracker.Event{
			Task:    raw.Task,
			Status:  statusFromString(raw.Status),
			Attempt: raw.Attempt,
		})
	}
	return events
}
