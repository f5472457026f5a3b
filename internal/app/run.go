package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/executor"
	"github.com/vk/pipegrid/internal/runtime"
	"github.com/vk/pipegrid/internal/scheduler"
	"github.com/vk/pipegrid/internal/tracker"
)

// Run executes the pipeline: build the graph, drive the scheduler, persist
// the trace and report. The returned error is non-nil iff the run must exit
// nonzero (task failure or cancellation).
func (a *App) Run(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run started.")

	if a.config.HealthcheckPort > 0 {
		a.healthCheckServer()
		defer a.closeHealthCheckServer()
	}

	tasks := a.profile.ApplyOverrides(a.model.Tasks)

	a.logger.Debug("Building dependency graph...")
	graph, err := dag.Build(ctx, tasks, a.profile.Inputs)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Info("Dependency graph built.",
		"tasks", len(graph.Nodes), "order", graph.TopologicalOrder())

	if err := os.MkdirAll(a.profile.WorkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	traceFile, err := os.Create(filepath.Join(a.profile.WorkDir, "trace.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer traceFile.Close()

	rt, err := runtime.New(a.profile.Runtime)
	if err != nil {
		// Profile validation accepts only registered runtimes, so this is
		// unreachable unless the two lists drift apart.
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}

	tr := tracker.New(graph.TopologicalOrder(), traceFile)
	sched := scheduler.New(graph, a.profile, executor.NewLocal(rt), tr, a.profile.Inputs)

	a.logger.Info("Starting pipeline execution.",
		"concurrency", a.profile.Concurrency, "runtime", a.profile.Runtime, "workdir", a.profile.WorkDir)
	runErr := sched.Run(ctx)

	report := tr.Report()
	if err := a.writeReport(report); err != nil {
		a.logger.Error("Failed to write run report.", "error", err)
	}
	report.WriteSummary(a.outW)

	if runErr != nil {
		return runErr
	}
	a.logger.Info("Pipeline completed successfully.")
	return nil
}

// writeReport persists the machine-parseable report.
func (a *App) writeReport(report *tracker.Report) error {
	path := a.config.ReportPath
	if path == "" {
		path = filepath.Join(a.profile.WorkDir, "report.json")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	a.logger.Debug("Writing run report.", "path", path)
	return report.WriteJSON(f)
}

// withLogger ensures the run context carries the app logger.
func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
