// Package app wires the engine together for one run: it loads the pipeline
// model, resolves the execution profile, builds the dependency graph, drives
// the scheduler, and persists the trace and report.
package app
