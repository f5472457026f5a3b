// Package dag builds the dependency graph for a pipeline run. Edges are
// derived by matching declared output keys to declared input keys; the build
// rejects cycles, ambiguous producers and unresolved inputs before any task
// executes. The resulting graph is immutable.
package dag
