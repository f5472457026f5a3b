// Package scheduler drives one pipeline run: a single coordinating loop owns
// every run-state transition while a bounded worker pool executes ready
// tasks. Dispatch order among simultaneously ready tasks is ascending task
// id, so runs over the same graph are reproducible; completion order is not
// guaranteed.
package scheduler
