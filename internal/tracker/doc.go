// Package tracker owns all per-task run state. State changes flow through
// explicit transition calls, every transition is appended to a write-once
// trace, and the final report is rendered from the accumulated state.
package tracker
