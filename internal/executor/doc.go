// Package executor launches one external-tool invocation at a time: it
// renders the task's command template against resolved artifact paths, wraps
// it for the selected container runtime, supervises the process under the
// task's timeout, captures the tail of its combined output, and verifies
// that every declared output artifact exists.
package executor
