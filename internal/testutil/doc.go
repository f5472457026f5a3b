// Package testutil provides shared helpers for end-to-end tests: a
// thread-safe log buffer and a harness that writes pipeline files into a
// temp directory and runs the whole application against them.
package testutil
