// Package config defines the format-agnostic configuration model for the
// engine: immutable task descriptors and named execution profiles. The HCL
// loader populates this model; every other package consumes it without
// knowing the on-disk format.
package config
