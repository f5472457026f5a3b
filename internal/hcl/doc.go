// Package hcl loads pipeline definitions written in HCL and translates them
// into the format-agnostic config model. It is the only package that touches
// the HCL parser for configuration files; command template expressions are
// carried through unevaluated and rendered later by the executor.
package hcl
