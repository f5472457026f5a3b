package config

import "context"

// Loader abstracts the configuration format from the rest of the application.
// The HCL loader is the only implementation today; the app depends on this
// interface so tests can substitute pre-built models.
type Loader interface {
	// Load reads every pipeline file reachable from the given paths and
	// returns the merged, translated model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
