package hcl

import (
	"fmt"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/schema"
)

// translateTask converts the HCL-specific task schema into the agnostic
// model, parsing duration strings and applying descriptor defaults.
func (l *Loader) translateTask(s *schema.Task) (*config.Task, error) {
	t := &config.Task{
		ID:      s.ID,
		Image:   s.Image,
		Command: s.Command,
		Inputs:  s.Inputs,
		Outputs: s.Outputs,
		Retry:   config.RetryPolicy{Attempts: 1},
	}

	if s.Resources != nil {
		t.Resources = config.Resources{CPUs: s.Resources.CPUs, Memory: s.Resources.Memory}
	}

	if s.Retry != nil {
		t.Retry.Attempts = s.Retry.Attempts
		if s.Retry.Backoff != "" {
			backoff, err := time.ParseDuration(s.Retry.Backoff)
			if err != nil {
				return nil, fmt.Errorf("invalid retry backoff %q: %w", s.Retry.Backoff, err)
			}
			t.Retry.Backoff = backoff
		}
	}

	if s.Timeout != "" {
		timeout, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
		}
		t.Timeout = timeout
	}

	return t, nil
}

// translateProfile converts the HCL-specific profile schema into the
// agnostic model.
func (l *Loader) translateProfile(s *schema.Profile) *config.Profile {
	p := &config.Profile{
		Name:        s.Name,
		Concurrency: s.Concurrency,
		Runtime:     s.Runtime,
		WorkDir:     s.WorkDir,
		Env:         s.Env,
		Inputs:      s.Inputs,
		Overrides:   make(map[string]config.Resources, len(s.Overrides)),
	}
	for _, o := range s.Overrides {
		p.Overrides[o.TaskID] = config.Resources{CPUs: o.CPUs, Memory: o.Memory}
	}
	return p
}
