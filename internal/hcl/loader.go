package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/fsutil"
	"github.com/vk/pipegrid/internal/schema"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads every .hcl file reachable from the given paths, decodes the
// task and profile blocks, and translates them into the unified model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to scan %q for pipeline files: %w", path, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl pipeline files found under %v", paths)
	}
	logger.Debug("Discovered pipeline files.", "count", len(files))

	model := &config.Model{Profiles: make(map[string]*config.Profile)}
	for _, file := range files {
		hclFile, diags := l.parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}

		var cfg schema.PipelineConfig
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &cfg); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", file, diags)
		}
		logger.Debug("Decoded pipeline file.",
			"file", file, "tasks", len(cfg.Tasks), "profiles", len(cfg.Profiles))

		if err := l.merge(model, &cfg, file); err != nil {
			return nil, err
		}
	}

	logger.Debug("Pipeline model loaded.",
		"tasks", len(model.Tasks), "profiles", len(model.Profiles))
	return model, nil
}

// merge translates one decoded file into the model, rejecting duplicate
// task ids and profile names across files.
func (l *Loader) merge(model *config.Model, cfg *schema.PipelineConfig, file string) error {
	for _, t := range cfg.Tasks {
		if model.TaskByID(t.ID) != nil {
			return fmt.Errorf("duplicate task %q (redefined in %s)", t.ID, file)
		}
		task, err := l.translateTask(t)
		if err != nil {
			return fmt.Errorf("invalid task %q in %s: %w", t.ID, file, err)
		}
		model.Tasks = append(model.Tasks, task)
	}
	for _, p := range cfg.Profiles {
		if _, ok := model.Profiles[p.Name]; ok {
			return fmt.Errorf("duplicate profile %q (redefined in %s)", p.Name, file)
		}
		model.Profiles[p.Name] = l.translateProfile(p)
	}
	return nil
}

// interface guard
var _ config.Loader = (*Loader)(nil)
