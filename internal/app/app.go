package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// Config holds everything the CLI hands to an App instance.
type Config struct {
	// PipelinePath is a single .hcl file or a directory of .hcl files.
	PipelinePath string
	// Profile selects a named profile block. Empty picks the sole defined
	// profile, or a built-in local default when none is defined.
	Profile string
	// Workers, WorkDir and Runtime override the selected profile when set.
	Workers int
	WorkDir string
	Runtime string
	// Inputs supplies external run inputs (key -> artifact path), merged
	// over the profile's inputs map.
	Inputs map[string]string
	// ReportPath overrides where the JSON report is written. Empty means
	// <workdir>/report.json.
	ReportPath string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// App encapsulates one run's dependencies: the loaded model, the resolved
// profile, and the logger.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	model      *config.Model
	profile    *config.Profile
	httpServer *http.Server
}

// NewApp loads and validates all configuration for a run. Startup problems
// (unreadable pipeline, invalid profile) are fatal and panic; main and the
// test harness recover them into clean error messages.
func NewApp(ctx context.Context, outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline: %w", err))
	}
	logger.Debug("Pipeline configuration loaded.",
		"tasks", len(model.Tasks), "profiles", len(model.Profiles))

	profile, err := resolveProfile(model, appConfig)
	if err != nil {
		panic(err)
	}
	logger.Debug("Execution profile resolved.", "profile", profile.Name,
		"concurrency", profile.Concurrency, "runtime", profile.Runtime)

	if err := model.Validate(); err != nil {
		panic(err)
	}
	logger.Debug("Configuration validation passed.")

	return &App{
		ctx:     ctx,
		outW:    outW,
		logger:  logger,
		config:  appConfig,
		model:   model,
		profile: profile,
	}
}

// Profile returns the resolved execution profile. Primarily for testing.
func (a *App) Profile() *config.Profile {
	return a.profile
}

// resolveProfile picks the profile block for this run and folds the CLI
// overrides into it. The returned profile is validated and read-only for the
// remainder of the run.
func resolveProfile(model *config.Model, appConfig *Config) (*config.Profile, error) {
	var base *config.Profile
	switch {
	case appConfig.Profile != "":
		p, ok := model.Profiles[appConfig.Profile]
		if !ok {
			return nil, &config.ConfigurationError{
				Field:  "profile",
				Reason: fmt.Sprintf("profile %q is not defined in the pipeline", appConfig.Profile),
			}
		}
		base = p
	case len(model.Profiles) == 1:
		for _, p := range model.Profiles {
			base = p
		}
	case len(model.Profiles) == 0:
		base = &config.Profile{Name: "local"}
	default:
		return nil, &config.ConfigurationError{
			Field:  "profile",
			Reason: fmt.Sprintf("%d profiles defined, select one with -profile", len(model.Profiles)),
		}
	}

	// Copy before applying overrides so the model stays pristine.
	profile := *base
	profile.Inputs = mergeInputs(base.Inputs, appConfig.Inputs)

	if appConfig.Workers > 0 {
		profile.Concurrency = appConfig.Workers
	}
	if appConfig.WorkDir != "" {
		profile.WorkDir = appConfig.WorkDir
	}
	if appConfig.Runtime != "" {
		profile.Runtime = appConfig.Runtime
	}

	// Fill defaults for fields neither the profile nor the CLI set.
	if profile.Concurrency == 0 {
		profile.Concurrency = defaultConcurrency
	}
	if profile.Runtime == "" {
		profile.Runtime = "none"
	}
	if profile.WorkDir == "" {
		profile.WorkDir = defaultWorkDir
	}
	abs, err := filepath.Abs(profile.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	profile.WorkDir = abs

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

const (
	defaultConcurrency = 4
	defaultWorkDir     = "work"
)

// mergeInputs overlays CLI-supplied run inputs on the profile's inputs.
func mergeInputs(profileInputs, cliInputs map[string]string) map[string]string {
	merged := make(map[string]string, len(profileInputs)+len(cliInputs))
	for k, v := range profileInputs {
		merged[k] = v
	}
	for k, v := range cliInputs {
		merged[k] = v
	}
	return merged
}
