package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/pipegrid/internal/app"
	"github.com/vk/pipegrid/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// inputFlags collects repeatable `-input key=path` flags.
type inputFlags map[string]string

func (f inputFlags) String() string {
	var pairs []string
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f inputFlags) Set(value string) error {
	key, path, ok := strings.Cut(value, "=")
	if !ok || key == "" || path == "" {
		return fmt.Errorf("must be key=path, got %q", value)
	}
	f[key] = path
	return nil
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pipegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pipegrid - a declarative pipeline runner for external tools.

Usage:
  pipegrid [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline file or directory.")
	pFlag := flagSet.String("p", "", "Path to the pipeline file or directory (shorthand).")
	profileFlag := flagSet.String("profile", "", "Named execution profile to use.")
	workersFlag := flagSet.Int("workers", 0, "Concurrency limit; overrides the profile when > 0.")
	workdirFlag := flagSet.String("workdir", "", "Working directory; overrides the profile.")
	runtimeFlag := flagSet.String("runtime", "", "Container runtime: none, docker, singularity or conda; overrides the profile.")
	reportFlag := flagSet.String("report", "", "Path for the JSON run report. Defaults to <workdir>/report.json.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	inputs := make(inputFlags)
	flagSet.Var(inputs, "input", "External run input as key=path. May be repeated.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *workersFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must not be negative"}
	}
	if *runtimeFlag != "" && !config.KnownRuntime(*runtimeFlag) {
		return nil, false, &ExitError{
			Code:    2,
			Message: fmt.Sprintf("invalid runtime %q: must be 'none', 'docker', 'singularity' or 'conda'", *runtimeFlag),
		}
	}
	slog.Debug("CLI parameter validation complete.")

	return &app.Config{
		PipelinePath:    path,
		Profile:         *profileFlag,
		Workers:         *workersFlag,
		WorkDir:         *workdirFlag,
		Runtime:         *runtimeFlag,
		Inputs:          inputs,
		ReportPath:      *reportFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
	}, false, nil
}
