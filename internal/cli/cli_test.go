package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllFlags(t *testing.T) {
	var out bytes.Buffer
	cfg, shouldExit, err := Parse([]string{
		"-pipeline", "pipelines/clone_validation.hcl",
		"-profile", "containerized",
		"-workers", "8",
		"-workdir", "/scratch/run",
		"-runtime", "docker",
		"-report", "out/report.json",
		"-healthcheck-port", "8080",
		"-log-format", "json",
		"-log-level", "debug",
		"-input", "raw_reads=/data/reads.fastq",
		"-input", "reference=/data/ref.fasta",
	}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "pipelines/clone_validation.hcl", cfg.PipelinePath)
	assert.Equal(t, "containerized", cfg.Profile)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "/scratch/run", cfg.WorkDir)
	assert.Equal(t, "docker", cfg.Runtime)
	assert.Equal(t, "out/report.json", cfg.ReportPath)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, map[string]string{
		"raw_reads": "/data/reads.fastq",
		"reference": "/data/ref.fasta",
	}, map[string]string(cfg.Inputs))
}

func TestParsePositionalPipelinePath(t *testing.T) {
	var out bytes.Buffer
	cfg, shouldExit, err := Parse([]string{"pipelines"}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "pipelines", cfg.PipelinePath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.Workers)
}

func TestParseShorthandPipelineFlag(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{"-p", "pipeline.hcl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "pipeline.hcl", cfg.PipelinePath)
}

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, shouldExit, err := Parse(nil, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelpFlag(t *testing.T) {
	var out bytes.Buffer
	cfg, shouldExit, err := Parse([]string{"-h"}, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"bad log format", []string{"-log-format", "xml", "pipeline.hcl"}, "invalid log-format"},
		{"bad log level", []string{"-log-level", "verbose", "pipeline.hcl"}, "invalid log-level"},
		{"negative workers", []string{"-workers", "-1", "pipeline.hcl"}, "invalid workers"},
		{"unknown runtime", []string{"-runtime", "podman", "pipeline.hcl"}, "invalid runtime"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.msg)
		})
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-input", "raw_reads", "pipeline.hcl"}, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseUnknownFlag(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-no-such-flag"}, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
