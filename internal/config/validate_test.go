package config

import (
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask(id string) *Task {
	expr, diags := hclsyntax.ParseExpression([]byte(`"true"`), "test.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		panic(diags)
	}
	return &Task{
		ID:      id,
		Command: expr,
		Retry:   RetryPolicy{Attempts: 1},
	}
}

func validProfile(name string) *Profile {
	return &Profile{Name: name, Concurrency: 4, Runtime: "none", WorkDir: "work"}
}

func TestValidateAcceptsWellFormedModel(t *testing.T) {
	m := &Model{
		Tasks:    []*Task{validTask("trim"), validTask("assemble")},
		Profiles: map[string]*Profile{"local": validProfile("local")},
	}
	require.NoError(t, m.Validate())
}

func TestValidateRejectsBadTasks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *Task)
		field  string
	}{
		{"empty id", func(task *Task) { task.ID = "" }, "task"},
		{"missing command", func(task *Task) { task.Command = nil }, "task.trim.command"},
		{"zero attempts", func(task *Task) { task.Retry.Attempts = 0 }, "task.trim.retry.attempts"},
		{"negative timeout", func(task *Task) { task.Timeout = -time.Second }, "task.trim.timeout"},
		{"duplicate output key", func(task *Task) { task.Outputs = []string{"reads", "reads"} }, "task.trim.outputs"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			task := validTask("trim")
			tc.mutate(task)
			err := (&Model{Tasks: []*Task{task}}).Validate()

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestValidateRejectsDuplicateTaskID(t *testing.T) {
	m := &Model{Tasks: []*Task{validTask("trim"), validTask("trim")}}
	err := m.Validate()

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "task.trim", cfgErr.Field)
	assert.Contains(t, cfgErr.Reason, "duplicate")
}

func TestValidateRejectsOverrideForUnknownTask(t *testing.T) {
	p := validProfile("hpc")
	p.Overrides = map[string]Resources{"phantom": {CPUs: 8}}
	m := &Model{
		Tasks:    []*Task{validTask("trim")},
		Profiles: map[string]*Profile{"hpc": p},
	}

	var cfgErr *ConfigurationError
	require.ErrorAs(t, m.Validate(), &cfgErr)
	assert.Equal(t, "profile.hpc.override", cfgErr.Field)
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Profile)
		field  string
	}{
		{"zero concurrency", func(p *Profile) { p.Concurrency = 0 }, "profile.local.concurrency"},
		{"unknown runtime", func(p *Profile) { p.Runtime = "podman" }, "profile.local.runtime"},
		{"empty workdir", func(p *Profile) { p.WorkDir = "" }, "profile.local.workdir"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validProfile("local")
			tc.mutate(p)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, p.Validate(), &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestKnownRuntime(t *testing.T) {
	for _, name := range []string{"none", "docker", "singularity", "conda"} {
		assert.True(t, KnownRuntime(name), name)
	}
	assert.False(t, KnownRuntime("podman"))
	assert.False(t, KnownRuntime(""))
}

func TestApplyOverridesClonesTasks(t *testing.T) {
	trim := validTask("trim")
	trim.Resources = Resources{CPUs: 1}
	assemble := validTask("assemble")

	p := validProfile("hpc")
	p.Overrides = map[string]Resources{"trim": {CPUs: 16, Memory: "32G"}}

	out := p.ApplyOverrides([]*Task{trim, assemble})
	require.Len(t, out, 2)

	assert.Equal(t, Resources{CPUs: 16, Memory: "32G"}, out[0].Resources)
	assert.Equal(t, Resources{CPUs: 1}, trim.Resources, "original task must not be mutated")
	assert.Same(t, assemble, out[1], "tasks without overrides are shared")
}

func TestApplyOverridesNoopWithoutOverrides(t *testing.T) {
	tasks := []*Task{validTask("trim")}
	p := validProfile("local")
	assert.Equal(t, tasks, p.ApplyOverrides(tasks))
}

func TestTaskByID(t *testing.T) {
	trim := validTask("trim")
	m := &Model{Tasks: []*Task{trim}}
	assert.Same(t, trim, m.TaskByID("trim"))
	assert.Nil(t, m.TaskByID("missing"))
}
