package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gateci/internal/domain"
)

const sampleYAML = `
name: quality-gates
on:
  push:
runtime:
  matrix:
    - version: "3.8"
    - version: "3.9"
      enabled: false
    - version: "3.10"
      enabled: false
jobs:
  unit-tests:
    kind: unit-tests
    manifest: requirements.txt
    tool: pytest-cov
    targets: ["src/", "tests/"]
    cov_config: .coveragerc
    fail_under: 100
    timeout: 30m
  typecheck:
    kind: typecheck
    manifest: requirements.txt
    tool: mypy
    config: mypy.ini
  lint:
    kind: lint
    manifest: requirements.txt
    tool: pytest-pylint
    rcfile: .pylintrc
`

func parseSample(t *testing.T) *Workflow {
	t.Helper()
	wf, err := Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	return wf
}

func TestParse(t *testing.T) {
	wf := parseSample(t)

	assert.Equal(t, "quality-gates", wf.Name)
	assert.NotNil(t, wf.On.Push)
	assert.Len(t, wf.Runtime.Matrix, 3)
	assert.Len(t, wf.Jobs, 3)

	ut := wf.Jobs["unit-tests"]
	assert.Equal(t, domain.GateUnitTests, ut.GateKind())
	assert.Equal(t, []string{"src/", "tests/"}, ut.Targets)
	require.NotNil(t, ut.FailUnder)
	assert.Equal(t, 100.0, *ut.FailUnder)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader(`
name: ci
on:
  push:
jobs:
  lint:
    kind: lint
    needs: [unit-tests]
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidWorkflow)
}

func TestParseTriggerKeyForms(t *testing.T) {
	// `on` and a bare `push:` are boolean-ish scalars under YAML 1.1
	// resolution; the decoder must treat both as plain keys.
	for _, form := range []string{"push:", "push: {}"} {
		doc := `
name: ci
on:
  ` + form + `
runtime:
  matrix:
    - version: "3.8"
jobs:
  lint:
    kind: lint
    manifest: requirements.txt
    tool: pytest-pylint
    rcfile: .pylintrc
`
		wf, err := Parse(strings.NewReader(doc))
		require.NoError(t, err, form)
		require.NotNil(t, wf.On.Push, form)
		assert.NoError(t, Validate(wf), form)
	}
}

func TestParseRejectsUnknownTrigger(t *testing.T) {
	_, err := Parse(strings.NewReader(`
name: ci
on:
  pull_request:
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidWorkflow)
}

func TestValidateSample(t *testing.T) {
	wf := parseSample(t)
	assert.NoError(t, Validate(wf))
}

func TestActiveRuntimeIgnoresDisabledEntries(t *testing.T) {
	wf := parseSample(t)

	version, err := wf.ActiveRuntime()
	require.NoError(t, err)
	assert.Equal(t, "3.8", version)
}

func TestValidateRejectsMultipleEnabledRuntimes(t *testing.T) {
	wf := parseSample(t)
	wf.Runtime.Matrix[1].Enabled = nil

	err := Validate(wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedRuntime)

	_, err = wf.ActiveRuntime()
	assert.ErrorIs(t, err, domain.ErrUnsupportedRuntime)
}

func TestValidateRejectsNoEnabledRuntime(t *testing.T) {
	wf := parseSample(t)
	disabled := false
	wf.Runtime.Matrix[0].Enabled = &disabled

	err := Validate(wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedRuntime)
}

func TestValidateRejectsUnsupportedEnabledRuntime(t *testing.T) {
	wf := parseSample(t)
	wf.Runtime.Matrix[0].Version = "2.7"

	err := Validate(wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedRuntime)
	assert.Contains(t, err.Error(), `"2.7" is enabled but not supported`)
}

func TestValidateDisabledUnsupportedRuntimeIsFine(t *testing.T) {
	// A disabled entry can name any version; it is dormant config.
	wf := parseSample(t)
	wf.Runtime.Matrix[1].Version = "2.7"

	assert.NoError(t, Validate(wf))
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	wf := &Workflow{
		Jobs: map[string]JobSpec{
			"broken": {Kind: "integration", Timeout: "soon"},
		},
	}

	err := Validate(wf)
	require.Error(t, err)
	for _, want := range []string{
		"name is required",
		"on.push trigger is required",
		"runtime.matrix is required",
		`unknown kind "integration"`,
		"manifest is required",
		`timeout "soon"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateKindSpecificFields(t *testing.T) {
	fu := 50.0
	tests := []struct {
		name    string
		spec    JobSpec
		wantErr string
	}{
		{
			name:    "typecheck requires config",
			spec:    JobSpec{Kind: "typecheck", Manifest: "requirements.txt"},
			wantErr: "config is required for typecheck",
		},
		{
			name:    "lint requires rcfile",
			spec:    JobSpec{Kind: "lint", Manifest: "requirements.txt"},
			wantErr: "rcfile is required for lint",
		},
		{
			name:    "fail_under rejected on typecheck",
			spec:    JobSpec{Kind: "typecheck", Manifest: "r.txt", Config: "mypy.ini", FailUnder: &fu},
			wantErr: "fail_under only applies to unit-tests",
		},
		{
			name:    "fail_under out of range",
			spec:    JobSpec{Kind: "unit-tests", Manifest: "r.txt", FailUnder: ptrFloat(120)},
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJob("j", tt.spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStepsExpansion(t *testing.T) {
	wf := parseSample(t)

	steps, err := wf.Steps("unit-tests")
	require.NoError(t, err)
	require.Len(t, steps, 4)

	kinds := make([]domain.StepKind, 0, 4)
	for _, s := range steps {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, domain.StepOrder, kinds)

	assert.Equal(t, "3.8", steps[1].Args["version"])
	assert.Equal(t, "requirements.txt", steps[2].Args["manifest"])
	assert.Equal(t, "pytest-cov", steps[2].Args["tool"])
	assert.Equal(t, []string{"src/", "tests/"}, steps[3].Args["targets"])
	assert.Equal(t, 100.0, steps[3].Args["fail_under"])
}

func TestStepsDefaultTargets(t *testing.T) {
	wf := parseSample(t)
	spec := wf.Jobs["unit-tests"]
	spec.Targets = nil
	wf.Jobs["unit-tests"] = spec

	steps, err := wf.Steps("unit-tests")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/", "tests/"}, steps[3].Args["targets"])
}

func TestStepsUnknownJob(t *testing.T) {
	wf := parseSample(t)
	_, err := wf.Steps("deploy")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEncodeRoundTrip(t *testing.T) {
	wf := parseSample(t)

	var sb strings.Builder
	require.NoError(t, Encode(wf, &sb))

	again, err := Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, wf.Name, again.Name)
	assert.Equal(t, wf.JobNames(), again.JobNames())
}

func ptrFloat(f float64) *float64 { return &f }
