// Package pipeline provides a fluent API for constructing workflow
// definitions programmatically, as an alternative to writing YAML by
// hand. Definitions produced here are validated and encoded with the
// same rules as parsed files.
package pipeline

import (
	"io"
	"time"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/workflow"
)

// WorkflowBuilder provides a fluent API for constructing workflow
// definitions.
type WorkflowBuilder struct {
	wf *workflow.Workflow
}

// NewWorkflow creates a new WorkflowBuilder with the given name.
// Panics if name is empty.
func NewWorkflow(name string) *WorkflowBuilder {
	if name == "" {
		panic("pipeline: NewWorkflow() called with empty name")
	}
	return &WorkflowBuilder{
		wf: &workflow.Workflow{
			Name: name,
			On:   workflow.Trigger{Push: &workflow.PushTrigger{}},
			Jobs: make(map[string]workflow.JobSpec),
		},
	}
}

// Runtime adds an enabled runtime version to the matrix.
func (b *WorkflowBuilder) Runtime(version string) *WorkflowBuilder {
	if version == "" {
		panic("pipeline: Runtime() called with empty version")
	}
	b.wf.Runtime.Matrix = append(b.wf.Runtime.Matrix, workflow.RuntimeEntry{Version: version})
	return b
}

// DisabledRuntime adds a runtime version that stays in the definition
// but is inactive.
func (b *WorkflowBuilder) DisabledRuntime(version string) *WorkflowBuilder {
	if version == "" {
		panic("pipeline: DisabledRuntime() called with empty version")
	}
	disabled := false
	b.wf.Runtime.Matrix = append(b.wf.Runtime.Matrix, workflow.RuntimeEntry{
		Version: version,
		Enabled: &disabled,
	})
	return b
}

// Job adds a built job to the workflow.
func (b *WorkflowBuilder) Job(jb *JobBuilder) *WorkflowBuilder {
	b.wf.Jobs[jb.name] = jb.spec
	return b
}

// Build validates and returns the workflow definition.
func (b *WorkflowBuilder) Build() (*workflow.Workflow, error) {
	if err := workflow.Validate(b.wf); err != nil {
		return nil, err
	}
	return b.wf, nil
}

// MustBuild is Build but panics on validation failure. Intended for
// definitions constructed entirely from literals.
func (b *WorkflowBuilder) MustBuild() *workflow.Workflow {
	wf, err := b.Build()
	if err != nil {
		panic("pipeline: " + err.Error())
	}
	return wf
}

// Encode validates the workflow and writes it as YAML.
func (b *WorkflowBuilder) Encode(w io.Writer) error {
	wf, err := b.Build()
	if err != nil {
		return err
	}
	return workflow.Encode(wf, w)
}

// JobBuilder provides a fluent API for constructing job specs.
type JobBuilder struct {
	name string
	spec workflow.JobSpec
}

// NewJob creates a new JobBuilder with the given name.
// Panics if name is empty.
func NewJob(name string) *JobBuilder {
	if name == "" {
		panic("pipeline: NewJob() called with empty name")
	}
	return &JobBuilder{name: name}
}

// Kind sets the gate kind.
func (b *JobBuilder) Kind(kind domain.GateKind) *JobBuilder {
	b.spec.Kind = string(kind)
	return b
}

// UnitTests sets the kind to unit-tests.
func (b *JobBuilder) UnitTests() *JobBuilder {
	return b.Kind(domain.GateUnitTests)
}

// Typecheck sets the kind to typecheck.
func (b *JobBuilder) Typecheck() *JobBuilder {
	return b.Kind(domain.GateTypecheck)
}

// Lint sets the kind to lint.
func (b *JobBuilder) Lint() *JobBuilder {
	return b.Kind(domain.GateLint)
}

// Manifest sets the dependency manifest file.
func (b *JobBuilder) Manifest(path string) *JobBuilder {
	b.spec.Manifest = path
	return b
}

// Tool sets the job-specific extra tool to install.
func (b *JobBuilder) Tool(name string) *JobBuilder {
	b.spec.Tool = name
	return b
}

// Targets sets the coverage source trees (unit-tests only).
func (b *JobBuilder) Targets(targets ...string) *JobBuilder {
	b.spec.Targets = targets
	return b
}

// CovConfig sets the coverage configuration file (unit-tests only).
func (b *JobBuilder) CovConfig(path string) *JobBuilder {
	b.spec.CovConfig = path
	return b
}

// FailUnder sets the coverage threshold (unit-tests only).
func (b *JobBuilder) FailUnder(percent float64) *JobBuilder {
	b.spec.FailUnder = &percent
	return b
}

// Config sets the type-checker configuration file (typecheck only).
func (b *JobBuilder) Config(path string) *JobBuilder {
	b.spec.Config = path
	return b
}

// RcFile sets the lint configuration file (lint only).
func (b *JobBuilder) RcFile(path string) *JobBuilder {
	b.spec.RcFile = path
	return b
}

// Timeout sets the job timeout.
func (b *JobBuilder) Timeout(d time.Duration) *JobBuilder {
	b.spec.Timeout = d.String()
	return b
}
