// Package pipeline is a stub for testing the pipeline linter.
// This package provides minimal type stubs so the linter can analyze
// code that imports the real pipeline package.
package pipeline

// WorkflowBuilder is a stub workflow builder.
type WorkflowBuilder struct{}

// JobBuilder is a stub job builder.
type JobBuilder struct{}

// NewWorkflow creates a new workflow builder. Panics if name is empty.
func NewWorkflow(name string) *WorkflowBuilder { return nil }

// NewJob creates a new job builder. Panics if name is empty.
func NewJob(name string) *JobBuilder { return nil }

// Runtime adds an enabled runtime version.
func (b *WorkflowBuilder) Runtime(version string) *WorkflowBuilder { return b }

// DisabledRuntime adds an inactive runtime version.
func (b *WorkflowBuilder) DisabledRuntime(version string) *WorkflowBuilder { return b }

// FailUnder sets the coverage threshold.
func (b *JobBuilder) FailUnder(percent float64) *JobBuilder { return b }

// Targets sets the coverage source trees.
func (b *JobBuilder) Targets(targets ...string) *JobBuilder { return b }

// Manifest sets the dependency manifest file.
func (b *JobBuilder) Manifest(path string) *JobBuilder { return b }
