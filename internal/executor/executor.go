// Package executor turns steps into concrete commands and runs them.
package executor

import (
	"context"
	"time"
)

// StepCommand is one process invocation belonging to a step.
type StepCommand struct {
	WorkDir string
	Program string
	Args    []string
	Env     []string // Appended to the parent environment
}

// StepResult is the outcome of a single command.
type StepResult struct {
	ExitCode int
	Output   string // Bounded tail of combined stdout/stderr
	Duration time.Duration
}

// Executor runs step commands. A non-zero exit is reported through
// StepResult.ExitCode with a nil error; a non-nil error means the
// command could not be run at all (infrastructure failure).
type Executor interface {
	Execute(ctx context.Context, cmd StepCommand) (StepResult, error)
}
