package executor

import (
	"context"
	"strings"
	"sync"
)

// FakeExecutor is a scripted Executor for tests. Results are matched by
// substring against "program arg1 arg2 ..."; unmatched commands succeed
// with exit 0.
type FakeExecutor struct {
	mu       sync.Mutex
	scripts  []fakeScript
	Executed []StepCommand
}

type fakeScript struct {
	match  string
	result StepResult
	err    error
}

// NewFakeExecutor creates an empty fake.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{}
}

// Script registers a result for commands whose rendered form contains
// match. Scripts are checked in registration order.
func (f *FakeExecutor) Script(match string, result StepResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, fakeScript{match: match, result: result, err: err})
}

// FailWith is shorthand for scripting a non-zero exit.
func (f *FakeExecutor) FailWith(match string, exitCode int, output string) {
	f.Script(match, StepResult{ExitCode: exitCode, Output: output}, nil)
}

// Execute records the command and returns the first matching script.
func (f *FakeExecutor) Execute(ctx context.Context, cmd StepCommand) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Executed = append(f.Executed, cmd)

	rendered := cmd.Program + " " + strings.Join(cmd.Args, " ")
	for _, s := range f.scripts {
		if strings.Contains(rendered, s.match) {
			return s.result, s.err
		}
	}
	return StepResult{ExitCode: 0, Output: ""}, nil
}

// Commands returns the rendered form of every executed command.
func (f *FakeExecutor) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Executed))
	for i, c := range f.Executed {
		out[i] = c.Program + " " + strings.Join(c.Args, " ")
	}
	return out
}
