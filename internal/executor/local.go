package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultOutputLimit bounds how much combined output a command may
// retain; only the tail is kept beyond this.
const DefaultOutputLimit = 64 * 1024

// LocalExecutor runs step commands as local child processes.
type LocalExecutor struct {
	// OutputLimit overrides DefaultOutputLimit when positive.
	OutputLimit int

	// Stream receives combined output as it is produced, in addition
	// to the retained tail. Nil disables streaming.
	Stream func(line []byte)
}

// NewLocalExecutor creates an executor with default limits.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

// Execute runs the command, honoring ctx cancellation by killing the
// process. A non-zero exit is not an error; anything preventing the
// process from running (missing binary, bad workdir) is.
func (e *LocalExecutor) Execute(ctx context.Context, sc StepCommand) (StepResult, error) {
	limit := e.OutputLimit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}

	tail := newTailBuffer(limit, e.Stream)

	cmd := exec.CommandContext(ctx, sc.Program, sc.Args...)
	cmd.Dir = sc.WorkDir
	cmd.Stdout = tail
	cmd.Stderr = tail
	if len(sc.Env) > 0 {
		cmd.Env = append(os.Environ(), sc.Env...)
	}

	start := time.Now()
	err := cmd.Run()
	result := StepResult{
		Output:   tail.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Prefer the context error: a deadline kill looks like a
		// non-zero exit but is really a timeout.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("command %s killed: %w", sc.Program, ctxErr)
		}
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, fmt.Errorf("failed to run %s: %w", sc.Program, err)
}

// tailBuffer retains the last limit bytes written to it.
type tailBuffer struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	stream  func([]byte)
	dropped bool
}

func newTailBuffer(limit int, stream func([]byte)) *tailBuffer {
	return &tailBuffer{limit: limit, stream: stream}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stream != nil {
		t.stream(p)
	}
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
		t.dropped = true
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dropped {
		return "...(truncated)\n" + string(t.buf)
	}
	return string(t.buf)
}
