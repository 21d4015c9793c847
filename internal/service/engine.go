package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"

	"github.com/example/gateci/internal/coverage"
	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/executor"
	"github.com/example/gateci/internal/observability"
	"github.com/example/gateci/internal/storage"
	"github.com/example/gateci/internal/workflow"
)

// ErrJobTimeout reports a job that exceeded its configured timeout.
var ErrJobTimeout = errors.New("job timed out")

// EngineConfig holds configuration for the Engine.
type EngineConfig struct {
	Workspace     string // Root directory for per-job checkouts
	LogChunkLimit int    // Max bytes persisted per log chunk
}

// DefaultEngineConfig returns reasonable defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workspace:     filepath.Join(os.TempDir(), "gateci"),
		LogChunkLimit: 64 * 1024,
	}
}

// Engine executes builds. Jobs run as independent goroutines with no
// shared mutable state and no ordering between them; a failing gate
// never blocks or cancels its siblings. Steps within a job run
// sequentially and the first failure skips the rest.
type Engine struct {
	storage  storage.Storage
	executor executor.Executor
	metrics  *observability.Metrics
	clock    clock.Clock
	config   EngineConfig
	wg       sync.WaitGroup
}

// NewEngine creates a new Engine. Zero config fields fall back to
// DefaultEngineConfig.
func NewEngine(store storage.Storage, exec executor.Executor, cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.Workspace == "" {
		cfg.Workspace = def.Workspace
	}
	if cfg.LogChunkLimit <= 0 {
		cfg.LogChunkLimit = def.LogChunkLimit
	}
	return &Engine{
		storage:  store,
		executor: exec,
		clock:    clock.New(),
		config:   cfg,
	}
}

// NewEngineWithMetrics creates an Engine that records job and step timings.
func NewEngineWithMetrics(store storage.Storage, exec executor.Executor, cfg EngineConfig, metrics *observability.Metrics) *Engine {
	e := NewEngine(store, exec, cfg)
	e.metrics = metrics
	return e
}

// SetClock replaces the engine clock. Tests use a mock to drive timeouts.
func (e *Engine) SetClock(c clock.Clock) {
	e.clock = c
}

// RunBuildAsync executes the build in the background. Wait blocks until
// all background builds have finished.
func (e *Engine) RunBuildAsync(buildID string, wf *workflow.Workflow) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if _, err := e.RunBuild(context.Background(), buildID, wf); err != nil {
			log.Printf("engine: build %s: %v", buildID, err)
		}
	}()
}

// Wait blocks until all asynchronously started builds have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// RunBuild executes every job of the build and finalizes its state.
// Gate failures are reflected in the returned build's state; the error
// reports infrastructure problems only.
func (e *Engine) RunBuild(ctx context.Context, buildID string, wf *workflow.Workflow) (*domain.Build, error) {
	build, jobs, err := e.loadBuild(ctx, buildID)
	if err != nil {
		return nil, err
	}

	if err := build.MarkRunning(); err != nil {
		return nil, err
	}
	if err := e.saveBuild(ctx, build); err != nil {
		return nil, err
	}

	log.Printf("engine: build %s: running %d jobs for %s@%s",
		build.ID, len(jobs), build.Repo, build.CommitSHA)

	// One goroutine per job. Errors are collected per slot so a panic-free
	// failure in one gate cannot affect another.
	infraErrs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *domain.Job) {
			defer wg.Done()
			infraErrs[i] = e.runJob(ctx, build, job, wf)
		}(i, job)
	}
	wg.Wait()

	var result *multierror.Error
	for i, err := range infraErrs {
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("job %s: %w", jobs[i].Name, err))
		}
	}

	// Reload jobs: each goroutine persisted its own outcome.
	_, finishedJobs, err := e.loadBuild(ctx, buildID)
	if err != nil {
		return nil, multierror.Append(result, err).ErrorOrNil()
	}

	if err := build.Finalize(finishedJobs); err != nil {
		return nil, multierror.Append(result, err).ErrorOrNil()
	}
	if err := e.saveBuild(ctx, build); err != nil {
		return nil, multierror.Append(result, err).ErrorOrNil()
	}

	if e.metrics != nil {
		e.metrics.BuildsCompleted().WithLabels(build.State.String()).Inc()
	}
	log.Printf("engine: build %s: %s", build.ID, build.State)

	return build, result.ErrorOrNil()
}

// runJob executes one gate. The returned error is infrastructural; a
// failing verification command is a normal FAILED outcome, not an error.
func (e *Engine) runJob(ctx context.Context, build *domain.Build, job *domain.Job, wf *workflow.Workflow) error {
	spec, ok := wf.Jobs[job.Name]
	if !ok {
		return fmt.Errorf("%w: job %q not in workflow", domain.ErrNotFound, job.Name)
	}
	timeout, err := spec.TimeoutDuration()
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.ActiveJobs().Inc()
		defer e.metrics.ActiveJobs().Dec()
	}
	start := time.Now()

	workDir := filepath.Join(e.config.Workspace, build.ID, job.Name)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	if err := job.MarkRunning(); err != nil {
		return err
	}
	if err := e.saveJob(ctx, job); err != nil {
		return err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := e.clock.Timer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var failMsg string
	for i := range job.Steps {
		step := &job.Steps[i]

		if failMsg != "" {
			if err := step.MarkSkipped(); err != nil {
				return err
			}
			if err := e.saveStep(ctx, build.ID, job.ID, step, ""); err != nil {
				return err
			}
			continue
		}

		msg, err := e.runStep(ctx, jobCtx, cancel, build, job, step, timeoutCh)
		if err != nil {
			return err
		}
		failMsg = msg
	}

	if e.metrics != nil {
		e.metrics.JobDuration().WithLabels(string(job.Kind)).Observe(time.Since(start))
	}

	if failMsg != "" {
		if err := job.MarkFailed(failMsg); err != nil {
			return err
		}
	} else {
		if err := job.MarkPassed(); err != nil {
			return err
		}
	}
	if e.metrics != nil {
		e.metrics.JobsCompleted().WithLabels(job.State.String()).Inc()
	}
	log.Printf("engine: build %s: job %s (%s): %s", build.ID, job.Name, job.Kind, job.State)

	return e.saveJob(ctx, job)
}

// runStep executes one step's commands. A non-empty message means the
// step failed the gate; a non-nil error is infrastructural. Commands
// run under jobCtx so a timeout kills them, but outcomes are persisted
// under ctx: the canceled job context must not lose the FAILED record.
func (e *Engine) runStep(ctx, jobCtx context.Context, cancel context.CancelFunc, build *domain.Build, job *domain.Job, step *domain.Step, timeoutCh <-chan time.Time) (string, error) {
	if err := step.MarkRunning(); err != nil {
		return "", err
	}
	if err := e.saveStep(ctx, build.ID, job.ID, step, ""); err != nil {
		return "", err
	}

	start := time.Now()
	workDir := filepath.Join(e.config.Workspace, build.ID, job.Name)

	cmds, err := executor.Commands(job.Kind, *step, build, workDir)
	if err != nil {
		if serr := step.MarkFailed(-1, "", err.Error()); serr != nil {
			return "", serr
		}
		if serr := e.saveStep(ctx, build.ID, job.ID, step, ""); serr != nil {
			return "", serr
		}
		return err.Error(), nil
	}

	var lastOutput string
	for _, cmd := range cmds {
		result, execErr := e.execute(jobCtx, cancel, cmd, timeoutCh)
		lastOutput = e.truncateChunk(result.Output)

		if execErr != nil {
			msg := fmt.Sprintf("step %s: %v", step.Name, execErr)
			if serr := step.MarkFailed(-1, lastOutput, msg); serr != nil {
				return "", serr
			}
			if serr := e.saveStep(ctx, build.ID, job.ID, step, lastOutput); serr != nil {
				return "", serr
			}
			return msg, nil
		}
		if result.ExitCode != 0 {
			msg := fmt.Sprintf("step %s: %s exited with code %d", step.Name, cmd.Program, result.ExitCode)
			if job.Kind == domain.GateUnitTests && step.Kind == domain.StepVerify {
				if detail := coverageDetail(step, result.Output); detail != "" {
					msg += ": " + detail
				}
			}
			if serr := step.MarkFailed(result.ExitCode, lastOutput, msg); serr != nil {
				return "", serr
			}
			if serr := e.saveStep(ctx, build.ID, job.ID, step, lastOutput); serr != nil {
				return "", serr
			}
			return msg, nil
		}

		if serr := e.appendLog(ctx, build.ID, job.ID, step.Idx, lastOutput); serr != nil {
			return "", serr
		}
	}

	if e.metrics != nil {
		e.metrics.StepDuration().WithLabels(string(step.Kind)).Observe(time.Since(start))
	}

	if err := step.MarkPassed(0, lastOutput); err != nil {
		return "", err
	}
	return "", e.saveStep(ctx, build.ID, job.ID, step, "")
}

type execOutcome struct {
	result executor.StepResult
	err    error
}

// execute runs one command, racing it against the job timeout.
func (e *Engine) execute(ctx context.Context, cancel context.CancelFunc, cmd executor.StepCommand, timeoutCh <-chan time.Time) (executor.StepResult, error) {
	ch := make(chan execOutcome, 1)
	go func() {
		result, err := e.executor.Execute(ctx, cmd)
		ch <- execOutcome{result: result, err: err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-timeoutCh:
		cancel() // Kill the running process
		out := <-ch
		return out.result, ErrJobTimeout
	case <-ctx.Done():
		out := <-ch
		return out.result, ctx.Err()
	}
}

// coverageDetail explains a failed unit-tests verification whose output
// contains a coverage table: the enforced total against the threshold
// and the lines each target file is missing. Returns "" when the run
// failed before producing a report or the table met the threshold.
func coverageDetail(step *domain.Step, output string) string {
	report, err := coverage.Parse(strings.NewReader(output))
	if err != nil {
		return ""
	}
	report, err = report.Filter(executor.TargetList(step.Args["targets"]))
	if err != nil {
		return ""
	}
	failUnder := workflow.DefaultFailUnder
	if fu, ok := step.Args["fail_under"].(float64); ok {
		failUnder = fu
	}
	if err := report.Enforce(failUnder); err != nil {
		return err.Error()
	}
	return ""
}

func (e *Engine) truncateChunk(s string) string {
	limit := e.config.LogChunkLimit
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}

func (e *Engine) loadBuild(ctx context.Context, buildID string) (*domain.Build, []*domain.Job, error) {
	uow, err := e.storage.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	build, err := uow.Builds().Get(ctx, buildID)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := uow.Jobs().ListByBuild(ctx, buildID, storage.ListOptions{})
	if err != nil {
		return nil, nil, err
	}
	return build, jobs, nil
}

func (e *Engine) saveBuild(ctx context.Context, build *domain.Build) error {
	uow, err := e.storage.BeginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Builds().Update(ctx, build); err != nil {
		return err
	}
	return uow.Commit()
}

func (e *Engine) saveJob(ctx context.Context, job *domain.Job) error {
	uow, err := e.storage.BeginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Jobs().Update(ctx, job); err != nil {
		return err
	}
	return uow.Commit()
}

func (e *Engine) saveStep(ctx context.Context, buildID, jobID string, step *domain.Step, logChunk string) error {
	uow, err := e.storage.BeginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Jobs().UpdateStep(ctx, buildID, jobID, step); err != nil {
		return err
	}
	if logChunk != "" {
		if err := uow.Logs().Append(ctx, buildID, jobID, step.Idx, logChunk); err != nil {
			return err
		}
	}
	return uow.Commit()
}

func (e *Engine) appendLog(ctx context.Context, buildID, jobID string, stepIdx int, chunk string) error {
	if chunk == "" {
		return nil
	}
	uow, err := e.storage.BeginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Logs().Append(ctx, buildID, jobID, stepIdx, chunk); err != nil {
		return err
	}
	return uow.Commit()
}
