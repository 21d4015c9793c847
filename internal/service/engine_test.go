package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/executor"
)

func newTestEngine(t *testing.T, env *testEnv, fake executor.Executor) *Engine {
	t.Helper()
	return NewEngine(env.storage, fake, EngineConfig{
		Workspace: t.TempDir(),
	})
}

func planBuild(t *testing.T, env *testEnv) *BuildWithJobs {
	t.Helper()
	resp, err := env.orchestrator.CreateBuild(context.Background(), &CreateBuildRequest{
		Event:    testEvent(),
		Workflow: testWorkflow(),
	})
	if err != nil {
		t.Fatalf("CreateBuild() = %v", err)
	}
	return resp
}

func jobByName(t *testing.T, jobs []*domain.Job, name string) *domain.Job {
	t.Helper()
	for _, j := range jobs {
		if j.Name == name {
			return j
		}
	}
	t.Fatalf("job %q not found", name)
	return nil
}

func TestRunBuildAllGatesPass(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fake := executor.NewFakeExecutor()
	engine := newTestEngine(t, env, fake)
	resp := planBuild(t, env)

	build, err := engine.RunBuild(ctx, resp.Build.ID, testWorkflow())
	if err != nil {
		t.Fatalf("RunBuild() = %v", err)
	}
	if build.State != domain.BuildStatePassed {
		t.Errorf("build state = %v, want PASSED", build.State)
	}

	got, err := env.orchestrator.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild() = %v", err)
	}
	for _, job := range got.Jobs {
		if job.State != domain.JobStatePassed {
			t.Errorf("job %s = %v, want PASSED", job.Name, job.State)
		}
		for _, step := range job.Steps {
			if step.State != domain.StepStatePassed {
				t.Errorf("job %s step %s = %v, want PASSED", job.Name, step.Kind, step.State)
			}
		}
	}

	// Every job ran the full four-step command sequence; verify commands
	// reproduce the gate contract verbatim.
	cmds := strings.Join(fake.Commands(), "\n")
	for _, want := range []string{
		"git clone --quiet /repos/app .",
		"git checkout --detach --quiet abc123",
		"python3.8 --version",
		"pip install -r requirements.txt",
		"pytest -s tests/ --cov-config=.coveragerc --cov=src/ --cov=tests/ --cov-fail-under=100 --durations=0",
		"mypy . --config-file mypy.ini",
		"pytest . --pylint -m pylint --pylint-rcfile=.pylintrc",
	} {
		if !strings.Contains(cmds, want) {
			t.Errorf("executed commands missing %q:\n%s", want, cmds)
		}
	}
}

func TestRunBuildFailingGateDoesNotAffectOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fake := executor.NewFakeExecutor()
	fake.FailWith("pytest -s tests/", 1, "FAILED tests/test_solver.py::test_edge\ncoverage: 99.98%")

	engine := newTestEngine(t, env, fake)
	resp := planBuild(t, env)

	build, err := engine.RunBuild(ctx, resp.Build.ID, testWorkflow())
	if err != nil {
		t.Fatalf("RunBuild() = %v", err)
	}
	if build.State != domain.BuildStateFailed {
		t.Errorf("build state = %v, want FAILED", build.State)
	}

	got, err := env.orchestrator.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild() = %v", err)
	}

	unitTests := jobByName(t, got.Jobs, "unit-tests")
	if unitTests.State != domain.JobStateFailed {
		t.Errorf("unit-tests = %v, want FAILED", unitTests.State)
	}
	if unitTests.Failure == nil || !strings.Contains(unitTests.Failure.Message, "exited with code 1") {
		t.Errorf("unit-tests failure = %+v", unitTests.Failure)
	}

	// The other gates run to completion regardless.
	for _, name := range []string{"typecheck", "lint"} {
		job := jobByName(t, got.Jobs, name)
		if job.State != domain.JobStatePassed {
			t.Errorf("%s = %v, want PASSED", name, job.State)
		}
	}

	if got.Build.Failure == nil || !strings.Contains(got.Build.Failure.Message, "job unit-tests") {
		t.Errorf("build failure = %+v", got.Build.Failure)
	}
}

func TestRunBuildEarlyStepFailureSkipsRest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Only the typecheck job installs mypy, so only it fails.
	fake := executor.NewFakeExecutor()
	fake.FailWith("pip install mypy", 1, "ERROR: No matching distribution found for mypy")

	engine := newTestEngine(t, env, fake)
	resp := planBuild(t, env)

	build, err := engine.RunBuild(ctx, resp.Build.ID, testWorkflow())
	if err != nil {
		t.Fatalf("RunBuild() = %v", err)
	}
	if build.State != domain.BuildStateFailed {
		t.Errorf("build state = %v, want FAILED", build.State)
	}

	got, err := env.orchestrator.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild() = %v", err)
	}

	typecheck := jobByName(t, got.Jobs, "typecheck")
	if typecheck.State != domain.JobStateFailed {
		t.Errorf("typecheck = %v, want FAILED", typecheck.State)
	}
	if typecheck.Steps[2].State != domain.StepStateFailed {
		t.Errorf("install-deps = %v, want FAILED", typecheck.Steps[2].State)
	}
	if typecheck.Steps[3].State != domain.StepStateSkipped {
		t.Errorf("verify = %v, want SKIPPED", typecheck.Steps[3].State)
	}

	// mypy itself must never have run.
	for _, cmd := range fake.Commands() {
		if strings.HasPrefix(cmd, "mypy") {
			t.Errorf("verify command ran after install-deps failed: %q", cmd)
		}
	}

	for _, name := range []string{"unit-tests", "lint"} {
		job := jobByName(t, got.Jobs, name)
		if job.State != domain.JobStatePassed {
			t.Errorf("%s = %v, want PASSED", name, job.State)
		}
	}
}

const failedCoverageTable = `
Name                Stmts   Miss  Cover   Missing
---------------------------------------------------
src/app.py            120      3    98%   12-14
tests/test_app.py      50      0   100%
---------------------------------------------------
TOTAL                 170      3    98%
`

func TestRunBuildCoverageFailureDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fake := executor.NewFakeExecutor()
	fake.FailWith("pytest -s tests/", 2, failedCoverageTable)

	engine := newTestEngine(t, env, fake)
	resp := planBuild(t, env)

	build, err := engine.RunBuild(ctx, resp.Build.ID, testWorkflow())
	if err != nil {
		t.Fatalf("RunBuild() = %v", err)
	}
	if build.State != domain.BuildStateFailed {
		t.Errorf("build state = %v, want FAILED", build.State)
	}

	got, err := env.orchestrator.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild() = %v", err)
	}

	// The failure message names the uncovered lines from the report.
	unitTests := jobByName(t, got.Jobs, "unit-tests")
	if unitTests.Failure == nil {
		t.Fatal("unit-tests has no failure")
	}
	for _, want := range []string{"< 100.00%", "src/app.py missing 12-14"} {
		if !strings.Contains(unitTests.Failure.Message, want) {
			t.Errorf("failure message missing %q: %s", want, unitTests.Failure.Message)
		}
	}
}

func TestNewEngineAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	engine := NewEngine(env.storage, executor.NewFakeExecutor(), EngineConfig{})
	if engine.config.Workspace == "" {
		t.Error("workspace default not applied")
	}
	if engine.config.LogChunkLimit <= 0 {
		t.Error("log chunk limit default not applied")
	}
}

func TestRunBuildRecordsStepOutput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fake := executor.NewFakeExecutor()
	fake.Script("git clone", executor.StepResult{ExitCode: 0, Output: "Cloning into '.'...\n"}, nil)

	engine := newTestEngine(t, env, fake)
	resp := planBuild(t, env)

	if _, err := engine.RunBuild(ctx, resp.Build.ID, testWorkflow()); err != nil {
		t.Fatalf("RunBuild() = %v", err)
	}

	chunks, err := env.orchestrator.GetJobLog(ctx, resp.Build.ID, "lint")
	if err != nil {
		t.Fatalf("GetJobLog() = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no log chunks recorded")
	}
	if chunks[0].StepIdx != 0 || !strings.Contains(chunks[0].Chunk, "Cloning") {
		t.Errorf("chunk = %+v", chunks[0])
	}
}

func TestRunBuildAsyncAndWait(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	engine := newTestEngine(t, env, executor.NewFakeExecutor())
	resp := planBuild(t, env)

	engine.RunBuildAsync(resp.Build.ID, testWorkflow())
	engine.Wait()

	got, err := env.orchestrator.GetBuild(ctx, resp.Build.ID)
	if err != nil {
		t.Fatalf("GetBuild() = %v", err)
	}
	if got.Build.State != domain.BuildStatePassed {
		t.Errorf("build state = %v, want PASSED", got.Build.State)
	}
}

// hangingExecutor blocks matching commands until the context is
// canceled; everything else succeeds immediately.
type hangingExecutor struct {
	match string
}

func (h *hangingExecutor) Execute(ctx context.Context, cmd executor.StepCommand) (executor.StepResult, error) {
	rendered := cmd.Program + " " + strings.Join(cmd.Args, " ")
	if strings.Contains(rendered, h.match) {
		<-ctx.Done()
		return executor.StepResult{}, ctx.Err()
	}
	return executor.StepResult{ExitCode: 0}, nil
}

func TestRunBuildJobTimeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wf := testWorkflow()
	spec := wf.Jobs["unit-tests"]
	spec.Timeout = "10m"
	wf.Jobs["unit-tests"] = spec

	mock := clock.NewMock()
	engine := newTestEngine(t, env, &hangingExecutor{match: "pytest -s tests/"})
	engine.SetClock(mock)

	resp, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		Event:    testEvent(),
		Workflow: wf,
	})
	if err != nil {
		t.Fatalf("CreateBuild() = %v", err)
	}

	done := make(chan *domain.Build, 1)
	go func() {
		build, err := engine.RunBuild(ctx, resp.Build.ID, wf)
		if err != nil {
			t.Errorf("RunBuild() = %v", err)
		}
		done <- build
	}()

	// Drive the mock clock until the timeout timer fires and the build
	// finishes. The timer is created once the job starts, so keep
	// advancing in small increments.
	var build *domain.Build
	deadline := time.After(10 * time.Second)
	for build == nil {
		select {
		case build = <-done:
		case <-deadline:
			t.Fatal("build did not finish after advancing the clock")
		default:
			mock.Add(time.Minute)
			time.Sleep(time.Millisecond)
		}
	}

	if build.State != domain.BuildStateFailed {
		t.Errorf("build state = %v, want FAILED", build.State)
	}

	got, err := env.orchestrator.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild() = %v", err)
	}
	unitTests := jobByName(t, got.Jobs, "unit-tests")
	if unitTests.State != domain.JobStateFailed {
		t.Errorf("unit-tests = %v, want FAILED", unitTests.State)
	}
	if unitTests.Failure == nil || !strings.Contains(unitTests.Failure.Message, "timed out") {
		t.Errorf("unit-tests failure = %+v", unitTests.Failure)
	}
	// The canceled job context must not block persisting the outcome:
	// the timed-out verify step is recorded as FAILED, not left RUNNING.
	if unitTests.Steps[3].State != domain.StepStateFailed {
		t.Errorf("verify step = %v, want FAILED", unitTests.Steps[3].State)
	}

	// Untimed gates are unaffected.
	for _, name := range []string{"typecheck", "lint"} {
		job := jobByName(t, got.Jobs, name)
		if job.State != domain.JobStatePassed {
			t.Errorf("%s = %v, want PASSED", name, job.State)
		}
	}
}
