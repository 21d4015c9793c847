package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/storage"
	"github.com/example/gateci/internal/storage/sqlite"
	"github.com/example/gateci/internal/workflow"
)

// testEnv provides storage and services backed by a temp database.
type testEnv struct {
	storage      *sqlite.SQLiteStorage
	orchestrator *OrchestratorService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "gateci_test.db")
	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return &testEnv{
		storage:      store,
		orchestrator: NewOrchestrator(store),
	}
}

func testWorkflow() *workflow.Workflow {
	fu := 100.0
	return &workflow.Workflow{
		Name: "quality-gates",
		On:   workflow.Trigger{Push: &workflow.PushTrigger{}},
		Runtime: workflow.RuntimeMatrix{Matrix: []workflow.RuntimeEntry{
			{Version: "3.8"},
		}},
		Jobs: map[string]workflow.JobSpec{
			"unit-tests": {
				Kind:      "unit-tests",
				Manifest:  "requirements.txt",
				Tool:      "pytest-cov",
				Targets:   []string{"src/", "tests/"},
				CovConfig: ".coveragerc",
				FailUnder: &fu,
			},
			"typecheck": {
				Kind:     "typecheck",
				Manifest: "requirements.txt",
				Tool:     "mypy",
				Config:   "mypy.ini",
			},
			"lint": {
				Kind:     "lint",
				Manifest: "requirements.txt",
				Tool:     "pytest-pylint",
				RcFile:   ".pylintrc",
			},
		},
	}
}

func testEvent() *domain.PushEvent {
	return domain.NewPushEvent("/repos/app", "refs/heads/main", "abc123")
}

func TestCreateBuildPlansOneJobPerGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		Event:    testEvent(),
		Workflow: testWorkflow(),
	})
	if err != nil {
		t.Fatalf("CreateBuild() = %v", err)
	}

	if resp.Build.State != domain.BuildStatePending {
		t.Errorf("Build.State = %v, want PENDING", resp.Build.State)
	}
	if resp.Build.RuntimeVersion != "3.8" {
		t.Errorf("Build.RuntimeVersion = %s, want 3.8", resp.Build.RuntimeVersion)
	}
	if len(resp.Jobs) != 3 {
		t.Fatalf("CreateBuild() planned %d jobs, want 3", len(resp.Jobs))
	}

	for _, job := range resp.Jobs {
		if job.State != domain.JobStatePending {
			t.Errorf("job %s state = %v, want PENDING", job.Name, job.State)
		}
		if len(job.Steps) != 4 {
			t.Errorf("job %s has %d steps, want 4", job.Name, len(job.Steps))
			continue
		}
		for i, kind := range domain.StepOrder {
			if job.Steps[i].Kind != kind {
				t.Errorf("job %s step %d = %s, want %s", job.Name, i, job.Steps[i].Kind, kind)
			}
		}
	}
}

func TestCreateBuildPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		Event:    testEvent(),
		Workflow: testWorkflow(),
	})
	if err != nil {
		t.Fatalf("CreateBuild() = %v", err)
	}

	got, err := env.orchestrator.GetBuild(ctx, resp.Build.ID)
	if err != nil {
		t.Fatalf("GetBuild() = %v", err)
	}
	if got.Build.CommitSHA != "abc123" {
		t.Errorf("CommitSHA = %s", got.Build.CommitSHA)
	}
	if len(got.Jobs) != 3 {
		t.Errorf("GetBuild() returned %d jobs, want 3", len(got.Jobs))
	}
}

func TestCreateBuildNormalizesPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	event := testEvent()
	event.Payload = map[string]any{"pusher": "dev", "commits": []any{"abc123"}}

	resp, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		Event:    event,
		Workflow: testWorkflow(),
	})
	if err != nil {
		t.Fatalf("CreateBuild() = %v", err)
	}
	if resp.Build.Event["pusher"] != "dev" {
		t.Errorf("Event = %v", resp.Build.Event)
	}
}

func TestCreateBuildRejectsInvalidEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		Event:    domain.NewPushEvent("", "", ""),
		Workflow: testWorkflow(),
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("CreateBuild() = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateBuildRejectsInvalidWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wf := testWorkflow()
	disabled := false
	wf.Runtime.Matrix[0].Enabled = &disabled

	_, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		Event:    testEvent(),
		Workflow: wf,
	})
	if !errors.Is(err, domain.ErrUnsupportedRuntime) {
		t.Errorf("CreateBuild() = %v, want ErrUnsupportedRuntime", err)
	}
}

func TestCreateBuildHonorsRequestedID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		BuildID:  "local-1a2b3c4d",
		Event:    testEvent(),
		Workflow: testWorkflow(),
	})
	if err != nil {
		t.Fatalf("CreateBuild() = %v", err)
	}
	if resp.Build.ID != "local-1a2b3c4d" {
		t.Errorf("Build.ID = %s, want local-1a2b3c4d", resp.Build.ID)
	}
}

func TestListBuilds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
			Event:    testEvent(),
			Workflow: testWorkflow(),
		}); err != nil {
			t.Fatalf("CreateBuild() = %v", err)
		}
	}

	builds, err := env.orchestrator.ListBuilds(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListBuilds() = %v", err)
	}
	if len(builds) != 2 {
		t.Errorf("ListBuilds() returned %d builds, want 2", len(builds))
	}
}

func TestGetJobLogUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.orchestrator.CreateBuild(ctx, &CreateBuildRequest{
		Event:    testEvent(),
		Workflow: testWorkflow(),
	})
	if err != nil {
		t.Fatalf("CreateBuild() = %v", err)
	}

	if _, err := env.orchestrator.GetJobLog(ctx, resp.Build.ID, "deploy"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetJobLog(deploy) = %v, want ErrNotFound", err)
	}
}
