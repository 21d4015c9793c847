package domain

import (
	"errors"
	"testing"
)

func TestNewBuild(t *testing.T) {
	b := NewBuild("b1", "/repo", "refs/heads/main", "abc123")
	if b.State != BuildStatePending {
		t.Errorf("NewBuild().State = %v, want PENDING", b.State)
	}
	if b.Version != 1 {
		t.Errorf("NewBuild().Version = %d, want 1", b.Version)
	}
	if b.CommitSHA != "abc123" {
		t.Errorf("NewBuild().CommitSHA = %s, want abc123", b.CommitSHA)
	}
}

func TestBuildStateTransitions(t *testing.T) {
	tests := []struct {
		from, to BuildState
		valid    bool
	}{
		{BuildStatePending, BuildStateRunning, true},
		{BuildStatePending, BuildStateFailed, true},
		{BuildStatePending, BuildStatePassed, false},
		{BuildStateRunning, BuildStatePassed, true},
		{BuildStateRunning, BuildStateFailed, true},
		{BuildStateRunning, BuildStatePending, false},
		{BuildStatePassed, BuildStateRunning, false},
		{BuildStateFailed, BuildStateRunning, false},
		{BuildStateUnknown, BuildStatePending, true},
	}

	for _, tt := range tests {
		if got := ValidBuildStateTransition(tt.from, tt.to); got != tt.valid {
			t.Errorf("ValidBuildStateTransition(%v, %v) = %v, want %v",
				tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestBuildSetStateRejectsInvalidTransition(t *testing.T) {
	b := NewBuild("b1", "/repo", "main", "abc")
	if err := b.SetState(BuildStatePassed); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetState(PASSED) from PENDING: err = %v, want ErrInvalidState", err)
	}
}

func TestBuildFinalizeAllPassed(t *testing.T) {
	b := NewBuild("b1", "/repo", "main", "abc")
	if err := b.MarkRunning(); err != nil {
		t.Fatalf("MarkRunning() = %v", err)
	}

	jobs := make([]*Job, 0, 3)
	for _, kind := range GateKinds() {
		j := NewJob("b1", "j-"+string(kind), string(kind), kind)
		j.MarkRunning()
		j.MarkPassed()
		jobs = append(jobs, j)
	}

	if err := b.Finalize(jobs); err != nil {
		t.Fatalf("Finalize() = %v", err)
	}
	if b.State != BuildStatePassed {
		t.Errorf("State = %v, want PASSED", b.State)
	}
	if b.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestBuildFinalizeOneFailureFailsBuild(t *testing.T) {
	b := NewBuild("b1", "/repo", "main", "abc")
	b.MarkRunning()

	passed := NewJob("b1", "j1", "typecheck", GateTypecheck)
	passed.MarkRunning()
	passed.MarkPassed()

	failed := NewJob("b1", "j2", "unit-tests", GateUnitTests)
	failed.MarkRunning()
	failed.MarkFailed("coverage below threshold")

	if err := b.Finalize([]*Job{passed, failed}); err != nil {
		t.Fatalf("Finalize() = %v", err)
	}
	if b.State != BuildStateFailed {
		t.Errorf("State = %v, want FAILED", b.State)
	}
	if b.Failure == nil {
		t.Fatal("Failure not set")
	}
	if b.Failure.Message != "job unit-tests: coverage below threshold" {
		t.Errorf("Failure.Message = %q", b.Failure.Message)
	}
}

func TestBuildFinalizeRejectsUnfinishedJob(t *testing.T) {
	b := NewBuild("b1", "/repo", "main", "abc")
	b.MarkRunning()

	running := NewJob("b1", "j1", "lint", GateLint)
	running.MarkRunning()

	if err := b.Finalize([]*Job{running}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Finalize() with running job: err = %v, want ErrInvalidState", err)
	}
}
