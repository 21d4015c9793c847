package domain

import (
	"fmt"
	"time"
)

// GateKind identifies the quality gate a job enforces.
type GateKind string

const (
	GateUnitTests GateKind = "unit-tests" // Test suite with coverage threshold
	GateTypecheck GateKind = "typecheck"  // Full-project static type checking
	GateLint      GateKind = "lint"       // Lint-only run of the test harness
)

func (k GateKind) String() string {
	return string(k)
}

// Valid returns true for a known gate kind.
func (k GateKind) Valid() bool {
	switch k {
	case GateUnitTests, GateTypecheck, GateLint:
		return true
	default:
		return false
	}
}

// GateKinds lists all supported gate kinds in declaration order.
func GateKinds() []GateKind {
	return []GateKind{GateUnitTests, GateTypecheck, GateLint}
}

// JobState describes the current state of a Job.
type JobState int

const (
	JobStateUnknown JobState = 0
	JobStatePending JobState = 10 // Planned, not yet started
	JobStateRunning JobState = 20 // Steps executing
	JobStatePassed  JobState = 30 // Final verification command exited zero
	JobStateFailed  JobState = 40 // A step exited non-zero or errored
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "PENDING"
	case JobStateRunning:
		return "RUNNING"
	case JobStatePassed:
		return "PASSED"
	case JobStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the job is in a terminal state.
func (s JobState) IsFinal() bool {
	return s == JobStatePassed || s == JobStateFailed
}

// ValidJobStateTransition checks if a state transition is valid.
// Valid transitions: PENDING -> RUNNING -> (PASSED | FAILED)
func ValidJobStateTransition(from, to JobState) bool {
	switch from {
	case JobStatePending:
		return to == JobStateRunning || to == JobStateFailed
	case JobStateRunning:
		return to == JobStatePassed || to == JobStateFailed
	case JobStatePassed, JobStateFailed:
		return false // Terminal states
	default:
		return to == JobStatePending // Allow setting initial state
	}
}

// Job is a single quality gate within a build: a linear sequence of
// steps whose outcome is the exit status of the final verification
// command. Jobs never depend on or wait for one another.
type Job struct {
	ID         string
	BuildID    string
	Name       string
	Kind       GateKind
	State      JobState
	Steps      []Step
	Failure    *Failure
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int64
}

// NewJob creates a new pending Job for the given gate.
func NewJob(buildID, id, name string, kind GateKind) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		BuildID:   buildID,
		Name:      name,
		Kind:      kind,
		State:     JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// SetState transitions the job to a new state.
func (j *Job) SetState(newState JobState) error {
	if !ValidJobStateTransition(j.State, newState) {
		return fmt.Errorf("%w: cannot transition job from %s to %s",
			ErrInvalidState, j.State, newState)
	}
	j.State = newState
	j.UpdatedAt = time.Now().UTC()
	// Note: Version is managed by the storage layer, not here
	return nil
}

// MarkRunning records the job start.
func (j *Job) MarkRunning() error {
	if err := j.SetState(JobStateRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.StartedAt = &now
	return nil
}

// MarkPassed records a successful run.
func (j *Job) MarkPassed() error {
	if err := j.SetState(JobStatePassed); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.FinishedAt = &now
	return nil
}

// MarkFailed records a failed run with the given message.
func (j *Job) MarkFailed(message string) error {
	if err := j.SetState(JobStateFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.Failure = &Failure{Message: message, OccurredAt: now}
	j.FinishedAt = &now
	return nil
}

// CurrentStep returns the first step that has not finished, if any.
func (j *Job) CurrentStep() *Step {
	for i := range j.Steps {
		if !j.Steps[i].State.IsFinal() {
			return &j.Steps[i]
		}
	}
	return nil
}
