package domain

import (
	"fmt"
	"time"
)

// StepKind identifies a step within a job's linear sequence.
type StepKind string

const (
	StepCheckout     StepKind = "checkout"      // Fetch repository at triggering commit
	StepSetupRuntime StepKind = "setup-runtime" // Provision/verify the pinned runtime
	StepInstallDeps  StepKind = "install-deps"  // Manifest packages plus job-specific tool
	StepVerify       StepKind = "verify"        // The gate's verification command
)

func (k StepKind) String() string {
	return string(k)
}

// StepOrder is the canonical ordering of step kinds within every job.
var StepOrder = []StepKind{StepCheckout, StepSetupRuntime, StepInstallDeps, StepVerify}

// StepState describes the current state of a Step.
type StepState int

const (
	StepStateUnknown StepState = 0
	StepStatePending StepState = 10
	StepStateRunning StepState = 20
	StepStatePassed  StepState = 30
	StepStateFailed  StepState = 40
	StepStateSkipped StepState = 50 // An earlier step in the job failed
)

func (s StepState) String() string {
	switch s {
	case StepStatePending:
		return "PENDING"
	case StepStateRunning:
		return "RUNNING"
	case StepStatePassed:
		return "PASSED"
	case StepStateFailed:
		return "FAILED"
	case StepStateSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the step is in a terminal state.
func (s StepState) IsFinal() bool {
	return s == StepStatePassed || s == StepStateFailed || s == StepStateSkipped
}

// ValidStepStateTransition checks if a state transition is valid.
func ValidStepStateTransition(from, to StepState) bool {
	switch from {
	case StepStatePending:
		return to == StepStateRunning || to == StepStateSkipped
	case StepStateRunning:
		return to == StepStatePassed || to == StepStateFailed
	case StepStatePassed, StepStateFailed, StepStateSkipped:
		return false // Terminal states
	default:
		return to == StepStatePending // Allow setting initial state
	}
}

// Step is one command in a job's sequence. ExitCode is only meaningful
// once the step reaches a terminal state.
type Step struct {
	Idx        int
	Kind       StepKind
	Name       string
	Args       map[string]any
	State      StepState
	ExitCode   int
	LogTail    string // Bounded tail of combined output
	Failure    *Failure
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewStep creates a pending step at the given index.
func NewStep(idx int, kind StepKind, name string, args map[string]any) Step {
	now := time.Now().UTC()
	if args == nil {
		args = make(map[string]any)
	}
	return Step{
		Idx:       idx,
		Kind:      kind,
		Name:      name,
		Args:      args,
		State:     StepStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetState transitions the step to a new state.
func (s *Step) SetState(newState StepState) error {
	if !ValidStepStateTransition(s.State, newState) {
		return fmt.Errorf("%w: cannot transition step from %s to %s",
			ErrInvalidState, s.State, newState)
	}
	s.State = newState
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkRunning records the step start.
func (s *Step) MarkRunning() error {
	if err := s.SetState(StepStateRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.StartedAt = &now
	return nil
}

// MarkPassed records a zero exit.
func (s *Step) MarkPassed(exitCode int, logTail string) error {
	if err := s.SetState(StepStatePassed); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.ExitCode = exitCode
	s.LogTail = logTail
	s.FinishedAt = &now
	return nil
}

// MarkFailed records a non-zero exit or infrastructure error.
func (s *Step) MarkFailed(exitCode int, logTail, message string) error {
	if err := s.SetState(StepStateFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.ExitCode = exitCode
	s.LogTail = logTail
	s.Failure = &Failure{Message: message, OccurredAt: now}
	s.FinishedAt = &now
	return nil
}

// MarkSkipped records that an earlier step failed.
func (s *Step) MarkSkipped() error {
	return s.SetState(StepStateSkipped)
}

// Failure contains information about a failure.
type Failure struct {
	Message    string
	OccurredAt time.Time
}
