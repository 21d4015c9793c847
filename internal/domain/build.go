package domain

import (
	"fmt"
	"time"
)

// BuildState describes the current state of a Build.
type BuildState int

const (
	BuildStateUnknown BuildState = 0
	BuildStatePending BuildState = 10 // Build planned, no job started yet
	BuildStateRunning BuildState = 20 // At least one job is executing
	BuildStatePassed  BuildState = 30 // Every job passed
	BuildStateFailed  BuildState = 40 // At least one job failed
)

func (s BuildState) String() string {
	switch s {
	case BuildStatePending:
		return "PENDING"
	case BuildStateRunning:
		return "RUNNING"
	case BuildStatePassed:
		return "PASSED"
	case BuildStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the build is in a terminal state.
func (s BuildState) IsFinal() bool {
	return s == BuildStatePassed || s == BuildStateFailed
}

// ParseBuildState converts a state name back to a BuildState.
// Unrecognized names map to BuildStateUnknown.
func ParseBuildState(name string) BuildState {
	switch name {
	case "PENDING":
		return BuildStatePending
	case "RUNNING":
		return BuildStateRunning
	case "PASSED":
		return BuildStatePassed
	case "FAILED":
		return BuildStateFailed
	default:
		return BuildStateUnknown
	}
}

// ValidBuildStateTransition checks if a state transition is valid.
// Valid transitions: PENDING -> RUNNING -> (PASSED | FAILED)
func ValidBuildStateTransition(from, to BuildState) bool {
	switch from {
	case BuildStatePending:
		return to == BuildStateRunning || to == BuildStateFailed
	case BuildStateRunning:
		return to == BuildStatePassed || to == BuildStateFailed
	case BuildStatePassed, BuildStateFailed:
		return false // Terminal states
	default:
		return to == BuildStatePending // Allow setting initial state
	}
}

// Build is one execution of the workflow against a single commit.
// It owns one Job per declared gate; jobs run independently and the
// build passes only when every job passed.
type Build struct {
	ID             string
	Repo           string
	Ref            string
	CommitSHA      string
	WorkflowName   string
	RuntimeVersion string
	State          BuildState
	Event          map[string]any // Normalized push event payload
	Failure        *Failure
	StartedAt      *time.Time
	FinishedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
}

// NewBuild creates a new pending Build for the given commit.
func NewBuild(id, repo, ref, commitSHA string) *Build {
	now := time.Now().UTC()
	return &Build{
		ID:        id,
		Repo:      repo,
		Ref:       ref,
		CommitSHA: commitSHA,
		State:     BuildStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// SetState transitions the build to a new state.
func (b *Build) SetState(newState BuildState) error {
	if !ValidBuildStateTransition(b.State, newState) {
		return fmt.Errorf("%w: cannot transition build from %s to %s",
			ErrInvalidState, b.State, newState)
	}
	b.State = newState
	b.UpdatedAt = time.Now().UTC()
	// Note: Version is managed by the storage layer, not here
	return nil
}

// MarkRunning records the start of the first job.
func (b *Build) MarkRunning() error {
	if err := b.SetState(BuildStateRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.StartedAt = &now
	return nil
}

// Finalize resolves the build outcome from its jobs. The build passes
// only if every job passed; a single failure fails the whole build.
func (b *Build) Finalize(jobs []*Job) error {
	outcome := BuildStatePassed
	for _, j := range jobs {
		if !j.State.IsFinal() {
			return fmt.Errorf("%w: job %s has not finished", ErrInvalidState, j.Name)
		}
		if j.State == JobStateFailed {
			outcome = BuildStateFailed
			if b.Failure == nil && j.Failure != nil {
				b.Failure = &Failure{
					Message:    fmt.Sprintf("job %s: %s", j.Name, j.Failure.Message),
					OccurredAt: j.Failure.OccurredAt,
				}
			}
		}
	}
	if err := b.SetState(outcome); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.FinishedAt = &now
	return nil
}
