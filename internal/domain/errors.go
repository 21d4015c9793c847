package domain

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a state transition is not allowed.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrConcurrentModify is returned when optimistic locking fails.
	ErrConcurrentModify = errors.New("concurrent modification")

	// ErrInvalidArgument is returned when an argument is invalid.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists is returned when trying to create a duplicate entity.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidWorkflow is returned when a workflow definition fails validation.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrUnsupportedRuntime is returned when the selected runtime version
	// is disabled or not in the supported set.
	ErrUnsupportedRuntime = errors.New("unsupported runtime version")

	// ErrCoverageBelowThreshold is returned when total statement coverage
	// falls below the gate's fail-under threshold.
	ErrCoverageBelowThreshold = errors.New("coverage below threshold")
)
