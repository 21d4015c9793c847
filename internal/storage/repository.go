package storage

import (
	"context"

	"github.com/example/gateci/internal/domain"
)

// ListOptions provides filtering options for list operations.
type ListOptions struct {
	// Repo filters builds by repository (empty = all).
	Repo string

	// States to filter by (empty = all).
	BuildStates []domain.BuildState
	JobStates   []domain.JobState

	// Pagination
	Limit  int
	Offset int
}

// BuildRepository provides access to Build storage.
type BuildRepository interface {
	// Create creates a new Build.
	Create(ctx context.Context, build *domain.Build) error

	// Get retrieves a Build by ID.
	Get(ctx context.Context, id string) (*domain.Build, error)

	// Update updates an existing Build with optimistic locking.
	Update(ctx context.Context, build *domain.Build) error

	// List lists Builds with optional filtering, newest first.
	List(ctx context.Context, opts ListOptions) ([]*domain.Build, error)

	// Delete deletes a Build by ID.
	Delete(ctx context.Context, id string) error
}

// JobRepository provides access to Job storage. Steps are loaded and
// persisted with their job.
type JobRepository interface {
	// Create creates a new Job with its steps.
	Create(ctx context.Context, job *domain.Job) error

	// Get retrieves a Job by Build ID and Job ID.
	Get(ctx context.Context, buildID, jobID string) (*domain.Job, error)

	// GetByName retrieves a Job by Build ID and job name.
	GetByName(ctx context.Context, buildID, name string) (*domain.Job, error)

	// Update updates an existing Job with optimistic locking.
	Update(ctx context.Context, job *domain.Job) error

	// ListByBuild lists all Jobs in a build.
	ListByBuild(ctx context.Context, buildID string, opts ListOptions) ([]*domain.Job, error)

	// UpdateStep updates a single step row.
	UpdateStep(ctx context.Context, buildID, jobID string, step *domain.Step) error
}

// LogRepository provides access to per-step log chunks.
type LogRepository interface {
	// Append appends a log chunk for a step.
	Append(ctx context.Context, buildID, jobID string, stepIdx int, chunk string) error

	// ListByJob returns all log chunks for a job in append order.
	ListByJob(ctx context.Context, buildID, jobID string) ([]domain.LogChunk, error)
}

// UnitOfWork provides transactional access to all repositories.
type UnitOfWork interface {
	// Repository accessors
	Builds() BuildRepository
	Jobs() JobRepository
	Logs() LogRepository

	// Transaction control
	Commit() error
	Rollback() error
}

// Storage provides the main entry point for storage operations.
type Storage interface {
	// Begin starts a new transaction and returns a UnitOfWork.
	Begin(ctx context.Context) (UnitOfWork, error)

	// BeginImmediate starts a transaction that takes the write lock up
	// front, avoiding SQLITE_BUSY upgrades mid-transaction.
	BeginImmediate(ctx context.Context) (UnitOfWork, error)

	// Close closes the storage connection.
	Close() error

	// Migrate runs database migrations.
	Migrate(ctx context.Context) error
}
