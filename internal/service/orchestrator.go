package service

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/observability"
	"github.com/example/gateci/internal/storage"
	"github.com/example/gateci/internal/workflow"
	"github.com/example/gateci/pkg/id"
)

// OrchestratorService plans builds from push events and answers queries
// about them. Execution is the Engine's job.
type OrchestratorService struct {
	storage storage.Storage
	metrics *observability.Metrics
}

// NewOrchestrator creates a new OrchestratorService.
func NewOrchestrator(store storage.Storage) *OrchestratorService {
	return &OrchestratorService{storage: store}
}

// NewOrchestratorWithMetrics creates an OrchestratorService that records
// planning timings.
func NewOrchestratorWithMetrics(store storage.Storage, metrics *observability.Metrics) *OrchestratorService {
	return &OrchestratorService{storage: store, metrics: metrics}
}

// CreateBuildRequest is the request for CreateBuild.
type CreateBuildRequest struct {
	// BuildID overrides the generated build ID when set. The CLI uses
	// this for readable local build IDs.
	BuildID  string
	Event    *domain.PushEvent
	Workflow *workflow.Workflow
}

// BuildWithJobs pairs a build with its jobs.
type BuildWithJobs struct {
	Build *domain.Build
	Jobs  []*domain.Job
}

// CreateBuild validates the workflow and plans one job per declared
// gate, each with the canonical four-step sequence. Everything is
// persisted in a single transaction.
func (s *OrchestratorService) CreateBuild(ctx context.Context, req *CreateBuildRequest) (*BuildWithJobs, error) {
	start := time.Now()

	if req == nil || req.Event == nil || req.Workflow == nil {
		return nil, fmt.Errorf("%w: event and workflow are required", domain.ErrInvalidArgument)
	}
	if err := req.Event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: push event missing repo or commit", err)
	}
	if err := workflow.Validate(req.Workflow); err != nil {
		return nil, err
	}

	runtimeVersion, err := req.Workflow.ActiveRuntime()
	if err != nil {
		return nil, err
	}

	buildID := req.BuildID
	if buildID == "" {
		buildID = id.Generate()
	}

	build := domain.NewBuild(buildID, req.Event.Repo, req.Event.Ref, req.Event.CommitSHA)
	build.WorkflowName = req.Workflow.Name
	build.RuntimeVersion = runtimeVersion

	// Provider payloads are arbitrary JSON; normalizing through a
	// well-known Struct rejects anything that can't round-trip.
	if req.Event.Payload != nil {
		st, err := structpb.NewStruct(req.Event.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: event payload: %v", domain.ErrInvalidArgument, err)
		}
		build.Event = st.AsMap()
	}

	var jobs []*domain.Job
	for _, name := range req.Workflow.JobNames() {
		spec := req.Workflow.Jobs[name]
		steps, err := req.Workflow.Steps(name)
		if err != nil {
			return nil, err
		}
		job := domain.NewJob(build.ID, id.Generate(), name, spec.GateKind())
		job.Steps = steps
		jobs = append(jobs, job)
	}

	uow, err := s.storage.BeginImmediate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Builds().Create(ctx, build); err != nil {
		return nil, fmt.Errorf("failed to create build: %w", err)
	}
	for _, job := range jobs {
		if err := uow.Jobs().Create(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create job %s: %w", job.Name, err)
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	if s.metrics != nil {
		s.metrics.BuildPlanningDuration().Observe(time.Since(start))
	}

	return &BuildWithJobs{Build: build, Jobs: jobs}, nil
}

// GetBuild retrieves a build with its jobs.
func (s *OrchestratorService) GetBuild(ctx context.Context, buildID string) (*BuildWithJobs, error) {
	if buildID == "" {
		return nil, fmt.Errorf("%w: build ID is required", domain.ErrInvalidArgument)
	}

	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	build, err := uow.Builds().Get(ctx, buildID)
	if err != nil {
		return nil, err
	}
	jobs, err := uow.Jobs().ListByBuild(ctx, buildID, storage.ListOptions{})
	if err != nil {
		return nil, err
	}

	return &BuildWithJobs{Build: build, Jobs: jobs}, nil
}

// ListBuilds lists builds with optional filtering.
func (s *OrchestratorService) ListBuilds(ctx context.Context, opts storage.ListOptions) ([]*domain.Build, error) {
	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.Builds().List(ctx, opts)
}

// GetJobLog returns the log chunks for a job, looked up by name.
func (s *OrchestratorService) GetJobLog(ctx context.Context, buildID, jobName string) ([]domain.LogChunk, error) {
	if buildID == "" || jobName == "" {
		return nil, fmt.Errorf("%w: build ID and job name are required", domain.ErrInvalidArgument)
	}

	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	job, err := uow.Jobs().GetByName(ctx, buildID, jobName)
	if err != nil {
		return nil, err
	}
	return uow.Logs().ListByJob(ctx, buildID, job.ID)
}
