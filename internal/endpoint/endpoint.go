// Package endpoint wraps the service layer in uniform request/response
// functions with validation. Errors carry gRPC status codes so every
// transport maps them to its own status space the same way.
package endpoint

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/service"
	"github.com/example/gateci/internal/storage"
)

// Endpoint is a function that takes a request and returns a response.
type Endpoint func(ctx context.Context, request any) (response any, err error)

// Endpoints holds all endpoint handlers.
type Endpoints struct {
	CreateBuild Endpoint
	GetBuild    Endpoint
	ListBuilds  Endpoint
	GetJobLog   Endpoint
}

// MakeEndpoints creates all endpoints from the service.
func MakeEndpoints(svc *service.OrchestratorService) Endpoints {
	return Endpoints{
		CreateBuild: makeCreateBuildEndpoint(svc),
		GetBuild:    makeGetBuildEndpoint(svc),
		ListBuilds:  makeListBuildsEndpoint(svc),
		GetJobLog:   makeGetJobLogEndpoint(svc),
	}
}

func makeCreateBuildEndpoint(svc *service.OrchestratorService) Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*service.CreateBuildRequest)
		if err := validateCreateBuildRequest(req); err != nil {
			return nil, err
		}
		resp, err := svc.CreateBuild(ctx, req)
		return resp, mapDomainError(err)
	}
}

func makeGetBuildEndpoint(svc *service.OrchestratorService) Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		id := request.(string)
		if id == "" {
			return nil, status.Error(codes.InvalidArgument, "build ID is required")
		}
		resp, err := svc.GetBuild(ctx, id)
		return resp, mapDomainError(err)
	}
}

func makeListBuildsEndpoint(svc *service.OrchestratorService) Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		opts := request.(storage.ListOptions)
		resp, err := svc.ListBuilds(ctx, opts)
		return resp, mapDomainError(err)
	}
}

// GetJobLogRequest identifies a job's log.
type GetJobLogRequest struct {
	BuildID string
	JobName string
}

func makeGetJobLogEndpoint(svc *service.OrchestratorService) Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(GetJobLogRequest)
		if req.BuildID == "" || req.JobName == "" {
			return nil, status.Error(codes.InvalidArgument, "build ID and job name are required")
		}
		resp, err := svc.GetJobLog(ctx, req.BuildID, req.JobName)
		return resp, mapDomainError(err)
	}
}

// mapDomainError translates domain sentinel errors to status codes.
func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidWorkflow),
		errors.Is(err, domain.ErrUnsupportedRuntime):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrConcurrentModify):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return err
	}
}
