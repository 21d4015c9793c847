package endpoint

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/gateci/internal/service"
)

func validateCreateBuildRequest(req *service.CreateBuildRequest) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	if req.Event == nil {
		return status.Error(codes.InvalidArgument, "push event is required")
	}
	if req.Event.Repo == "" {
		return status.Error(codes.InvalidArgument, "repo is required")
	}
	if req.Event.CommitSHA == "" {
		return status.Error(codes.InvalidArgument, "commit_sha is required")
	}
	if req.Workflow == nil {
		return status.Error(codes.InvalidArgument, "workflow is required")
	}
	return nil
}
