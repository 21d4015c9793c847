package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/endpoint"
	"github.com/example/gateci/internal/service"
	"github.com/example/gateci/internal/storage"
	"github.com/example/gateci/internal/workflow"
)

// Handlers contains HTTP handlers for the web API. They go through the
// endpoint layer so error-to-status mapping is shared with any other
// transport.
type Handlers struct {
	endpoints endpoint.Endpoints
	runner    BuildRunner
	workflow  *workflow.Workflow
}

// NewHandlers creates new API handlers.
func NewHandlers(endpoints endpoint.Endpoints, runner BuildRunner, wf *workflow.Workflow) *Handlers {
	return &Handlers{
		endpoints: endpoints,
		runner:    runner,
		workflow:  wf,
	}
}

// PushEvent handles POST /api/events/push: plan a build for the pushed
// commit and start it in the background.
func (h *Handlers) PushEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	var req PushEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	event := domain.NewPushEvent(req.Repo, req.Ref, req.CommitSHA)
	event.Pusher = req.Pusher
	event.HeadMessage = req.HeadMessage
	event.Payload = req.Payload

	response, err := h.endpoints.CreateBuild(ctx, &service.CreateBuildRequest{
		Event:    event,
		Workflow: h.workflow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := response.(*service.BuildWithJobs)

	h.runner.RunBuildAsync(resp.Build.ID, h.workflow)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(PushEventResponse{
		BuildID: resp.Build.ID,
		State:   resp.Build.State.String(),
	})
}

// ListBuilds handles GET /api/builds.
func (h *Handlers) ListBuilds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := storage.ListOptions{Repo: r.URL.Query().Get("repo")}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		opts.Offset = n
	}
	for _, name := range r.URL.Query()["state"] {
		state := domain.ParseBuildState(name)
		if state == domain.BuildStateUnknown {
			http.Error(w, "Invalid state filter", http.StatusBadRequest)
			return
		}
		opts.BuildStates = append(opts.BuildStates, state)
	}

	response, err := h.endpoints.ListBuilds(ctx, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	builds := response.([]*domain.Build)

	out := ListBuildsResponse{Builds: make([]BuildSummary, 0, len(builds))}
	for _, b := range builds {
		out.Builds = append(out.Builds, buildSummary(b))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// GetBuild handles GET /api/builds/{id}.
func (h *Handlers) GetBuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildID := strings.TrimPrefix(r.URL.Path, "/api/builds/")
	if buildID == "" || strings.Contains(buildID, "/") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	response, err := h.endpoints.GetBuild(ctx, buildID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(buildDetail(response.(*service.BuildWithJobs)))
}

// GetJobLog handles GET /api/builds/{id}/jobs/{name}/log.
func (h *Handlers) GetJobLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Path format: /api/builds/{id}/jobs/{name}/log
	path := strings.TrimPrefix(r.URL.Path, "/api/builds/")
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[1] != "jobs" || parts[3] != "log" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	buildID, jobName := parts[0], parts[2]

	response, err := h.endpoints.GetJobLog(ctx, endpoint.GetJobLogRequest{
		BuildID: buildID,
		JobName: jobName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	chunks := response.([]domain.LogChunk)

	out := JobLogResponse{BuildID: buildID, JobName: jobName}
	for _, c := range chunks {
		out.Chunks = append(out.Chunks, LogChunkInfo{
			StepIdx:   c.StepIdx,
			Chunk:     c.Chunk,
			CreatedAt: c.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// writeError maps endpoint status codes to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	switch st.Code() {
	case codes.NotFound:
		http.Error(w, st.Message(), http.StatusNotFound)
	case codes.InvalidArgument:
		http.Error(w, st.Message(), http.StatusBadRequest)
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		http.Error(w, st.Message(), http.StatusConflict)
	default:
		http.Error(w, st.Message(), http.StatusInternalServerError)
	}
}
