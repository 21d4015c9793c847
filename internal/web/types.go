package web

import (
	"time"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/service"
)

// PushEventRequest is the body for POST /api/events/push.
type PushEventRequest struct {
	Repo        string         `json:"repo"`
	Ref         string         `json:"ref"`
	CommitSHA   string         `json:"commitSha"`
	Pusher      string         `json:"pusher,omitempty"`
	HeadMessage string         `json:"headMessage,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// PushEventResponse is the response for POST /api/events/push.
type PushEventResponse struct {
	BuildID string `json:"buildId"`
	State   string `json:"state"`
}

// ListBuildsResponse is the response for GET /api/builds.
type ListBuildsResponse struct {
	Builds []BuildSummary `json:"builds"`
}

// BuildSummary is a summary of a build for listing.
type BuildSummary struct {
	ID             string     `json:"id"`
	Repo           string     `json:"repo"`
	Ref            string     `json:"ref,omitempty"`
	CommitSHA      string     `json:"commitSha"`
	WorkflowName   string     `json:"workflowName,omitempty"`
	RuntimeVersion string     `json:"runtimeVersion,omitempty"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// BuildDetailResponse is the response for GET /api/builds/{id}.
type BuildDetailResponse struct {
	BuildSummary
	Failure *FailureInfo `json:"failure,omitempty"`
	Jobs    []JobInfo    `json:"jobs"`
}

// JobInfo describes one gate within a build.
type JobInfo struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Kind       string       `json:"kind"`
	State      string       `json:"state"`
	Steps      []StepInfo   `json:"steps"`
	Failure    *FailureInfo `json:"failure,omitempty"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

// StepInfo describes one step of a job.
type StepInfo struct {
	Idx        int          `json:"idx"`
	Kind       string       `json:"kind"`
	Name       string       `json:"name"`
	State      string       `json:"state"`
	ExitCode   int          `json:"exitCode"`
	Failure    *FailureInfo `json:"failure,omitempty"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

// FailureInfo represents a failure.
type FailureInfo struct {
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// JobLogResponse is the response for GET /api/builds/{id}/jobs/{name}/log.
type JobLogResponse struct {
	BuildID string         `json:"buildId"`
	JobName string         `json:"jobName"`
	Chunks  []LogChunkInfo `json:"chunks"`
}

// LogChunkInfo is one appended piece of step output.
type LogChunkInfo struct {
	StepIdx   int       `json:"stepIdx"`
	Chunk     string    `json:"chunk"`
	CreatedAt time.Time `json:"createdAt"`
}

func buildSummary(b *domain.Build) BuildSummary {
	return BuildSummary{
		ID:             b.ID,
		Repo:           b.Repo,
		Ref:            b.Ref,
		CommitSHA:      b.CommitSHA,
		WorkflowName:   b.WorkflowName,
		RuntimeVersion: b.RuntimeVersion,
		State:          b.State.String(),
		CreatedAt:      b.CreatedAt,
		StartedAt:      b.StartedAt,
		FinishedAt:     b.FinishedAt,
	}
}

func buildDetail(resp *service.BuildWithJobs) BuildDetailResponse {
	detail := BuildDetailResponse{
		BuildSummary: buildSummary(resp.Build),
		Jobs:         make([]JobInfo, 0, len(resp.Jobs)),
	}
	if resp.Build.Failure != nil {
		detail.Failure = &FailureInfo{
			Message:    resp.Build.Failure.Message,
			OccurredAt: resp.Build.Failure.OccurredAt,
		}
	}
	for _, j := range resp.Jobs {
		detail.Jobs = append(detail.Jobs, jobInfo(j))
	}
	return detail
}

func jobInfo(j *domain.Job) JobInfo {
	info := JobInfo{
		ID:         j.ID,
		Name:       j.Name,
		Kind:       string(j.Kind),
		State:      j.State.String(),
		Steps:      make([]StepInfo, 0, len(j.Steps)),
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
	if j.Failure != nil {
		info.Failure = &FailureInfo{
			Message:    j.Failure.Message,
			OccurredAt: j.Failure.OccurredAt,
		}
	}
	for _, s := range j.Steps {
		stepInfo := StepInfo{
			Idx:        s.Idx,
			Kind:       string(s.Kind),
			Name:       s.Name,
			State:      s.State.String(),
			ExitCode:   s.ExitCode,
			StartedAt:  s.StartedAt,
			FinishedAt: s.FinishedAt,
		}
		if s.Failure != nil {
			stepInfo.Failure = &FailureInfo{
				Message:    s.Failure.Message,
				OccurredAt: s.Failure.OccurredAt,
			}
		}
		info.Steps = append(info.Steps, stepInfo)
	}
	return info
}
