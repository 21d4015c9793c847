package domain

import "time"

// PushEvent is the trigger for a build: any push to the repository.
type PushEvent struct {
	Repo        string
	Ref         string
	CommitSHA   string
	Pusher      string
	HeadMessage string
	Payload     map[string]any // Raw provider payload, normalized before storage
	ReceivedAt  time.Time
}

// NewPushEvent creates a push event received now.
func NewPushEvent(repo, ref, commitSHA string) *PushEvent {
	return &PushEvent{
		Repo:       repo,
		Ref:        ref,
		CommitSHA:  commitSHA,
		ReceivedAt: time.Now().UTC(),
	}
}

// Validate checks the fields required to plan a build.
func (e *PushEvent) Validate() error {
	if e.Repo == "" {
		return ErrInvalidArgument
	}
	if e.CommitSHA == "" {
		return ErrInvalidArgument
	}
	return nil
}
