package domain

import "time"

// LogChunk is one appended piece of step output.
type LogChunk struct {
	ID        int64
	BuildID   string
	JobID     string
	StepIdx   int
	Chunk     string
	CreatedAt time.Time
}
