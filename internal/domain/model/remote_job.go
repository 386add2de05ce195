package model

import "time"

// JobState tracks one analytical request through the remote run lifecycle.
type JobState string

const (
	JobCreated   JobState = "created"
	JobSubmitted JobState = "submitted"
	JobPolling   JobState = "polling"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// Terminal reports whether the job can no longer make progress.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobTimedOut
}

// RemoteJob is the orchestrator's per-request state. It is owned by a
// single orchestrator instance for the duration of one request; the
// conversation retains only the assistant and thread ids across jobs.
type RemoteJob struct {
	ID          string
	AssistantID string
	ThreadID    string
	RunID       string
	Status      JobState
	CreatedAt   time.Time
	LastError   string
}
