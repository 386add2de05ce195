package model

import "time"

type AnalysisJobStatus string

const (
	AnalysisJobPending    AnalysisJobStatus = "pending"
	AnalysisJobProcessing AnalysisJobStatus = "processing"
	AnalysisJobCompleted  AnalysisJobStatus = "completed"
	AnalysisJobFailed     AnalysisJobStatus = "failed"
)

// AnalysisJob is one queued document analysis, processed asynchronously
// by the worker. The document payload travels with the job; the result
// lands in the document store under ResultID once the job completes.
type AnalysisJob struct {
	ID           string
	Status       AnalysisJobStatus
	DocumentName string
	Document     []byte
	ResultID     string
	Retries      int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
