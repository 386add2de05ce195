package repository

import (
	"context"

	"analytics-ai-core/internal/domain/model"
)

// AnalysisJobRepository is the queue backing asynchronous document
// analyses. FetchAndMarkProcessing must hand each pending job to at
// most one worker.
type AnalysisJobRepository interface {
	Save(ctx context.Context, job *model.AnalysisJob) error
	FindByID(ctx context.Context, id string) (*model.AnalysisJob, error)
	FetchAndMarkProcessing(ctx context.Context) (*model.AnalysisJob, error)
}
