package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
	"analytics-ai-core/internal/domain/ports/repository"
	"analytics-ai-core/internal/infra/logging"
	"analytics-ai-core/internal/infra/metrics"
	"analytics-ai-core/internal/usecase"
)

// ResultsCollection is the document-store collection completed analysis
// results are written to, keyed by job id.
const ResultsCollection = "analyses"

// AnalysisJobProcessor drains the queued-analysis table: each claimed
// job runs one one-shot document analysis and lands its result in the
// document store.
type AnalysisJobProcessor struct {
	jobs     repository.AnalysisJobRepository
	results  repository.DocumentStore
	sessions usecase.SessionUseCase
	log      *zerolog.Logger
}

func NewAnalysisJobProcessor(
	jobs repository.AnalysisJobRepository,
	results repository.DocumentStore,
	sessions usecase.SessionUseCase,
	log *zerolog.Logger,
) *AnalysisJobProcessor {
	return &AnalysisJobProcessor{
		jobs:     jobs,
		results:  results,
		sessions: sessions,
		log:      log,
	}
}

// Start runs a loop to fetch and process jobs.
// This should be run in a goroutine.
func (p *AnalysisJobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("analysis job processor started")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("analysis job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *AnalysisJobProcessor) processOne(ctx context.Context) {
	job, err := p.jobs.FetchAndMarkProcessing(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to fetch analysis job")
		}
		return
	}

	ctx = logging.WithJobID(ctx, job.ID)
	jobLog := logging.With(ctx, p.log)

	jobLog.Info().Str("document", job.DocumentName).Msg("processing analysis job")
	start := time.Now()

	err = p.handleJob(ctx, job)
	latency := time.Since(start)

	finalStatus := model.AnalysisJobCompleted
	if err != nil {
		finalStatus = model.AnalysisJobFailed
		job.LastError = err.Error()
		jobLog.Error().Err(err).Msg("analysis job failed")
	}

	metrics.IncAnalysisJob(string(finalStatus))
	job.Status = finalStatus
	// Background context for the final update: the job outcome must be
	// recorded even when the triggering context is gone.
	if err := p.jobs.Save(context.Background(), job); err != nil {
		jobLog.Error().Err(err).Msg("could not persist job outcome")
	}
	jobLog.Info().Str("status", string(finalStatus)).Dur("duration", latency).Msg("analysis job finished")
}

func (p *AnalysisJobProcessor) handleJob(ctx context.Context, job *model.AnalysisJob) error {
	result, err := p.sessions.AnalyzeDocument(ctx, model.Document{
		Name:    job.DocumentName,
		Content: job.Document,
	})
	if err != nil {
		return err
	}
	if err := p.results.Put(ctx, ResultsCollection, job.ID, result); err != nil {
		return err
	}
	job.ResultID = job.ID
	return nil
}
