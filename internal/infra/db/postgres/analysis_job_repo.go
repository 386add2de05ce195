package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
	"analytics-ai-core/internal/domain/ports/repository"
)

var _ repository.AnalysisJobRepository = (*analysisJobRepo)(nil)

// analysisJobRepo backs the async analysis queue.
//
// Schema:
//
//	CREATE TABLE analysis_jobs (
//	  id            text PRIMARY KEY,
//	  status        text NOT NULL,
//	  document_name text NOT NULL,
//	  document      bytea NOT NULL,
//	  result_id     text NOT NULL DEFAULT '',
//	  retries       int NOT NULL DEFAULT 0,
//	  last_error    text NOT NULL DEFAULT '',
//	  created_at    timestamptz NOT NULL,
//	  updated_at    timestamptz NOT NULL
//	);
type analysisJobRepo struct {
	pool *pgxpool.Pool
}

func NewAnalysisJobRepo(pool *pgxpool.Pool) *analysisJobRepo {
	return &analysisJobRepo{pool: pool}
}

func (r *analysisJobRepo) Save(ctx context.Context, job *model.AnalysisJob) error {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO analysis_jobs (id, status, document_name, document, result_id, retries, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  result_id = EXCLUDED.result_id,
  retries = EXCLUDED.retries,
  last_error = EXCLUDED.last_error,
  updated_at = EXCLUDED.updated_at;`

	_, err := r.pool.Exec(ctx, q,
		job.ID, job.Status, job.DocumentName, job.Document,
		job.ResultID, job.Retries, job.LastError, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrInvalidArgument
		}
		return err
	}
	return nil
}

func (r *analysisJobRepo) FindByID(ctx context.Context, id string) (*model.AnalysisJob, error) {
	const q = `
SELECT id, status, document_name, document, result_id, retries, last_error, created_at, updated_at
FROM analysis_jobs WHERE id = $1;`
	return scanJob(r.pool.QueryRow(ctx, q, id))
}

// FetchAndMarkProcessing claims the oldest pending job. SKIP LOCKED
// keeps concurrent workers from claiming the same row.
func (r *analysisJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.AnalysisJob, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const fetchQuery = `
SELECT id, status, document_name, document, result_id, retries, last_error, created_at, updated_at
FROM analysis_jobs
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

	job, err := scanJob(tx.QueryRow(ctx, fetchQuery))
	if err != nil {
		return nil, err
	}

	job.Status = model.AnalysisJobProcessing
	job.UpdatedAt = time.Now()
	const markQuery = `UPDATE analysis_jobs SET status = $2, updated_at = $3 WHERE id = $1;`
	if _, err := tx.Exec(ctx, markQuery, job.ID, job.Status, job.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

func scanJob(row pgx.Row) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	var status string
	err := row.Scan(
		&job.ID, &status, &job.DocumentName, &job.Document,
		&job.ResultID, &job.Retries, &job.LastError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = model.AnalysisJobStatus(status)
	return &job, nil
}
