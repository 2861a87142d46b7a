package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-transcode-worker/internal/domain"
	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

type JobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *JobRepo {
	return &JobRepo{pool: pool, tm: tm}
}

const jobColumns = `
id, asset_id, source_bucket, source_key, target_qualities, status, priority,
COALESCE(worker_id, ''), attempts, progress, COALESCE(stage, ''),
COALESCE(error_message, ''), output_info, started_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*model.TranscodeJob, error) {
	var (
		j          model.TranscodeJob
		status     string
		outputJSON []byte
	)
	err := row.Scan(
		&j.ID, &j.AssetID, &j.Source.Bucket, &j.Source.Key, &j.TargetQualities,
		&status, &j.Priority, &j.WorkerID, &j.Attempts, &j.Progress, &j.Stage,
		&j.ErrorMessage, &outputJSON, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	if len(outputJSON) > 0 {
		var out model.OutputInfo
		if err := json.Unmarshal(outputJSON, &out); err != nil {
			return nil, fmt.Errorf("decode output_info: %w", err)
		}
		j.Output = &out
	}
	return &j, nil
}

func (r *JobRepo) Save(ctx context.Context, tx repository.Tx, job *model.TranscodeJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.UpdatedAt = time.Now()

	var outputJSON []byte
	if job.Output != nil {
		b, err := json.Marshal(job.Output)
		if err != nil {
			return fmt.Errorf("encode output_info: %w", err)
		}
		outputJSON = b
	}

	const q = `
INSERT INTO transcode_jobs (
  id, asset_id, source_bucket, source_key, target_qualities, status, priority,
  worker_id, attempts, progress, stage, error_message, output_info,
  started_at, completed_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  priority = EXCLUDED.priority,
  worker_id = EXCLUDED.worker_id,
  attempts = EXCLUDED.attempts,
  progress = EXCLUDED.progress,
  stage = EXCLUDED.stage,
  error_message = EXCLUDED.error_message,
  output_info = EXCLUDED.output_info,
  started_at = EXCLUDED.started_at,
  completed_at = EXCLUDED.completed_at,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.AssetID, job.Source.Bucket, job.Source.Key, job.TargetQualities,
		string(job.Status), job.Priority, job.WorkerID, job.Attempts, job.Progress,
		job.Stage, job.ErrorMessage, outputJSON, job.StartedAt, job.CompletedAt,
		job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *JobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TranscodeJob, error) {
	q := `SELECT ` + jobColumns + ` FROM transcode_jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// ClaimNext is the sole mutual-exclusion mechanism between worker processes:
// the locking read and the ownership update happen in one transaction, and
// SKIP LOCKED makes concurrent claimers pass over each other's rows instead
// of blocking. The retry budget is consumed here, at claim time.
func (r *JobRepo) ClaimNext(ctx context.Context, workerID string, maxRetries int) (*model.TranscodeJob, error) {
	var claimed *model.TranscodeJob

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		fetchQuery := `
SELECT ` + jobColumns + `
FROM transcode_jobs
WHERE status = 'pending' AND attempts < $1
ORDER BY priority DESC, created_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery, maxRetries)
		if err != nil {
			return err
		}
		job, err := scanJob(row)
		if err != nil {
			return err
		}

		now := time.Now()
		const updateQuery = `
UPDATE transcode_jobs
SET status = 'processing', worker_id = $2, attempts = attempts + 1,
    started_at = $3, updated_at = $3
WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, updateQuery, job.ID, workerID, now); err != nil {
			return err
		}

		job.Status = model.JobStatusProcessing
		job.WorkerID = workerID
		job.Attempts++
		job.StartedAt = &now
		job.UpdatedAt = now
		claimed = job
		return nil
	})

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return claimed, nil
}

func (r *JobRepo) UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error {
	const q = `
UPDATE transcode_jobs
SET progress = $2, stage = $3, updated_at = now()
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, nil, q, jobID, progress, stage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepo) Complete(ctx context.Context, tx repository.Tx, jobID string, output *model.OutputInfo) error {
	b, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode output_info: %w", err)
	}
	const q = `
UPDATE transcode_jobs
SET status = 'completed', progress = 100, stage = 'done', error_message = NULL,
    output_info = $2, completed_at = now(), updated_at = now()
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, jobID, b)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepo) Requeue(ctx context.Context, jobID string, errMsg string) error {
	const q = `
UPDATE transcode_jobs
SET status = 'pending', progress = 0, stage = '', error_message = $2,
    updated_at = now()
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, nil, q, jobID, truncateError(errMsg))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepo) FailPermanently(ctx context.Context, jobID string, errMsg string) error {
	const q = `
UPDATE transcode_jobs
SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, nil, q, jobID, truncateError(errMsg))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Stored error messages are capped so a pathological ffmpeg dump cannot bloat
// the row.
func truncateError(msg string) string {
	const max = 1024
	if len(msg) > max {
		return msg[:max]
	}
	return msg
}
