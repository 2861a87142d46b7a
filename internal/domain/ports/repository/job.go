package repository

import (
	"context"

	"video-transcode-worker/internal/domain/model"
)

// JobRepository is the coordination point between worker processes. ClaimNext
// is the sole mutual-exclusion mechanism in the system: two concurrent callers
// can never receive the same job.
type JobRepository interface {
	// Save inserts or updates a job row (used by enqueuers and tests).
	Save(ctx context.Context, tx Tx, job *model.TranscodeJob) error

	// FindByID returns the full job row.
	FindByID(ctx context.Context, tx Tx, id string) (*model.TranscodeJob, error)

	// ClaimNext atomically selects the highest-priority eligible pending job
	// (attempts < maxRetries, priority desc then created_at asc), skipping rows
	// locked by concurrent claimers, and within the same transaction marks it
	// processing, stamps workerID and started_at, and increments attempts.
	// Returns domain.ErrNotFound when no eligible row exists.
	ClaimNext(ctx context.Context, workerID string, maxRetries int) (*model.TranscodeJob, error)

	// UpdateProgress records the current stage label and progress percentage.
	UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error

	// Complete marks the job completed with progress 100 and persists the
	// structured output payload.
	Complete(ctx context.Context, tx Tx, jobID string, output *model.OutputInfo) error

	// Requeue returns a claimed job to pending so a future claim may retry it.
	// Attempts are not decremented.
	Requeue(ctx context.Context, jobID string, errMsg string) error

	// FailPermanently moves the job to its terminal failed state.
	FailPermanently(ctx context.Context, jobID string, errMsg string) error
}
