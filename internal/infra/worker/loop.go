package worker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-transcode-worker/internal/domain"
	"video-transcode-worker/internal/domain/ports/repository"
	"video-transcode-worker/internal/infra/metrics"
)

// Stats is a snapshot of this process's running tally.
type Stats struct {
	WorkerID  string    `json:"worker_id"`
	StartedAt time.Time `json:"started_at"`
	Completed uint64    `json:"completed"`
	Requeued  uint64    `json:"requeued"`
	Failed    uint64    `json:"failed"`
}

// Loop is the process entry point: claim the next eligible job, run the
// pipeline to completion, and claim again; sleep the poll interval when the
// queue is empty. Per-job failures never escape the loop.
type Loop struct {
	jobs         repository.JobRepository
	pipeline     *Pipeline
	workerID     string
	maxRetries   int
	pollInterval time.Duration
	log          *zerolog.Logger

	mu        sync.Mutex
	startedAt time.Time
	completed uint64
	requeued  uint64
	failed    uint64
}

func NewLoop(
	jobs repository.JobRepository,
	pipeline *Pipeline,
	workerID string,
	maxRetries int,
	pollInterval time.Duration,
	log *zerolog.Logger,
) *Loop {
	return &Loop{
		jobs:         jobs,
		pipeline:     pipeline,
		workerID:     workerID,
		maxRetries:   maxRetries,
		pollInterval: pollInterval,
		log:          log,
		startedAt:    time.Now(),
	}
}

// Run polls until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Str("worker_id", l.workerID).
		Dur("poll_interval", l.pollInterval).
		Int("max_retries", l.maxRetries).
		Msg("worker loop started")

	for {
		processed, err := l.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.log.Error().Err(err).Msg("claim failed")
		}
		if processed {
			// Something was in the queue; try again immediately.
			continue
		}

		select {
		case <-ctx.Done():
			l.log.Info().Str("worker_id", l.workerID).Msg("worker loop stopping")
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was
// processed; an empty queue is not an error.
func (l *Loop) RunOnce(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	job, err := l.jobs.ClaimNext(ctx, l.workerID, l.maxRetries)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncClaim("empty")
			return false, nil
		}
		metrics.IncClaim("error")
		return false, err
	}
	metrics.IncClaim("claimed")

	l.log.Info().
		Str("job_id", job.ID).
		Str("asset_id", job.AssetID).
		Strs("qualities", job.TargetQualities).
		Int("attempt", job.Attempts).
		Msg("job claimed")

	outcome := l.pipeline.Run(ctx, job)
	metrics.IncJob(string(outcome))
	l.record(outcome)

	stats := l.Stats()
	l.log.Info().
		Str("job_id", job.ID).
		Str("outcome", string(outcome)).
		Uint64("total_completed", stats.Completed).
		Uint64("total_requeued", stats.Requeued).
		Uint64("total_failed", stats.Failed).
		Msg("job finished")
	return true, nil
}

func (l *Loop) record(outcome Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch outcome {
	case OutcomeCompleted:
		l.completed++
	case OutcomeRequeued:
		l.requeued++
	case OutcomeFailed:
		l.failed++
	}
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		WorkerID:  l.workerID,
		StartedAt: l.startedAt,
		Completed: l.completed,
		Requeued:  l.requeued,
		Failed:    l.failed,
	}
}

// NewWorkerIdentity derives a process identity when none is configured.
func NewWorkerIdentity() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "worker-" + hex.EncodeToString([]byte(time.Now().Format("150405")))
	}
	return "worker-" + hex.EncodeToString(b)
}
