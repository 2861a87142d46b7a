package adapter

import "context"

// ProgressPublisher mirrors job progress to a fast read-side store so the
// admin API can poll without hitting Postgres. Publishing is best-effort;
// the durable record in the job table is authoritative.
type ProgressPublisher interface {
	Publish(ctx context.Context, jobID string, progress int, stage string) error
}

// NoopProgressPublisher is used when no mirror is configured.
type NoopProgressPublisher struct{}

func (NoopProgressPublisher) Publish(ctx context.Context, jobID string, progress int, stage string) error {
	return nil
}
