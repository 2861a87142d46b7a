package redis

import (
	"context"
	"fmt"
	"time"

	"video-transcode-worker/internal/domain/ports/adapter"
)

var _ adapter.ProgressPublisher = (*ProgressMirror)(nil)

// ProgressMirror writes the latest progress/stage of each job to a Redis hash
// so the admin API can poll live progress without querying Postgres. Entries
// expire on their own; the job table remains the durable record.
type ProgressMirror struct {
	client RedisClient
	ttl    time.Duration
}

func NewProgressMirror(client RedisClient) *ProgressMirror {
	return &ProgressMirror{client: client, ttl: 24 * time.Hour}
}

func (m *ProgressMirror) Publish(ctx context.Context, jobID string, progress int, stage string) error {
	key := progressKey(jobID)
	err := m.client.HSet(ctx, key, map[string]interface{}{
		"progress":   progress,
		"stage":      stage,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return m.client.Expire(ctx, key, m.ttl)
}

func progressKey(jobID string) string {
	return fmt.Sprintf("transcode:job:%s", jobID)
}
