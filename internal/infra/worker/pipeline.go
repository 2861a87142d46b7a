package worker

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"video-transcode-worker/internal/domain"
	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/adapter"
	"video-transcode-worker/internal/domain/ports/repository"
	"video-transcode-worker/internal/infra/logging"
	"video-transcode-worker/internal/infra/metrics"
	"video-transcode-worker/internal/usecase"
)

// Outcome is the terminal result of one job run from this worker's view.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRequeued  Outcome = "requeued"
	OutcomeFailed    Outcome = "failed"
)

const (
	stageDownload  = "download"
	stageTranscode = "transcode"
	stageUpload    = "upload"
	stageFinalize  = "finalize"
)

// settleTimeout bounds the final status write after a stage failure.
const settleTimeout = 10 * time.Second

// PipelineConfig is the immutable per-process configuration the executor
// needs. Constructed once at startup and passed by value.
type PipelineConfig struct {
	SourceBucket  string
	PublishBucket string
	TempDir       string
	MaxRetries    int
}

// Pipeline runs the four stages for one claimed job: download the source into
// a job-private scratch dir, encode the requested ladder subset, publish the
// output tree, and register the results. Any stage error aborts the run and
// is translated into a requeue or a permanent failure.
type Pipeline struct {
	jobs      repository.JobRepository
	assets    repository.AssetRepository
	registrar *usecase.RenditionRegistrar
	blob      adapter.BlobStore
	enc       adapter.Encoder
	progress  adapter.ProgressPublisher
	ladder    model.QualityLadder
	cfg       PipelineConfig
	log       *zerolog.Logger
}

func NewPipeline(
	jobs repository.JobRepository,
	assets repository.AssetRepository,
	registrar *usecase.RenditionRegistrar,
	blob adapter.BlobStore,
	enc adapter.Encoder,
	progress adapter.ProgressPublisher,
	ladder model.QualityLadder,
	cfg PipelineConfig,
	log *zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		jobs:      jobs,
		assets:    assets,
		registrar: registrar,
		blob:      blob,
		enc:       enc,
		progress:  progress,
		ladder:    ladder,
		cfg:       cfg,
		log:       log,
	}
}

// Run executes all stages for one claimed job and settles its final state.
// It never returns an error: every failure ends in a requeue or a permanent
// fail so the caller's loop is free to claim again.
func (p *Pipeline) Run(ctx context.Context, job *model.TranscodeJob) Outcome {
	log := logging.ForJob(p.log, job.ID, job.AssetID, job.WorkerID).
		With().Int("attempt", job.Attempts).Logger()

	metrics.JobStarted()
	start := time.Now()
	defer func() {
		metrics.JobFinished()
		metrics.ObserveJobDuration(time.Since(start).Seconds())
	}()

	workDir, err := os.MkdirTemp(p.cfg.TempDir, "transcode-"+job.ID+"-")
	if err != nil {
		return p.settleFailure(ctx, job, &log, fmt.Errorf("create scratch dir: %w", err))
	}
	// Scratch space is removed on every exit path.
	defer os.RemoveAll(workDir)

	output, err := p.execute(ctx, job, workDir, &log)
	if err != nil {
		return p.settleFailure(ctx, job, &log, err)
	}

	log.Info().
		Str("version_id", output.VersionID).
		Str("manifest_key", output.ManifestKey).
		Int("file_count", output.FileCount).
		Dur("duration_ms", time.Since(start)).
		Msg("job completed")
	return OutcomeCompleted
}

func (p *Pipeline) execute(ctx context.Context, job *model.TranscodeJob, workDir string, log *zerolog.Logger) (*model.OutputInfo, error) {
	// Stage 1: download
	stageStart := time.Now()
	p.setProgress(ctx, job, 5, stageDownload, log)

	sourceBucket := job.Source.Bucket
	if sourceBucket == "" {
		sourceBucket = p.cfg.SourceBucket
	}
	localSource := filepath.Join(workDir, "source"+filepath.Ext(job.Source.Key))
	size, err := p.blob.FetchObject(ctx, sourceBucket, job.Source.Key, localSource)
	if err != nil {
		return nil, p.stageError(stageDownload, err)
	}
	if size == 0 {
		return nil, p.stageError(stageDownload, domain.ErrEmptySource)
	}
	metrics.ObserveStage(stageDownload, time.Since(stageStart).Seconds())
	log.Debug().Int64("bytes", size).Msg("source downloaded")
	p.setProgress(ctx, job, 15, stageDownload, log)

	// Stage 2: transcode
	stageStart = time.Now()
	levels, err := p.ladder.ResolveAll(job.TargetQualities)
	if err != nil {
		return nil, p.stageError(stageTranscode, fmt.Errorf("%w: %v", err, job.TargetQualities))
	}
	// A fresh token per run keeps repeated runs of the same asset from ever
	// colliding in the publish store.
	versionID := newVersionToken()
	outDir := filepath.Join(workDir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, p.stageError(stageTranscode, err)
	}
	encoded, err := p.enc.Encode(ctx, localSource, outDir, levels)
	if err != nil {
		return nil, p.stageError(stageTranscode, err)
	}
	metrics.ObserveStage(stageTranscode, time.Since(stageStart).Seconds())
	p.setProgress(ctx, job, 70, stageTranscode, log)

	// Stage 3: upload
	stageStart = time.Now()
	prefix := publishPrefix(job.AssetID, versionID)
	fileCount, err := p.blob.UploadTree(ctx, p.cfg.PublishBucket, prefix, outDir)
	if err != nil {
		return nil, p.stageError(stageUpload, err)
	}
	manifestKey := path.Join(prefix, encoded.MasterRel)
	metrics.ObserveStage(stageUpload, time.Since(stageStart).Seconds())
	metrics.AddUploadedFiles(fileCount)
	log.Debug().Int("files", fileCount).Str("manifest_key", manifestKey).Msg("output tree published")
	p.setProgress(ctx, job, 90, stageUpload, log)

	// Stage 4: finalize
	stageStart = time.Now()
	produced := make(map[string]usecase.RenditionInput, len(encoded.Renditions))
	for _, r := range encoded.Renditions {
		produced[r.Quality.Name] = usecase.RenditionInput{
			Width:       r.Quality.Width,
			Height:      r.Quality.Height,
			BitrateKbps: r.Quality.BitrateKbps,
			FileKey:     path.Join(prefix, r.PlaylistRel),
		}
	}
	if err := p.registrar.Register(ctx, job.AssetID, versionID, produced, manifestKey); err != nil {
		return nil, p.stageError(stageFinalize, err)
	}

	output := &model.OutputInfo{
		VersionID:   versionID,
		ManifestKey: manifestKey,
		Qualities:   append([]string(nil), job.TargetQualities...),
		FileCount:   fileCount,
	}
	if err := p.jobs.Complete(ctx, nil, job.ID, output); err != nil {
		return nil, p.stageError(stageFinalize, err)
	}
	metrics.ObserveStage(stageFinalize, time.Since(stageStart).Seconds())
	p.publish(ctx, job.ID, 100, "done", log)
	return output, nil
}

// settleFailure implements the retry decision. The budget was already
// consumed when the job was claimed, so a job at attempts >= max is failed
// for good and its asset flipped to failed; otherwise it goes back to pending
// for a future claim.
//
// The settle writes run on a fresh context: when a shutdown signal cancels
// the run context mid-stage, the row must still leave processing, since
// nothing else ever recovers it.
func (p *Pipeline) settleFailure(_ context.Context, job *model.TranscodeJob, log *zerolog.Logger, cause error) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if job.Attempts >= p.cfg.MaxRetries {
		log.Error().Err(cause).Msg("job failed with no retries remaining")
		if err := p.jobs.FailPermanently(ctx, job.ID, cause.Error()); err != nil {
			log.Error().Err(err).Msg("could not mark job failed")
		}
		if err := p.assets.MarkFailed(ctx, nil, job.AssetID); err != nil {
			log.Error().Err(err).Msg("could not mark asset failed")
		}
		return OutcomeFailed
	}

	log.Warn().Err(cause).Msg("job failed, returning to queue")
	if err := p.jobs.Requeue(ctx, job.ID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("could not requeue job")
	}
	return OutcomeRequeued
}

func (p *Pipeline) setProgress(ctx context.Context, job *model.TranscodeJob, progress int, stage string, log *zerolog.Logger) {
	if err := p.jobs.UpdateProgress(ctx, job.ID, progress, stage); err != nil {
		log.Warn().Err(err).Int("progress", progress).Str("stage", stage).Msg("failed to update progress")
	}
	p.publish(ctx, job.ID, progress, stage, log)
}

func (p *Pipeline) publish(ctx context.Context, jobID string, progress int, stage string, log *zerolog.Logger) {
	if err := p.progress.Publish(ctx, jobID, progress, stage); err != nil {
		log.Debug().Err(err).Msg("progress mirror publish failed")
	}
}

func (p *Pipeline) stageError(stage string, err error) error {
	metrics.IncStageFailure(stage)
	return fmt.Errorf("%s: %w", stage, err)
}

// publishPrefix is the deterministic output path convention; all rendition
// trees for one run live under it.
func publishPrefix(assetID, versionID string) string {
	return path.Join("assets", assetID, "hls", versionID)
}

// newVersionToken returns a short random identifier for one pipeline run.
// The tail of a ULID is used so tokens minted in the same millisecond still
// differ.
func newVersionToken() string {
	s := ulid.Make().String()
	return strings.ToLower(s[len(s)-10:])
}
