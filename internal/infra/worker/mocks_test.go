package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"video-transcode-worker/internal/domain"
	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/adapter"
	"video-transcode-worker/internal/domain/ports/repository"
)

// memJobRepo is a small in-memory JobRepository used by unit tests. It
// reproduces the claim semantics of the Postgres implementation: eligibility
// filter, priority/created ordering, and attempts incremented at claim.
type memJobRepo struct {
	mu          sync.Mutex
	jobs        map[string]*model.TranscodeJob
	progressLog map[string][]int // jobID -> observed progress values in order
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{
		jobs:        make(map[string]*model.TranscodeJob),
		progressLog: make(map[string][]int),
	}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.TranscodeJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TranscodeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ClaimNext(ctx context.Context, workerID string, maxRetries int) (*model.TranscodeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var eligible []*model.TranscodeJob
	for _, j := range m.jobs {
		if j.Status == model.JobStatusPending && j.Attempts < maxRetries {
			eligible = append(eligible, j)
		}
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(eligible, func(i, k int) bool {
		if eligible[i].Priority != eligible[k].Priority {
			return eligible[i].Priority > eligible[k].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[k].CreatedAt)
	})

	j := eligible[0]
	now := time.Now()
	j.Status = model.JobStatusProcessing
	j.WorkerID = workerID
	j.Attempts++
	j.StartedAt = &now
	j.UpdatedAt = now
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.Progress = progress
	j.Stage = stage
	j.UpdatedAt = time.Now()
	m.progressLog[jobID] = append(m.progressLog[jobID], progress)
	return nil
}

func (m *memJobRepo) Complete(ctx context.Context, tx repository.Tx, jobID string, output *model.OutputInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	j.Status = model.JobStatusCompleted
	j.Progress = 100
	j.Stage = "done"
	j.ErrorMessage = ""
	j.Output = output
	j.CompletedAt = &now
	j.UpdatedAt = now
	m.progressLog[jobID] = append(m.progressLog[jobID], 100)
	return nil
}

func (m *memJobRepo) Requeue(ctx context.Context, jobID string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = model.JobStatusPending
	j.Progress = 0
	j.Stage = ""
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobRepo) FailPermanently(ctx context.Context, jobID string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	j.Status = model.JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

func (m *memJobRepo) progressHistory(jobID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.progressLog[jobID]...)
}

// memAssetRepo holds assets in memory.
type memAssetRepo struct {
	mu     sync.Mutex
	assets map[string]*model.VideoAsset
}

func newMemAssetRepo() *memAssetRepo {
	return &memAssetRepo{assets: make(map[string]*model.VideoAsset)}
}

func (m *memAssetRepo) Save(ctx context.Context, tx repository.Tx, asset *model.VideoAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *asset
	m.assets[asset.ID] = &cp
	return nil
}

func (m *memAssetRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.VideoAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAssetRepo) MarkReady(ctx context.Context, tx repository.Tx, assetID, manifestKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return domain.ErrNotFound
	}
	a.ProcessingStatus = model.AssetStatusReady
	a.HLSManifestURL = manifestKey
	a.UpdatedAt = time.Now()
	return nil
}

func (m *memAssetRepo) MarkFailed(ctx context.Context, tx repository.Tx, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return domain.ErrNotFound
	}
	a.ProcessingStatus = model.AssetStatusFailed
	a.UpdatedAt = time.Now()
	return nil
}

// memRenditionRepo keys renditions by (asset, version, quality) like the
// Postgres upsert does.
type memRenditionRepo struct {
	mu         sync.Mutex
	renditions map[string]*model.Rendition
	upserts    int
}

func newMemRenditionRepo() *memRenditionRepo {
	return &memRenditionRepo{renditions: make(map[string]*model.Rendition)}
}

func rendKey(assetID, versionID, quality string) string {
	return assetID + "|" + versionID + "|" + quality
}

func (m *memRenditionRepo) Upsert(ctx context.Context, tx repository.Tx, r *model.Rendition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.renditions[rendKey(r.VideoAssetID, r.VersionID, r.Quality)] = &cp
	m.upserts++
	return nil
}

func (m *memRenditionRepo) FindByAssetVersion(ctx context.Context, tx repository.Tx, assetID, versionID string) ([]*model.Rendition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Rendition
	for _, r := range m.renditions {
		if r.VideoAssetID == assetID && r.VersionID == versionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolutionHeight < out[j].ResolutionHeight })
	return out, nil
}

// memTxManager runs the callback without a real transaction.
type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// memBlobStore keeps objects in maps; FetchObject materializes the stored
// bytes to disk so the pipeline's zero-length check sees real files.
type memBlobStore struct {
	mu       sync.Mutex
	objects  map[string][]byte // "bucket/key" -> content
	uploaded map[string]string // "bucket/key" -> local source path, for assertions
	fetchErr error
	upErr    error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		objects:  make(map[string][]byte),
		uploaded: make(map[string]string),
	}
}

func (m *memBlobStore) put(bucket, key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = content
}

func (m *memBlobStore) FetchObject(ctx context.Context, bucket, key, localPath string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return 0, m.fetchErr
	}
	content, ok := m.objects[bucket+"/"+key]
	if !ok {
		return 0, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

func (m *memBlobStore) UploadTree(ctx context.Context, bucket, prefix, localDir string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upErr != nil {
		return 0, m.upErr
	}
	count := 0
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		m.uploaded[bucket+"/"+path.Join(prefix, filepath.ToSlash(rel))] = p
		count++
		return nil
	})
	return count, err
}

func (m *memBlobStore) uploadedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.uploaded))
	for k := range m.uploaded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var errEncoderDown = errors.New("encoder down")

// failEncoder always errors, for exercising the retry decision.
type failEncoder struct{ err error }

func (f failEncoder) Encode(ctx context.Context, sourcePath, workDir string, qualities []model.QualityLevel) (*adapter.EncodeResult, error) {
	return nil, f.err
}

// flakyEncoder fails its first n calls, then delegates.
type flakyEncoder struct {
	failures int
	inner    adapter.Encoder
	calls    int
}

func (f *flakyEncoder) Encode(ctx context.Context, sourcePath, workDir string, qualities []model.QualityLevel) (*adapter.EncodeResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errEncoderDown
	}
	return f.inner.Encode(ctx, sourcePath, workDir, qualities)
}

// cancellingEncoder cancels the run context and then fails, the shape of an
// ffmpeg child killed by a shutdown signal.
type cancellingEncoder struct{ cancel context.CancelFunc }

func (e cancellingEncoder) Encode(ctx context.Context, sourcePath, workDir string, qualities []model.QualityLevel) (*adapter.EncodeResult, error) {
	e.cancel()
	return nil, ctx.Err()
}

// ctxJobRepo refuses every write once the passed context is cancelled, the
// way a real driver does.
type ctxJobRepo struct{ *memJobRepo }

func (c ctxJobRepo) UpdateProgress(ctx context.Context, jobID string, progress int, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memJobRepo.UpdateProgress(ctx, jobID, progress, stage)
}

func (c ctxJobRepo) Complete(ctx context.Context, tx repository.Tx, jobID string, output *model.OutputInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memJobRepo.Complete(ctx, tx, jobID, output)
}

func (c ctxJobRepo) Requeue(ctx context.Context, jobID string, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memJobRepo.Requeue(ctx, jobID, errMsg)
}

func (c ctxJobRepo) FailPermanently(ctx context.Context, jobID string, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memJobRepo.FailPermanently(ctx, jobID, errMsg)
}

// ctxAssetRepo mirrors ctxJobRepo for the asset side.
type ctxAssetRepo struct{ *memAssetRepo }

func (c ctxAssetRepo) MarkFailed(ctx context.Context, tx repository.Tx, assetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memAssetRepo.MarkFailed(ctx, tx, assetID)
}
