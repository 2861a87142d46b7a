package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"video-transcode-worker/internal/domain"
	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/repository"
)

type memRenditionRepo struct {
	mu         sync.Mutex
	renditions map[string]*model.Rendition
	upserts    int
	upsertErr  error
}

func newMemRenditionRepo() *memRenditionRepo {
	return &memRenditionRepo{renditions: make(map[string]*model.Rendition)}
}

func key(assetID, versionID, quality string) string {
	return assetID + "|" + versionID + "|" + quality
}

func (m *memRenditionRepo) Upsert(ctx context.Context, tx repository.Tx, r *model.Rendition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *r
	m.renditions[key(r.VideoAssetID, r.VersionID, r.Quality)] = &cp
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
	return out, nil
}

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

type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
