package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-transcode-worker/internal/domain"
	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/repository"
)

var _ repository.AssetRepository = (*AssetRepo)(nil)

type AssetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

func (r *AssetRepo) Save(ctx context.Context, tx repository.Tx, asset *model.VideoAsset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	asset.UpdatedAt = time.Now()

	const q = `
INSERT INTO video_assets (id, processing_status, hls_manifest_url, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5)
ON CONFLICT (id) DO UPDATE SET
  processing_status = EXCLUDED.processing_status,
  hls_manifest_url = EXCLUDED.hls_manifest_url,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		asset.ID, string(asset.ProcessingStatus), asset.HLSManifestURL, asset.CreatedAt, asset.UpdatedAt)
	return err
}

func (r *AssetRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.VideoAsset, error) {
	const q = `
SELECT id, processing_status, COALESCE(hls_manifest_url, ''), created_at, updated_at
FROM video_assets WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		a      model.VideoAsset
		status string
	)
	if err := row.Scan(&a.ID, &status, &a.HLSManifestURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	a.ProcessingStatus = model.AssetStatus(status)
	return &a, nil
}

func (r *AssetRepo) MarkReady(ctx context.Context, tx repository.Tx, assetID, manifestKey string) error {
	const q = `
UPDATE video_assets
SET processing_status = 'ready', hls_manifest_url = $2, updated_at = now()
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, assetID, manifestKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AssetRepo) MarkFailed(ctx context.Context, tx repository.Tx, assetID string) error {
	const q = `
UPDATE video_assets
SET processing_status = 'failed', updated_at = now()
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, assetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
