package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/repository"
)

var _ repository.RenditionRepository = (*RenditionRepo)(nil)

type RenditionRepo struct {
	pool *pgxpool.Pool
}

func NewRenditionRepo(pool *pgxpool.Pool) *RenditionRepo {
	return &RenditionRepo{pool: pool}
}

// Upsert keys on (video_asset_id, version_id, quality) so a retried finalize
// overwrites the earlier row instead of duplicating it.
func (r *RenditionRepo) Upsert(ctx context.Context, tx repository.Tx, rend *model.Rendition) error {
	if rend.CreatedAt.IsZero() {
		rend.CreatedAt = time.Now()
	}
	rend.UpdatedAt = time.Now()

	const q = `
INSERT INTO renditions (
  video_asset_id, version_id, quality, resolution_width, resolution_height,
  bitrate_kbps, file_bucket, file_key, manifest_key, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (video_asset_id, version_id, quality) DO UPDATE SET
  resolution_width = EXCLUDED.resolution_width,
  resolution_height = EXCLUDED.resolution_height,
  bitrate_kbps = EXCLUDED.bitrate_kbps,
  file_bucket = EXCLUDED.file_bucket,
  file_key = EXCLUDED.file_key,
  manifest_key = EXCLUDED.manifest_key,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		rend.VideoAssetID, rend.VersionID, rend.Quality, rend.ResolutionWidth,
		rend.ResolutionHeight, rend.BitrateKbps, rend.FileBucket, rend.FileKey,
		rend.ManifestKey, string(rend.Status), rend.CreatedAt, rend.UpdatedAt)
	return err
}

func (r *RenditionRepo) FindByAssetVersion(ctx context.Context, tx repository.Tx, assetID, versionID string) ([]*model.Rendition, error) {
	const q = `
SELECT video_asset_id, version_id, quality, resolution_width, resolution_height,
       bitrate_kbps, file_bucket, file_key, manifest_key, status, created_at, updated_at
FROM renditions
WHERE video_asset_id = $1 AND version_id = $2
ORDER BY resolution_height ASC;`

	rows, err := pickRows(ctx, r.pool, tx, q, assetID, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Rendition
	for rows.Next() {
		var (
			rend   model.Rendition
			status string
		)
		if err := rows.Scan(
			&rend.VideoAssetID, &rend.VersionID, &rend.Quality, &rend.ResolutionWidth,
			&rend.ResolutionHeight, &rend.BitrateKbps, &rend.FileBucket, &rend.FileKey,
			&rend.ManifestKey, &status, &rend.CreatedAt, &rend.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rend.Status = model.RenditionStatus(status)
		out = append(out, &rend)
	}
	return out, rows.Err()
}
