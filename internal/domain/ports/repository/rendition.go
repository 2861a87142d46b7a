package repository

import (
	"context"

	"video-transcode-worker/internal/domain/model"
)

type RenditionRepository interface {
	// Upsert creates or overwrites the rendition row keyed by
	// (video_asset_id, version_id, quality). Numeric and key fields take the
	// caller's values on conflict; rows are never deleted by this subsystem.
	Upsert(ctx context.Context, tx Tx, r *model.Rendition) error

	// FindByAssetVersion lists renditions for one asset/version pair.
	FindByAssetVersion(ctx context.Context, tx Tx, assetID, versionID string) ([]*model.Rendition, error)
}
