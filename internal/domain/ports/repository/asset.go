package repository

import (
	"context"

	"video-transcode-worker/internal/domain/model"
)

type AssetRepository interface {
	Save(ctx context.Context, tx Tx, asset *model.VideoAsset) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.VideoAsset, error)

	// MarkReady flips the asset to ready and records the master manifest key.
	MarkReady(ctx context.Context, tx Tx, assetID, manifestKey string) error

	// MarkFailed flips the asset to failed.
	MarkFailed(ctx context.Context, tx Tx, assetID string) error
}
