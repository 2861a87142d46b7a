package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/repository"
)

// RenditionInput carries the produced parameters for one quality.
type RenditionInput struct {
	Width       int
	Height      int
	BitrateKbps int
	FileKey     string
}

// RenditionRegistrar records the outputs of one pipeline run: it upserts one
// Rendition row per produced quality and flips the owning asset to ready, all
// in one transaction. Calling it twice with the same (asset, version, quality)
// input overwrites rather than duplicates, so a retried finalize is safe.
type RenditionRegistrar struct {
	renditions repository.RenditionRepository
	assets     repository.AssetRepository
	tm         repository.TransactionManager
	bucket     string
	log        *zerolog.Logger
}

func NewRenditionRegistrar(
	renditions repository.RenditionRepository,
	assets repository.AssetRepository,
	tm repository.TransactionManager,
	publishBucket string,
	log *zerolog.Logger,
) *RenditionRegistrar {
	return &RenditionRegistrar{
		renditions: renditions,
		assets:     assets,
		tm:         tm,
		bucket:     publishBucket,
		log:        log,
	}
}

func (r *RenditionRegistrar) Register(ctx context.Context, assetID, versionID string, produced map[string]RenditionInput, manifestKey string) error {
	qualities := make([]string, 0, len(produced))
	for q := range produced {
		qualities = append(qualities, q)
	}
	sort.Strings(qualities)

	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, q := range qualities {
			in := produced[q]
			rend := &model.Rendition{
				VideoAssetID:     assetID,
				VersionID:        versionID,
				Quality:          q,
				ResolutionWidth:  in.Width,
				ResolutionHeight: in.Height,
				BitrateKbps:      in.BitrateKbps,
				FileBucket:       r.bucket,
				FileKey:          in.FileKey,
				ManifestKey:      manifestKey,
				Status:           model.RenditionStatusReady,
			}
			if err := r.renditions.Upsert(ctx, tx, rend); err != nil {
				return fmt.Errorf("upsert rendition %s: %w", q, err)
			}
		}
		if err := r.assets.MarkReady(ctx, tx, assetID, manifestKey); err != nil {
			return fmt.Errorf("mark asset ready: %w", err)
		}
		r.log.Info().
			Str("asset_id", assetID).
			Str("version_id", versionID).
			Strs("qualities", qualities).
			Msg("renditions registered")
		return nil
	})
}
