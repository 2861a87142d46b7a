package adapter

import (
	"context"

	"video-transcode-worker/internal/domain/model"
)

// RenditionOutput describes one produced quality within a work directory.
type RenditionOutput struct {
	Quality     model.QualityLevel
	PlaylistRel string // per-quality sub-manifest, relative to the work dir
	SegmentDir  string // segment directory, relative to the work dir
}

// EncodeResult is what one encoder run leaves behind in the work directory.
type EncodeResult struct {
	Renditions  []RenditionOutput
	MasterRel   string // master manifest, relative to the work dir
	DurationSec float64
}

// Encoder turns one local source file into segmented adaptive-bitrate
// renditions for the requested ladder subset, written under workDir.
// Qualities are produced sequentially, one encode per rung.
type Encoder interface {
	Encode(ctx context.Context, sourcePath, workDir string, qualities []model.QualityLevel) (*EncodeResult, error)
}
