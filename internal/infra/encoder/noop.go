package encoder

import (
	"context"
	"os"
	"path/filepath"

	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/adapter"
)

var _ adapter.Encoder = (*NoopEncoder)(nil)

// NoopEncoder fabricates a minimal but structurally valid output tree without
// invoking ffmpeg. Used in dev mode and in tests of the surrounding pipeline.
type NoopEncoder struct{}

func NewNoopEncoder() *NoopEncoder { return &NoopEncoder{} }

func (NoopEncoder) Encode(ctx context.Context, sourcePath, workDir string, qualities []model.QualityLevel) (*adapter.EncodeResult, error) {
	result := &adapter.EncodeResult{}
	for _, q := range qualities {
		resDir := filepath.Join(workDir, q.Name)
		if err := os.MkdirAll(resDir, 0o755); err != nil {
			return nil, err
		}
		playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:4.0,\n00000.ts\n#EXT-X-ENDLIST\n"
		if err := os.WriteFile(filepath.Join(resDir, "index.m3u8"), []byte(playlist), 0o644); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(resDir, "00000.ts"), []byte("stub"), 0o644); err != nil {
			return nil, err
		}
		result.Renditions = append(result.Renditions, adapter.RenditionOutput{
			Quality:     q,
			PlaylistRel: q.Name + "/index.m3u8",
			SegmentDir:  q.Name,
		})
	}
	master := buildMasterPlaylist(qualities)
	if err := os.WriteFile(filepath.Join(workDir, "master.m3u8"), []byte(master), 0o644); err != nil {
		return nil, err
	}
	result.MasterRel = "master.m3u8"
	return result, nil
}
