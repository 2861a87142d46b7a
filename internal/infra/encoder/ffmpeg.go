package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"video-transcode-worker/internal/config"
	"video-transcode-worker/internal/domain/model"
	"video-transcode-worker/internal/domain/ports/adapter"
	"video-transcode-worker/internal/infra/logging"
)

var _ adapter.Encoder = (*FFmpegEncoder)(nil)

// FFmpegEncoder produces segmented HLS renditions by shelling out to ffmpeg,
// one invocation per ladder rung.
type FFmpegEncoder struct {
	cfg config.EncoderConfig
	log *zerolog.Logger
}

func NewFFmpegEncoder(cfg config.EncoderConfig, log *zerolog.Logger) *FFmpegEncoder {
	return &FFmpegEncoder{cfg: cfg, log: log}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, sourcePath, workDir string, qualities []model.QualityLevel) (*adapter.EncodeResult, error) {
	defer logging.TraceDuration(e.log, "FFmpegEncoder.Encode")()

	duration, err := e.probeDuration(ctx, sourcePath)
	if err != nil {
		e.log.Warn().Err(err).Str("source", sourcePath).Msg("duration probe failed")
		duration = 0
	}

	result := &adapter.EncodeResult{DurationSec: duration}
	for _, q := range qualities {
		resDir := filepath.Join(workDir, q.Name)
		if err := os.MkdirAll(resDir, 0o755); err != nil {
			return nil, fmt.Errorf("create rendition dir: %w", err)
		}

		args := buildHLSArgs(e.cfg, sourcePath, resDir, q)
		e.log.Debug().Str("quality", q.Name).Strs("args", args).Msg("ffmpeg encode")

		cmd := exec.CommandContext(ctx, e.cfg.FFmpegPath, args...)
		var stderr strings.Builder
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("encode %s: %w - %s", q.Name, err, tail(stderr.String(), 512))
		}

		result.Renditions = append(result.Renditions, adapter.RenditionOutput{
			Quality:     q,
			PlaylistRel: q.Name + "/index.m3u8",
			SegmentDir:  q.Name,
		})
	}

	master := buildMasterPlaylist(qualities)
	masterPath := filepath.Join(workDir, "master.m3u8")
	if err := os.WriteFile(masterPath, []byte(master), 0o644); err != nil {
		return nil, fmt.Errorf("write master playlist: %w", err)
	}
	result.MasterRel = "master.m3u8"
	return result, nil
}

// buildHLSArgs assembles one ffmpeg invocation for one rung. Kept separate so
// the argument layout is testable without ffmpeg installed.
func buildHLSArgs(cfg config.EncoderConfig, sourcePath, resDir string, q model.QualityLevel) []string {
	maxrate := q.BitrateKbps * 3 / 2
	bufsize := q.BitrateKbps * 2
	return []string{
		"-y",
		"-i", sourcePath,
		"-vf", fmt.Sprintf("scale=-2:%d", q.Height),
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-profile:v", "main",
		"-b:v", fmt.Sprintf("%dk", q.BitrateKbps),
		"-maxrate", fmt.Sprintf("%dk", maxrate),
		"-bufsize", fmt.Sprintf("%dk", bufsize),
		"-g", "48",
		"-keyint_min", "48",
		"-sc_threshold", "0",
		"-c:a", cfg.AudioCodec,
		"-b:a", q.AudioBitrate,
		"-f", "hls",
		"-hls_time", strconv.Itoa(cfg.HLSSegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(resDir, "%05d.ts"),
		filepath.Join(resDir, "index.m3u8"),
	}
}

// buildMasterPlaylist writes the top-level index referencing each per-quality
// sub-manifest by its relative path.
func buildMasterPlaylist(qualities []model.QualityLevel) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n\n")
	for _, q := range qualities {
		bandwidth := q.BitrateKbps*1000 + parseBitrateKbps(q.AudioBitrate)*1000
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", bandwidth, q.Width, q.Height)
		fmt.Fprintf(&b, "%s/index.m3u8\n", q.Name)
	}
	return b.String()
}

func parseBitrateKbps(s string) int {
	var v int
	fmt.Sscanf(s, "%dk", &v)
	return v
}

func (e *FFmpegEncoder) probeDuration(ctx context.Context, sourcePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		sourcePath)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(out))
	if s == "" {
		return 0, fmt.Errorf("empty duration for %s", sourcePath)
	}
	return strconv.ParseFloat(s, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
