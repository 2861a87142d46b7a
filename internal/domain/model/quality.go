package model

import (
	"sort"

	"video-transcode-worker/internal/domain"
)

// QualityLevel holds the encode targets for one ladder rung.
type QualityLevel struct {
	Name         string `yaml:"name"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	BitrateKbps  int    `yaml:"bitrate_kbps"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

// QualityLadder is the single source of truth mapping a quality label to its
// resolution/bitrate targets. No other component hardcodes these values.
type QualityLadder struct {
	levels map[string]QualityLevel
}

// DefaultLadder is the ladder used when the config file does not override it.
func DefaultLadder() QualityLadder {
	return NewQualityLadder([]QualityLevel{
		{Name: "480p", Width: 854, Height: 480, BitrateKbps: 800, AudioBitrate: "96k"},
		{Name: "720p", Width: 1280, Height: 720, BitrateKbps: 2000, AudioBitrate: "128k"},
		{Name: "1080p", Width: 1920, Height: 1080, BitrateKbps: 4500, AudioBitrate: "128k"},
	})
}

func NewQualityLadder(levels []QualityLevel) QualityLadder {
	m := make(map[string]QualityLevel, len(levels))
	for _, l := range levels {
		m[l.Name] = l
	}
	return QualityLadder{levels: m}
}

// Resolve maps a quality label to its targets.
func (q QualityLadder) Resolve(name string) (QualityLevel, error) {
	l, ok := q.levels[name]
	if !ok {
		return QualityLevel{}, domain.ErrUnknownQuality
	}
	return l, nil
}

// ResolveAll maps every requested label, failing on the first unknown one.
func (q QualityLadder) ResolveAll(names []string) ([]QualityLevel, error) {
	out := make([]QualityLevel, 0, len(names))
	for _, n := range names {
		l, err := q.Resolve(n)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Names returns the ladder's labels sorted by ascending height.
func (q QualityLadder) Names() []string {
	levels := make([]QualityLevel, 0, len(q.levels))
	for _, l := range q.levels {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Height < levels[j].Height })
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.Name
	}
	return names
}

func (q QualityLadder) Len() int { return len(q.levels) }
