package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"video-transcode-worker/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables the progress mirror
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	UseSSL        bool   `yaml:"use_ssl"`
	Region        string `yaml:"region"`
	SourceBucket  string `yaml:"source_bucket"`
	PublishBucket string `yaml:"publish_bucket"`
}

type EncoderConfig struct {
	FFmpegPath        string `yaml:"ffmpeg_path"`
	FFprobePath       string `yaml:"ffprobe_path"`
	Preset            string `yaml:"preset"`
	CRF               int    `yaml:"crf"`
	AudioCodec        string `yaml:"audio_codec"`
	HLSSegmentSeconds int    `yaml:"hls_segment_seconds"`
}

type WorkerConfig struct {
	Identity            string `yaml:"identity"` // empty: generated per process start
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxRetries          int    `yaml:"max_retries"`
	TempDir             string `yaml:"temp_dir"`
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	Log      LogConfig            `yaml:"log"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    RedisConfig          `yaml:"redis"`
	Storage  StorageConfig        `yaml:"storage"`
	Encoder  EncoderConfig        `yaml:"encoder"`
	Worker   WorkerConfig         `yaml:"worker"`
	Admin    AdminConfig          `yaml:"admin"`
	Ladder   []model.QualityLevel `yaml:"ladder"`

	Runtime RuntimeConfig `yaml:"-"`
}

// PollInterval returns the idle-queue sleep as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// QualityLadder builds the ladder from config, falling back to the defaults
// when the file does not override it.
func (c *Config) QualityLadder() model.QualityLadder {
	if len(c.Ladder) == 0 {
		return model.DefaultLadder()
	}
	return model.NewQualityLadder(c.Ladder)
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// DATABASE_URL wins over the file so deployments can inject credentials.
	if env := os.Getenv("DATABASE_URL"); env != "" {
		cfg.Database.URL = env
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Storage.Endpoint == "" {
		return nil, errors.New("storage.endpoint is required")
	}
	if cfg.Storage.SourceBucket == "" || cfg.Storage.PublishBucket == "" {
		return nil, errors.New("storage.source_bucket and storage.publish_bucket are required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Encoder.FFmpegPath == "" {
		cfg.Encoder.FFmpegPath = "ffmpeg"
	}
	if cfg.Encoder.FFprobePath == "" {
		cfg.Encoder.FFprobePath = "ffprobe"
	}
	if cfg.Encoder.Preset == "" {
		cfg.Encoder.Preset = "medium"
	}
	if cfg.Encoder.CRF <= 0 {
		cfg.Encoder.CRF = 23
	}
	if cfg.Encoder.AudioCodec == "" {
		cfg.Encoder.AudioCodec = "aac"
	}
	if cfg.Encoder.HLSSegmentSeconds <= 0 {
		cfg.Encoder.HLSSegmentSeconds = 4
	}
	if cfg.Worker.PollIntervalSeconds <= 0 {
		cfg.Worker.PollIntervalSeconds = 10
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.TempDir == "" {
		cfg.Worker.TempDir = os.TempDir()
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 9100
	}
}
