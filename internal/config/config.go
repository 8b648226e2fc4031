// Package config loads the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	Addr     string         `yaml:"addr"`
	TempDir  string         `yaml:"temp_dir"`
	Workers  int            `yaml:"workers"`
	Queue    QueueConfig    `yaml:"queue"`
	Limits   LimitsConfig   `yaml:"limits"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Cache    CacheConfig    `yaml:"cache"`
	Detector DetectorConfig `yaml:"detector"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type QueueConfig struct {
	Size          int    `yaml:"size"`
	RedisAddr     string `yaml:"redis_addr"` // empty = in-memory queue
	QueueKey      string `yaml:"queue_key"`
	ProcessingKey string `yaml:"processing_key"`
}

type LimitsConfig struct {
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	MaxDuration    time.Duration `yaml:"max_duration"`
	MaxWidth       int           `yaml:"max_width"`
	MaxHeight      int           `yaml:"max_height"`
}

type AnalysisConfig struct {
	Confidence    float64       `yaml:"confidence"`
	Stride        int           `yaml:"stride"`
	TTLMultiplier int           `yaml:"ttl_multiplier"`
	GapTolerance  time.Duration `yaml:"gap_tolerance"`
}

type CacheConfig struct {
	Dir       string        `yaml:"dir"`
	Retention time.Duration `yaml:"retention"`
}

type DetectorConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type FFmpegConfig struct {
	Bin string `yaml:"bin"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"` // empty = record store disabled
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = 64
	}
	if c.Queue.QueueKey == "" {
		c.Queue.QueueKey = "analysis:queue"
	}
	if c.Queue.ProcessingKey == "" {
		c.Queue.ProcessingKey = "analysis:processing"
	}
	if c.Limits.MaxUploadBytes <= 0 {
		c.Limits.MaxUploadBytes = 200 << 20
	}
	if c.Limits.MaxDuration <= 0 {
		c.Limits.MaxDuration = 2 * time.Minute
	}
	if c.Limits.MaxWidth <= 0 {
		c.Limits.MaxWidth = 1280
	}
	if c.Limits.MaxHeight <= 0 {
		c.Limits.MaxHeight = 720
	}
	if c.Analysis.Confidence <= 0 {
		c.Analysis.Confidence = 0.25
	}
	if c.Analysis.Stride <= 0 {
		c.Analysis.Stride = 5
	}
	if c.Analysis.TTLMultiplier <= 0 {
		c.Analysis.TTLMultiplier = 2
	}
	if c.Analysis.GapTolerance <= 0 {
		c.Analysis.GapTolerance = time.Second
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.Retention <= 0 {
		c.Cache.Retention = 24 * time.Hour
	}
	if c.Detector.URL == "" {
		c.Detector.URL = "http://localhost:8500"
	}
	if c.Detector.Timeout <= 0 {
		c.Detector.Timeout = 30 * time.Second
	}
	if c.FFmpeg.Bin == "" {
		c.FFmpeg.Bin = "ffmpeg"
	}
}

// Load reads the YAML file at path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	var c Config

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	c.defaults()
	return &c, nil
}
