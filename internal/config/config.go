// SPDX-License-Identifier: EPL-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Address         string `yaml:"address"`
	ReadTimeout     int    `yaml:"read_timeout"`     // seconds
	WriteTimeout    int    `yaml:"write_timeout"`    // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
	CORSOrigin      string `yaml:"cors_origin"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
}

// PipelineConfig contains conversion limits
type PipelineConfig struct {
	MaxSampleRate  int    `yaml:"max_sample_rate"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
	SpectrumPoints int    `yaml:"spectrum_points"`
	ResampleMode   string `yaml:"resample_quality"`
}

// FFmpegConfig controls the external codec
type FFmpegConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	Timeout    int    `yaml:"timeout"` // seconds
	MP3Bitrate string `yaml:"mp3_bitrate"`
	TempDir    string `yaml:"temp_dir"`
}

// StorageConfig selects the object and metadata stores
type StorageConfig struct {
	Objects     string `yaml:"objects"`  // memory or filesystem
	Dir         string `yaml:"dir"`
	BaseURL     string `yaml:"base_url"`
	Metadata    string `yaml:"metadata"` // memory or postgres
	DatabaseURL string `yaml:"database_url"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration that runs without any external service.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     60,
			WriteTimeout:    300,
			ShutdownTimeout: 15,
			CORSOrigin:      "*",
			MaxUploadMB:     100,
		},
		Pipeline: PipelineConfig{
			MaxSampleRate:  192000,
			MaxConcurrent:  4,
			SpectrumPoints: 512,
			ResampleMode:   "sinc",
		},
		FFmpeg: FFmpegConfig{
			Enabled:    true,
			Path:       "ffmpeg",
			Timeout:    120,
			MP3Bitrate: "192k",
		},
		Storage: StorageConfig{
			Objects:  "filesystem",
			Dir:      "./data/objects",
			Metadata: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads path over Default, applies the environment and validates the
// result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadDotEnv reads .env style files into the process environment. Missing
// files are ignored; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from AUDCONV_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"AUDCONV_HTTP_ADDR":    &c.HTTP.Address,
		"AUDCONV_DATABASE_URL": &c.Storage.DatabaseURL,
		"AUDCONV_STORAGE_DIR":  &c.Storage.Dir,
		"AUDCONV_FFMPEG_PATH":  &c.FFmpeg.Path,
		"AUDCONV_LOG_LEVEL":    &c.Logging.Level,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	// A database URL alone is enough to select postgres.
	if _, ok := lookup("AUDCONV_DATABASE_URL"); ok && c.Storage.DatabaseURL != "" {
		c.Storage.Metadata = "postgres"
	}

	if v, ok := lookup("AUDCONV_FFMPEG_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUDCONV_FFMPEG_ENABLED: %w", err)
		}
		c.FFmpeg.Enabled = b
	}

	if v, ok := lookup("AUDCONV_MAX_CONCURRENT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUDCONV_MAX_CONCURRENT: %w", err)
		}
		c.Pipeline.MaxConcurrent = n
	}

	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.FFmpeg.Validate(); err != nil {
		return fmt.Errorf("ffmpeg config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 1 || h.WriteTimeout < 1 {
		return fmt.Errorf("read_timeout and write_timeout must be at least 1 second, got %d and %d", h.ReadTimeout, h.WriteTimeout)
	}

	if h.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative, got %d", h.ShutdownTimeout)
	}

	if h.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", h.MaxUploadMB)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.MaxSampleRate < 8000 {
		return fmt.Errorf("max_sample_rate must be at least 8000 Hz, got %d", p.MaxSampleRate)
	}

	if p.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", p.MaxConcurrent)
	}

	if p.SpectrumPoints < 1 {
		return fmt.Errorf("spectrum_points must be at least 1, got %d", p.SpectrumPoints)
	}

	if p.ResampleMode != "sinc" && p.ResampleMode != "cubic" {
		return fmt.Errorf("resample_quality must be 'sinc' or 'cubic', got '%s'", p.ResampleMode)
	}

	return nil
}

// Validate validates ffmpeg configuration
func (f *FFmpegConfig) Validate() error {
	if !f.Enabled {
		return nil
	}

	if f.Path == "" {
		return fmt.Errorf("path cannot be empty when ffmpeg is enabled")
	}

	if f.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", f.Timeout)
	}

	if !strings.HasSuffix(f.MP3Bitrate, "k") {
		return fmt.Errorf("mp3_bitrate must look like '192k', got '%s'", f.MP3Bitrate)
	}
	if _, err := strconv.Atoi(strings.TrimSuffix(f.MP3Bitrate, "k")); err != nil {
		return fmt.Errorf("mp3_bitrate must look like '192k', got '%s'", f.MP3Bitrate)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	switch s.Objects {
	case "memory":
	case "filesystem":
		if s.Dir == "" {
			return fmt.Errorf("dir cannot be empty for filesystem objects")
		}
	default:
		return fmt.Errorf("objects must be 'memory' or 'filesystem', got '%s'", s.Objects)
	}

	switch s.Metadata {
	case "memory":
	case "postgres":
		if s.DatabaseURL == "" {
			return fmt.Errorf("database_url cannot be empty for postgres metadata")
		}
	default:
		return fmt.Errorf("metadata must be 'memory' or 'postgres', got '%s'", s.Metadata)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (h *HTTPConfig) MaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// GetReadTimeout returns the read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetShutdownTimeout returns the graceful shutdown timeout as a time.Duration
func (h *HTTPConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(h.ShutdownTimeout) * time.Second
}

// GetTimeoutDuration returns the ffmpeg timeout; zero means none
func (f *FFmpegConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(f.Timeout) * time.Second
}
