package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for an engine session.
type Config struct {
	// Endpoint is the base URL of the hierarchy/metadata service.
	Endpoint string `yaml:"endpoint"`

	// Token is the opaque credential passed through to the metadata
	// service. Supplied by the host; never interpreted.
	Token string `yaml:"token"`

	// TextureDir is where downloaded asset files and their validator
	// sidecars live.
	TextureDir string `yaml:"texture_dir"`

	// MetadataBucket is an optional blob URL (file://..., mem://) where
	// resolved file documents are persisted.
	MetadataBucket string `yaml:"metadata_bucket"`

	// ThumbnailSize is the rendition size indicator requested for
	// thumbnails.
	ThumbnailSize string `yaml:"thumbnail_size"`

	// Concurrency is the batch wave size.
	Concurrency int `yaml:"concurrency"`

	// ChunkSize is the streaming write granularity in bytes.
	ChunkSize int `yaml:"chunk_size"`

	// ResponseTimeout bounds the wait for response headers.
	ResponseTimeout time.Duration `yaml:"response_timeout"`

	// InactivityTimeout aborts a body read that stalls for this long.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ThumbnailSize:     "l",
		Concurrency:       2,
		ChunkSize:         100 * 1024,
		ResponseTimeout:   30 * time.Second,
		InactivityTimeout: 600 * time.Second,
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Endpoint          string `yaml:"endpoint"`
	Token             string `yaml:"token"`
	TextureDir        string `yaml:"texture_dir"`
	MetadataBucket    string `yaml:"metadata_bucket"`
	ThumbnailSize     string `yaml:"thumbnail_size"`
	Concurrency       int    `yaml:"concurrency"`
	ChunkSize         int    `yaml:"chunk_size"`
	ResponseTimeout   string `yaml:"response_timeout"`
	InactivityTimeout string `yaml:"inactivity_timeout"`
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Endpoint != "" {
		cfg.Endpoint = yc.Endpoint
	}
	if yc.Token != "" {
		cfg.Token = yc.Token
	}
	if yc.TextureDir != "" {
		cfg.TextureDir = yc.TextureDir
	}
	if yc.MetadataBucket != "" {
		cfg.MetadataBucket = yc.MetadataBucket
	}
	if yc.ThumbnailSize != "" {
		cfg.ThumbnailSize = yc.ThumbnailSize
	}
	if yc.Concurrency != 0 {
		cfg.Concurrency = yc.Concurrency
	}
	if yc.ChunkSize != 0 {
		cfg.ChunkSize = yc.ChunkSize
	}
	if yc.ResponseTimeout != "" {
		d, err := time.ParseDuration(yc.ResponseTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse response_timeout: %w", err)
		}
		cfg.ResponseTimeout = d
	}
	if yc.InactivityTimeout != "" {
		d, err := time.ParseDuration(yc.InactivityTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse inactivity_timeout: %w", err)
		}
		cfg.InactivityTimeout = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CLOUDPULL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("CLOUDPULL_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("CLOUDPULL_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("CLOUDPULL_TEXTURE_DIR"); v != "" {
		c.TextureDir = v
	}
	if v := os.Getenv("CLOUDPULL_METADATA_BUCKET"); v != "" {
		c.MetadataBucket = v
	}
	if v := os.Getenv("CLOUDPULL_THUMBNAIL_SIZE"); v != "" {
		c.ThumbnailSize = v
	}
	if v := os.Getenv("CLOUDPULL_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CLOUDPULL_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("CLOUDPULL_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CLOUDPULL_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}
	if v := os.Getenv("CLOUDPULL_RESPONSE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CLOUDPULL_RESPONSE_TIMEOUT: %w", err)
		}
		c.ResponseTimeout = d
	}
	if v := os.Getenv("CLOUDPULL_INACTIVITY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CLOUDPULL_INACTIVITY_TIMEOUT: %w", err)
		}
		c.InactivityTimeout = d
	}

	return nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("config: endpoint is required")
	}
	if c.TextureDir == "" {
		return errors.New("config: texture_dir is required")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.InactivityTimeout < 0 {
		return errors.New("config: inactivity_timeout must not be negative")
	}
	return nil
}
