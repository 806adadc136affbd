package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.ThumbnailSize != "l" {
		t.Errorf("expected default thumbnail size l, got %s", cfg.ThumbnailSize)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("expected default concurrency 2, got %d", cfg.Concurrency)
	}
	if cfg.ChunkSize != 100*1024 {
		t.Errorf("expected default chunk size 100KiB, got %d", cfg.ChunkSize)
	}
	if cfg.ResponseTimeout != 30*time.Second {
		t.Errorf("expected default response timeout 30s, got %v", cfg.ResponseTimeout)
	}
	if cfg.InactivityTimeout != 600*time.Second {
		t.Errorf("expected default inactivity timeout 600s, got %v", cfg.InactivityTimeout)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
endpoint: https://cloud.example/api
token: secret-token
texture_dir: /tmp/textures
metadata_bucket: mem://
concurrency: 4
chunk_size: 4096
response_timeout: 10s
inactivity_timeout: 90s
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Endpoint != "https://cloud.example/api" {
		t.Errorf("expected endpoint set, got %s", cfg.Endpoint)
	}
	if cfg.Token != "secret-token" {
		t.Errorf("expected token set, got %s", cfg.Token)
	}
	if cfg.TextureDir != "/tmp/textures" {
		t.Errorf("expected texture dir set, got %s", cfg.TextureDir)
	}
	if cfg.MetadataBucket != "mem://" {
		t.Errorf("expected metadata bucket set, got %s", cfg.MetadataBucket)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.ChunkSize != 4096 {
		t.Errorf("expected chunk size 4096, got %d", cfg.ChunkSize)
	}
	if cfg.ResponseTimeout != 10*time.Second {
		t.Errorf("expected response timeout 10s, got %v", cfg.ResponseTimeout)
	}
	if cfg.InactivityTimeout != 90*time.Second {
		t.Errorf("expected inactivity timeout 90s, got %v", cfg.InactivityTimeout)
	}
	// Unset fields keep their defaults.
	if cfg.ThumbnailSize != "l" {
		t.Errorf("expected default thumbnail size preserved, got %s", cfg.ThumbnailSize)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLOUDPULL_ENDPOINT", "https://env.example")
	t.Setenv("CLOUDPULL_TOKEN", "env-token")
	t.Setenv("CLOUDPULL_CONCURRENCY", "8")
	t.Setenv("CLOUDPULL_INACTIVITY_TIMEOUT", "45s")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Endpoint != "https://env.example" {
		t.Errorf("expected endpoint from env, got %s", cfg.Endpoint)
	}
	if cfg.Token != "env-token" {
		t.Errorf("expected token from env, got %s", cfg.Token)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Concurrency)
	}
	if cfg.InactivityTimeout != 45*time.Second {
		t.Errorf("expected inactivity timeout 45s, got %v", cfg.InactivityTimeout)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("CLOUDPULL_CONCURRENCY", "not-a-number")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid CLOUDPULL_CONCURRENCY")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Endpoint = "https://cloud.example/api"
	valid.TextureDir = "/tmp/textures"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: true},
		{name: "missing texture dir", mutate: func(c *Config) { c.TextureDir = "" }, wantErr: true},
		{name: "invalid concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "invalid chunk size", mutate: func(c *Config) { c.ChunkSize = -1 }, wantErr: true},
		{name: "negative inactivity timeout", mutate: func(c *Config) { c.InactivityTimeout = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadYAMLBadDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("inactivity_timeout: soonish"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for unparseable duration")
	}
}
