package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseAndRedis(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		valid bool
	}{
		{
			name:  "missing database url",
			env:   map[string]string{"REDIS_URL": "redis://localhost:6379"},
			valid: false,
		},
		{
			name:  "missing redis url",
			env:   map[string]string{"DATABASE_URL": "postgres://localhost/media"},
			valid: false,
		},
		{
			name: "both present",
			env: map[string]string{
				"DATABASE_URL": "postgres://localhost/media",
				"REDIS_URL":    "redis://localhost:6379",
			},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("REDIS_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.valid && err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !tt.valid && err == nil {
				t.Fatal("Load() expected error")
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/media")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SweepInterval != 3*time.Hour {
		t.Errorf("SweepInterval = %v, want 3h", cfg.SweepInterval)
	}
	if cfg.SweepBatchSize != 100 {
		t.Errorf("SweepBatchSize = %d, want 100", cfg.SweepBatchSize)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d, want 4", cfg.WorkerConcurrency)
	}
	if cfg.StorageBackend != StorageLocal {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, StorageLocal)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/media")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SWEEP_INTERVAL", "often")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid SWEEP_INTERVAL")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			StorageBackend:    StorageLocal,
			WorkerConcurrency: 2,
			SweepBatchSize:    100,
			SweepInterval:     time.Hour,
			MetricsPort:       9090,
			MediaTTL:          "1d",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero concurrency", func(c *Config) { c.WorkerConcurrency = 0 }, true},
		{"zero batch", func(c *Config) { c.SweepBatchSize = 0 }, true},
		{"zero interval", func(c *Config) { c.SweepInterval = 0 }, true},
		{"bad port", func(c *Config) { c.MetricsPort = 70000 }, true},
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }, true},
		{"minio without credentials", func(c *Config) { c.StorageBackend = StorageMinIO }, true},
		{"bad media ttl", func(c *Config) { c.MediaTTL = "tomorrow" }, true},
		{"webhook without scheme", func(c *Config) { c.WebhookURL = "hooks.example.com/media" }, true},
		{"webhook", func(c *Config) { c.WebhookURL = "https://hooks.example.com/media" }, false},
		{"minio with credentials", func(c *Config) {
			c.StorageBackend = StorageMinIO
			c.MinIOEndpoint = "localhost:9000"
			c.MinIOAccessKey = "key"
			c.MinIOSecretKey = "secret"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "profiles.yaml")
	content := `image_contexts:
  thumbnail:
    width: 320
    height: 240
video_formats:
  mkv:
    video: libx264
    audio: aac
    mime: video/x-matroska
`
	if err := os.WriteFile(valid, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfiles(valid)
	if err != nil {
		t.Fatalf("LoadProfiles() error = %v", err)
	}
	if got := p.ImageContexts["thumbnail"]; got.Width != 320 || got.Height != 240 {
		t.Errorf("thumbnail = %+v, want 320x240", got)
	}
	if got := p.VideoFormats["mkv"]; got.Video != "libx264" || got.Mime != "video/x-matroska" {
		t.Errorf("mkv = %+v", got)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("image_contexts:\n  bad: {width: 0, height: 10}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfiles(invalid); err == nil {
		t.Error("LoadProfiles() expected error for zero width")
	}

	empty, err := LoadProfiles("")
	if err != nil {
		t.Fatalf("LoadProfiles(\"\") error = %v", err)
	}
	if len(empty.ImageContexts) != 0 || len(empty.VideoFormats) != 0 {
		t.Error("LoadProfiles(\"\") should return empty profiles")
	}

	if _, err := LoadProfiles(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadProfiles() expected error for missing file")
	}
}
