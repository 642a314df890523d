package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("HLS_OUTPUT_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Redis.Host != "localhost" {
		t.Errorf("Redis.Host = %s, want localhost", cfg.Redis.Host)
	}
	if cfg.HLS.OutputDir != "hls" {
		t.Errorf("HLS.OutputDir = %s, want hls", cfg.HLS.OutputDir)
	}
	if cfg.HLS.FFmpegPath != "ffmpeg" {
		t.Errorf("HLS.FFmpegPath = %s, want ffmpeg", cfg.HLS.FFmpegPath)
	}
	if cfg.HLS.DrainGrace != 5*time.Second {
		t.Errorf("HLS.DrainGrace = %v, want 5s", cfg.HLS.DrainGrace)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("S3_BUCKET", "media")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("HLS_DRAIN_GRACE", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if got := cfg.Redis.Addr(); got != "redis.internal:6380" {
		t.Errorf("Redis.Addr() = %s, want redis.internal:6380", got)
	}
	if cfg.Storage.Bucket != "media" {
		t.Errorf("Storage.Bucket = %s, want media", cfg.Storage.Bucket)
	}
	if cfg.Storage.Region != "eu-west-1" {
		t.Errorf("Storage.Region = %s, want eu-west-1", cfg.Storage.Region)
	}
	if cfg.HLS.DrainGrace != 2*time.Second {
		t.Errorf("HLS.DrainGrace = %v, want 2s", cfg.HLS.DrainGrace)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Load() should reject a non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, true},
		{"missing redis host", func(c *Config) { c.Redis.Host = "" }, true},
		{"missing output dir", func(c *Config) { c.HLS.OutputDir = "" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:  ServerConfig{Port: 8000, Host: "0.0.0.0"},
				Redis:   RedisConfig{Host: "localhost", Port: "6379"},
				Storage: StorageConfig{Bucket: "media", Region: "us-east-1"},
				HLS:     HLSConfig{OutputDir: "hls", FFmpegPath: "ffmpeg"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
