package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "OBJECT_STORE", "ANALYSIS_PROVIDER", "PRESIGN_TTL", "CONSUMER_IDLE_DELAY", "MAX_UPLOAD_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Fatalf("env = %q", cfg.Env)
	}
	if cfg.ObjectStoreType != "local" || cfg.AnalysisProvider != "local" {
		t.Fatalf("unexpected providers: %q %q", cfg.ObjectStoreType, cfg.AnalysisProvider)
	}
	if cfg.PresignTTL != time.Hour {
		t.Fatalf("presign ttl = %s", cfg.PresignTTL)
	}
	if cfg.ConsumerIdleDelay != 5*time.Second || cfg.ConsumerErrorDelay != 10*time.Second {
		t.Fatalf("delays = %s / %s", cfg.ConsumerIdleDelay, cfg.ConsumerErrorDelay)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("max upload = %d", cfg.MaxUploadBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("ANALYSIS_PROVIDER", "Textract")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("CONSUMER_IDLE_DELAY", "2")
	t.Setenv("CONSUMER_ERROR_DELAY", "1500ms")
	t.Setenv("CONSUMER_PURGE_ON_START", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("env = %q", cfg.Env)
	}
	if cfg.AnalysisProvider != "textract" || cfg.ObjectStoreType != "s3" {
		t.Fatalf("unexpected providers: %q %q", cfg.ObjectStoreType, cfg.AnalysisProvider)
	}
	if cfg.ConsumerIdleDelay != 2*time.Second {
		t.Fatalf("idle delay = %s", cfg.ConsumerIdleDelay)
	}
	if cfg.ConsumerErrorDelay != 1500*time.Millisecond {
		t.Fatalf("error delay = %s", cfg.ConsumerErrorDelay)
	}
	if cfg.ConsumerPurgeOnStart {
		t.Fatalf("expected purge disabled")
	}
	if len(cfg.CORSAllowOrigin) != 2 {
		t.Fatalf("origins = %v", cfg.CORSAllowOrigin)
	}
}
