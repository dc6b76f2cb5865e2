package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected Provider=gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.Analytics.Engine != "sql" {
		t.Errorf("expected Engine=sql, got %s", cfg.Analytics.Engine)
	}
	if cfg.Storage.ObjectKey != "master_ds.db" {
		t.Errorf("expected ObjectKey=master_ds.db, got %s", cfg.Storage.ObjectKey)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("SHIPLENS_ENGINE", "")
	t.Setenv("SHIPLENS_BUCKET", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "shiplens.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Bucket = "shipments-prod"
	cfg.Analytics.Engine = "script"
	cfg.Cache.Prewarm = [][]string{{"ACME01", "ACME02"}}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Storage.Bucket != "shipments-prod" {
		t.Errorf("expected Bucket=shipments-prod, got %s", loaded.Storage.Bucket)
	}
	if loaded.Analytics.Engine != "script" {
		t.Errorf("expected Engine=script, got %s", loaded.Analytics.Engine)
	}
	if len(loaded.Cache.Prewarm) != 1 || len(loaded.Cache.Prewarm[0]) != 2 {
		t.Errorf("prewarm sets not round-tripped: %v", loaded.Cache.Prewarm)
	}
}

func TestConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analytics.Engine != "sql" {
		t.Errorf("expected default engine, got %s", cfg.Analytics.Engine)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("SHIPLENS_BUCKET", "env-bucket")
	t.Setenv("SHIPLENS_ENGINE", "script")
	t.Setenv("SHIPLENS_MODE", "test")
	t.Setenv("SHIPLENS_S3_ENDPOINT", "http://localhost:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected APIKey from env, got %s", cfg.LLM.APIKey)
	}
	if cfg.Storage.Bucket != "env-bucket" {
		t.Errorf("expected Bucket from env, got %s", cfg.Storage.Bucket)
	}
	if cfg.Analytics.Engine != "script" {
		t.Errorf("expected Engine from env, got %s", cfg.Analytics.Engine)
	}
	if cfg.Cache.Mode != "test" {
		t.Errorf("expected Mode from env, got %s", cfg.Cache.Mode)
	}
	if !cfg.Storage.PathStyle {
		t.Error("expected PathStyle forced on with custom endpoint")
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ScriptTimeout(); got != 10*time.Second {
		t.Errorf("expected 10s script timeout, got %v", got)
	}

	cfg.Analytics.ScriptTimeout = "250ms"
	if got := cfg.ScriptTimeout(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", got)
	}

	cfg.Analytics.ScriptTimeout = "garbage"
	if got := cfg.ScriptTimeout(); got != 10*time.Second {
		t.Errorf("expected fallback on parse failure, got %v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Analytics.Engine = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown engine")
	}

	cfg = DefaultConfig()
	cfg.Cache.Mode = "staging"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestConfig_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "shiplens.yaml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
}
