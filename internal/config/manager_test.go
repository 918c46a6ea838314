package config

import (
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return &Manager{configDir: filepath.Join(t.TempDir(), "lmbridge")}
}

func TestLoadMissingFile(t *testing.T) {
	m := newTestManager(t)
	if m.Exists() {
		t.Fatal("config should not exist yet")
	}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *cfg != (Config{}) {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestSaveAndLoad(t *testing.T) {
	m := newTestManager(t)

	want := &Config{BaseURL: "http://localhost:1234", APIKey: "k", MaxTokens: 4096}
	if err := m.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !m.Exists() {
		t.Fatal("config should exist after save")
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LMSTUDIO_BASE_URL", "http://host:9999")
	t.Setenv("LMSTUDIO_API_KEY", "env-key")
	t.Setenv("LMBRIDGE_MAX_TOKENS", "1024")

	cfg := &Config{BaseURL: "http://file", APIKey: "file-key", MaxTokens: 2048}
	ApplyEnv(cfg)

	if cfg.BaseURL != "http://host:9999" || cfg.APIKey != "env-key" || cfg.MaxTokens != 1024 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestApplyEnvIgnoresBadMaxTokens(t *testing.T) {
	t.Setenv("LMBRIDGE_MAX_TOKENS", "not-a-number")

	cfg := &Config{MaxTokens: 2048}
	ApplyEnv(cfg)
	if cfg.MaxTokens != 2048 {
		t.Errorf("invalid env value should be ignored, got %d", cfg.MaxTokens)
	}
}
