package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Record.DefaultBackend != "claude" {
		t.Errorf("expected default backend claude, got %s", cfg.Record.DefaultBackend)
	}

	if !cfg.Record.KeepRaw {
		t.Error("expected KeepRaw to be true by default")
	}

	if cfg.Feed.Enabled {
		t.Error("expected feed disabled by default")
	}

	if cfg.Feed.Topic != "agenttrail.events" {
		t.Errorf("expected feed topic agenttrail.events, got %s", cfg.Feed.Topic)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Log.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	// Temporarily set HOME to a directory with no config file
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Record.DefaultBackend != "claude" {
		t.Errorf("expected default backend claude, got %s", cfg.Record.DefaultBackend)
	}
	wantDB := filepath.Join(tmpDir, ".agenttrail", "agenttrail.db")
	if cfg.Paths.DBPath != wantDB {
		t.Errorf("expected derived db path %s, got %s", wantDB, cfg.Paths.DBPath)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp config
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, ".agenttrail")
	os.MkdirAll(configDir, 0755)
	configFile := filepath.Join(configDir, "config.json")

	configJSON := `{
		"record": {
			"defaultBackend": "codex",
			"keepRaw": false
		},
		"feed": {
			"enabled": true,
			"brokers": "localhost:9092",
			"topic": "trail"
		}
	}`
	os.WriteFile(configFile, []byte(configJSON), 0600)

	// Temporarily set HOME
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Record.DefaultBackend != "codex" {
		t.Errorf("expected backend codex, got %s", cfg.Record.DefaultBackend)
	}
	if cfg.Record.KeepRaw {
		t.Error("expected keepRaw false from file")
	}
	if !cfg.Feed.Enabled || cfg.Feed.Brokers != "localhost:9092" || cfg.Feed.Topic != "trail" {
		t.Errorf("expected feed settings from file, got %+v", cfg.Feed)
	}
}

func TestEnvOverride(t *testing.T) {
	// Set env var with correct prefix for nested struct
	os.Setenv("AGENTTRAIL_RECORD_DEFAULT_BACKEND", "codex")
	os.Setenv("AGENTTRAIL_FEED_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	defer func() {
		os.Unsetenv("AGENTTRAIL_RECORD_DEFAULT_BACKEND")
		os.Unsetenv("AGENTTRAIL_FEED_KAFKA_BROKERS")
	}()

	// Use temp home with no config file
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Record.DefaultBackend != "codex" {
		t.Errorf("expected backend codex from env, got %s", cfg.Record.DefaultBackend)
	}
	if cfg.Feed.Brokers != "broker1:9092,broker2:9092" {
		t.Errorf("expected brokers from env, got %s", cfg.Feed.Brokers)
	}
}

func TestLoadSubstitutesEnvReferences(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, ".agenttrail")
	os.MkdirAll(configDir, 0755)
	configFile := filepath.Join(configDir, "config.json")

	configJSON := `{"feed": {"brokers": "${TRAIL_TEST_BROKER}"}}`
	os.WriteFile(configFile, []byte(configJSON), 0600)

	os.Setenv("TRAIL_TEST_BROKER", "k1:9092")
	defer os.Unsetenv("TRAIL_TEST_BROKER")

	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Feed.Brokers != "k1:9092" {
		t.Errorf("expected substituted broker k1:9092, got %s", cfg.Feed.Brokers)
	}
}
