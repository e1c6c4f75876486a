package main

import (
	"io"
	"path/filepath"
	"testing"

	"jordanella.com/sortie-pilot/internal/config"
	"jordanella.com/sortie-pilot/internal/logging"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.ini"))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Strategy.PollInterval != config.Default().Strategy.PollInterval {
		t.Errorf("expected default interval, got %v", cfg.Strategy.PollInterval)
	}
}

func TestLoadProfilesFallsBackToDefault(t *testing.T) {
	logger := logging.NewLogger("test").SetOutput(io.Discard)

	profiles := loadProfiles([]string{"", "  ", filepath.Join(t.TempDir(), "nope.yaml")}, logger)
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	if profiles[0].Name != "combat" {
		t.Errorf("expected built-in combat profile, got %s", profiles[0].Name)
	}
}
