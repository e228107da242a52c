package gconfig

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Dim != 3 {
		t.Errorf("expected dim 3, got %d", cfg.Dim)
	}
	if cfg.Theta <= 0 {
		t.Error("theta should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("parallel", "ranks4")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.NumRanks != 4 {
		t.Errorf("expected num_ranks 4, got %d", cfg.NumRanks)
	}
}

func TestGetPresetNotFound(t *testing.T) {
	if cfg := GetPreset("parallel", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "ranks4"); cfg != nil {
		t.Error("expected nil for nonexistent mode")
	}
}

func TestListPresets(t *testing.T) {
	if presets := ListPresets("serial"); len(presets) == 0 {
		t.Error("expected presets for serial")
	}
	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent mode")
	}
}

func TestValidateRejectsBadDim(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dim = 4
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for dim 4")
	}
}

func TestValidateRejectsMismatchedDomain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainMin = []float64{-1, -1}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for domain_min length mismatch")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")

	cfg := GetPreset("parallel", "ranks4")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.NumRanks != cfg.NumRanks || got.Theta != cfg.Theta {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, cfg)
	}
}
