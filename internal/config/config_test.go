package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if got := cfg.GetAzimRegion(); got != 4 {
		t.Errorf("GetAzimRegion() = %d, want 4", got)
	}
	if got := cfg.GetGateRegion(); got != 4 {
		t.Errorf("GetGateRegion() = %d, want 4", got)
	}
	if got := cfg.GetMaxDBZPerDegree(); got != 5.0 {
		t.Errorf("GetMaxDBZPerDegree() = %f, want 5.0", got)
	}
	if got := cfg.GetAbscissa(); got != AbscissaAngle {
		t.Errorf("GetAbscissa() = %q, want %q", got, AbscissaAngle)
	}
	if got := cfg.GetMaxSlope(); got != 5.0 {
		t.Errorf("GetMaxSlope() = %f, want 5.0", got)
	}
	if got := cfg.GetJointCutoff(); got != 30.0 {
		t.Errorf("GetJointCutoff() = %f, want 30.0", got)
	}
	if got := cfg.GetMaxRange(); got != 150.0 {
		t.Errorf("GetMaxRange() = %f, want 150.0", got)
	}
	if cfg.GetPlotEnabled() {
		t.Error("plotting should be disabled by default")
	}
	if cfg.GetExcludeMasked() || cfg.GetWeightPerAngle() || cfg.GetCopyConvolToDopvol() {
		t.Error("optional precip behaviours should be off by default")
	}
}

func TestDefaultConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	path := filepath.Join(dir, "bugtracker.json")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.GetPlotDir() != filepath.Join(dir, "plot_output") {
		t.Errorf("plot_dir = %q", loaded.GetPlotDir())
	}
	if loaded.GetCacheDir() != filepath.Join(dir, "cache") {
		t.Errorf("cache_dir = %q", loaded.GetCacheDir())
	}
	if loaded.GetAzimRegion() != 4 || loaded.GetGateRegion() != 4 {
		t.Errorf("regions = %d,%d", loaded.GetAzimRegion(), loaded.GetGateRegion())
	}
}

func TestLoadConfigPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	testJSON := `{
  "plot_dir": "/tmp/plots",
  "precip": {"azim_region": 8, "abscissa": "height", "max_dbz_per_km": -5.0}
}`
	if err := os.WriteFile(path, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetPlotDir() != "/tmp/plots" {
		t.Errorf("plot_dir = %q", cfg.GetPlotDir())
	}
	if cfg.GetAzimRegion() != 8 {
		t.Errorf("azim_region = %d, want 8", cfg.GetAzimRegion())
	}
	// Omitted field falls back to default
	if cfg.GetGateRegion() != 4 {
		t.Errorf("gate_region = %d, want 4", cfg.GetGateRegion())
	}
	if cfg.GetMaxSlope() != -5.0 {
		t.Errorf("height abscissa should select max_dbz_per_km, got %f", cfg.GetMaxSlope())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		contains string
	}{
		{"wrong extension", "config.yaml", "{}", ".json extension"},
		{"bad json", "bad.json", "{not json", "failed to parse"},
		{"zero region", "zero.json", `{"precip": {"gate_region": 0}}`, "gate_region must be positive"},
		{"negative region", "neg.json", `{"precip": {"azim_region": -2}}`, "azim_region must be positive"},
		{"bad abscissa", "abs.json", `{"precip": {"abscissa": "range"}}`, "precip.abscissa"},
		{"bad range", "range.json", `{"plot_settings": {"max_range": 0}}`, "max_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err, tt.contains)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestClutterAndPathDefaults(t *testing.T) {
	cfg := EmptyConfig()
	if got := cfg.GetClutterDBZThreshold(); got != 10.0 {
		t.Errorf("GetClutterDBZThreshold() = %f, want 10.0", got)
	}
	if got := cfg.GetClutterCoverage(); got != 0.30 {
		t.Errorf("GetClutterCoverage() = %f, want 0.30", got)
	}
	if got := cfg.GetIrisInputDir(); got != "iris_data" {
		t.Errorf("GetIrisInputDir() = %q, want iris_data", got)
	}
	if got := cfg.GetDatabasePath(); got != filepath.Join("cache", "catalog.db") {
		t.Errorf("GetDatabasePath() = %q", got)
	}

	cfg.CacheDir = ptrString("/data/cache")
	if got := cfg.GetDatabasePath(); got != "/data/cache/catalog.db" {
		t.Errorf("GetDatabasePath() follows cache_dir, got %q", got)
	}

	cfg.Clutter = &ClutterConfig{CoverageThreshold: ptrFloat64(1.5)}
	if err := cfg.Validate(); err == nil {
		t.Error("expected coverage_threshold above 1 to fail validation")
	}
}
