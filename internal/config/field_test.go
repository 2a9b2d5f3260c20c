package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
)

func TestEmptyFieldConfig_Defaults(t *testing.T) {
	cfg := EmptyFieldConfig()

	if got := cfg.GetParticlesPerCell(); got != 1 {
		t.Errorf("GetParticlesPerCell() = %d, want 1", got)
	}
	if got := cfg.GetDistribution(); got != field.DistributionCenter {
		t.Errorf("GetDistribution() = %v, want center", got)
	}
	if cfg.GetAddOverlapping() {
		t.Error("GetAddOverlapping() = true, want false")
	}
	if got := cfg.GetExtrapolation(); got != extrapolation.Zero {
		t.Errorf("GetExtrapolation() = %v, want zero", got.Name())
	}
	if got := cfg.GetConsoleWidth(); got != 80 {
		t.Errorf("GetConsoleWidth() = %d, want 80", got)
	}
	if got := cfg.GetConsoleHeight(); got != 20 {
		t.Errorf("GetConsoleHeight() = %d, want 20", got)
	}
	if got := cfg.GetDatabasePath(); got != "fieldgrid.db" {
		t.Errorf("GetDatabasePath() = %q", got)
	}
	if got := cfg.GetPlotDir(); got != "plots" {
		t.Errorf("GetPlotDir() = %q", got)
	}
	if cfg.GetMetricsListen() != "" || cfg.GetWorkers() != 0 || cfg.GetSeed() != 1 {
		t.Errorf("unexpected backend/metrics defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestLoadFieldConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "field.json")

	testJSON := `{
  "particles_per_cell": 4,
  "distribution": "uniform",
  "add_overlapping": true,
  "extrapolation": "constant:2.5",
  "seed": 42,
  "console_width": 120,
  "display": ["pressure"]
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadFieldConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetParticlesPerCell(); got != 4 {
		t.Errorf("GetParticlesPerCell() = %d, want 4", got)
	}
	if got := cfg.GetDistribution(); got != field.DistributionUniform {
		t.Errorf("GetDistribution() = %v, want uniform", got)
	}
	if !cfg.GetAddOverlapping() {
		t.Error("GetAddOverlapping() = false, want true")
	}
	if got := cfg.GetExtrapolation().Name(); got != "constant:2.5" {
		t.Errorf("GetExtrapolation() = %q, want constant:2.5", got)
	}
	if got := cfg.GetSeed(); got != 42 {
		t.Errorf("GetSeed() = %d, want 42", got)
	}
	if got := cfg.GetConsoleWidth(); got != 120 {
		t.Errorf("GetConsoleWidth() = %d, want 120", got)
	}
	// Omitted keys fall back to defaults.
	if got := cfg.GetConsoleHeight(); got != 20 {
		t.Errorf("GetConsoleHeight() = %d, want 20", got)
	}
	if got := cfg.GetDisplay(); len(got) != 1 || got[0] != "pressure" {
		t.Errorf("GetDisplay() = %v, want [pressure]", got)
	}
}

func TestLoadFieldConfigFS_Errors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	_ = mfs.WriteFile("/cfg/bad.json", []byte("{not json"), 0644)
	_ = mfs.WriteFile("/cfg/big.json", []byte("{"+strings.Repeat(" ", maxFileSize)+"}"), 0644)
	_ = mfs.WriteFile("/cfg/invalid.json", []byte(`{"particles_per_cell": 0}`), 0644)
	_ = mfs.WriteFile("/cfg/field.yaml", []byte("seed: 1"), 0644)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", "/cfg/field.yaml", ".json extension"},
		{"missing", "/cfg/missing.json", "failed to stat"},
		{"too large", "/cfg/big.json", "too large"},
		{"malformed", "/cfg/bad.json", "failed to parse"},
		{"invalid values", "/cfg/invalid.json", "particles_per_cell must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFieldConfigFS(mfs, tt.path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestFieldConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FieldConfig
		wantErr bool
	}{
		{"valid", FieldConfig{ParticlesPerCell: ptrInt(2), Distribution: ptrString("center"), AddOverlapping: ptrBool(true)}, false},
		{"bad distribution", FieldConfig{Distribution: ptrString("poisson")}, true},
		{"bad extrapolation", FieldConfig{Extrapolation: ptrString("reflect")}, true},
		{"negative workers", FieldConfig{Workers: ptrInt(-1)}, true},
		{"narrow console", FieldConfig{ConsoleWidth: ptrInt(4)}, true},
		{"flat console", FieldConfig{ConsoleHeight: ptrInt(1)}, true},
		{"blank display", FieldConfig{Display: []string{"density", " "}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.ParticlesPerCell == nil {
		t.Fatal("defaults file should set particles_per_cell")
	}
	if got := cfg.GetDisplay(); len(got) == 0 {
		t.Error("defaults file should list display fields")
	}
	if got := cfg.GetExtrapolation(); got != extrapolation.Zero {
		t.Errorf("default extrapolation = %q, want zero", got.Name())
	}
}
