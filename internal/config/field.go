package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical field defaults file.
const DefaultConfigPath = "config/field.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// FieldConfig holds seeding, scatter and console settings. Every field is
// optional; the Get* methods supply defaults for anything not set.
type FieldConfig struct {
	// Seeding and scatter
	ParticlesPerCell *int    `json:"particles_per_cell,omitempty"`
	Distribution     *string `json:"distribution,omitempty"` // "center" or "uniform"
	AddOverlapping   *bool   `json:"add_overlapping,omitempty"`
	Extrapolation    *string `json:"extrapolation,omitempty"` // extrapolation.ByName syntax

	// Numeric backend
	Seed    *uint64 `json:"seed,omitempty"`
	Workers *int    `json:"workers,omitempty"` // 0 means GOMAXPROCS

	// Console
	ConsoleWidth  *int     `json:"console_width,omitempty"`
	ConsoleHeight *int     `json:"console_height,omitempty"`
	Display       []string `json:"display,omitempty"`

	// Outputs
	DatabasePath  *string `json:"database_path,omitempty"`
	PlotDir       *string `json:"plot_dir,omitempty"`
	MetricsListen *string `json:"metrics_listen,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }

// EmptyFieldConfig returns a FieldConfig with every field unset.
func EmptyFieldConfig() *FieldConfig {
	return &FieldConfig{}
}

// LoadFieldConfig loads a FieldConfig from a JSON file on disk.
func LoadFieldConfig(path string) (*FieldConfig, error) {
	return LoadFieldConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadFieldConfigFS loads a FieldConfig through fsys. The file must have
// a .json extension and be at most 1MB. Omitted keys keep their defaults,
// so partial configs are safe.
func LoadFieldConfigFS(fsys fsutil.FileSystem, path string) (*FieldConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFieldConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *FieldConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,          // from cmd/
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/field/backend/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadFieldConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *FieldConfig) Validate() error {
	if c.ParticlesPerCell != nil && *c.ParticlesPerCell <= 0 {
		return fmt.Errorf("particles_per_cell must be positive, got %d", *c.ParticlesPerCell)
	}
	if c.Distribution != nil {
		if _, err := field.ParseDistribution(*c.Distribution); err != nil {
			return fmt.Errorf("invalid distribution: %w", err)
		}
	}
	if c.Extrapolation != nil {
		if _, err := extrapolation.ByName(*c.Extrapolation); err != nil {
			return fmt.Errorf("invalid extrapolation: %w", err)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.ConsoleWidth != nil && *c.ConsoleWidth < 8 {
		return fmt.Errorf("console_width must be at least 8, got %d", *c.ConsoleWidth)
	}
	if c.ConsoleHeight != nil && *c.ConsoleHeight < 2 {
		return fmt.Errorf("console_height must be at least 2, got %d", *c.ConsoleHeight)
	}
	for i, name := range c.Display {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("display[%d] is empty", i)
		}
	}
	return nil
}

// GetParticlesPerCell returns particles_per_cell or the default.
func (c *FieldConfig) GetParticlesPerCell() int {
	if c.ParticlesPerCell == nil {
		return 1 // default
	}
	return *c.ParticlesPerCell
}

// GetDistribution returns the parsed distribution, centre by default.
func (c *FieldConfig) GetDistribution() field.Distribution {
	if c.Distribution == nil {
		return field.DistributionCenter
	}
	d, err := field.ParseDistribution(*c.Distribution)
	if err != nil {
		return field.DistributionCenter // default on parse error
	}
	return d
}

// GetAddOverlapping returns add_overlapping or the default.
func (c *FieldConfig) GetAddOverlapping() bool {
	if c.AddOverlapping == nil {
		return false // default
	}
	return *c.AddOverlapping
}

// GetExtrapolation resolves the configured policy, Zero by default.
func (c *FieldConfig) GetExtrapolation() extrapolation.Extrapolation {
	if c.Extrapolation == nil {
		return extrapolation.Zero
	}
	ext, err := extrapolation.ByName(*c.Extrapolation)
	if err != nil {
		return extrapolation.Zero
	}
	return ext
}

// GetSeed returns the backend RNG seed or the default.
func (c *FieldConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1 // default
	}
	return *c.Seed
}

// GetWorkers returns the backend worker count, 0 meaning GOMAXPROCS.
func (c *FieldConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetConsoleWidth returns the canvas width in characters.
func (c *FieldConfig) GetConsoleWidth() int {
	if c.ConsoleWidth == nil {
		return 80 // default
	}
	return *c.ConsoleWidth
}

// GetConsoleHeight returns the canvas height in rows.
func (c *FieldConfig) GetConsoleHeight() int {
	if c.ConsoleHeight == nil {
		return 20 // default
	}
	return *c.ConsoleHeight
}

// GetDisplay returns the field names shown first by the console.
func (c *FieldConfig) GetDisplay() []string {
	return append([]string(nil), c.Display...)
}

// GetDatabasePath returns the snapshot database path or the default.
func (c *FieldConfig) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "fieldgrid.db"
	}
	return *c.DatabasePath
}

// GetPlotDir returns the directory for rendered plots.
func (c *FieldConfig) GetPlotDir() string {
	if c.PlotDir == nil || *c.PlotDir == "" {
		return "plots"
	}
	return *c.PlotDir
}

// GetMetricsListen returns the metrics listen address, empty to disable.
func (c *FieldConfig) GetMetricsListen() string {
	if c.MetricsListen == nil {
		return ""
	}
	return *c.MetricsListen
}
