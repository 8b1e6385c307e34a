package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is where the CLI looks for the processing configuration
// when no --config flag is given.
const DefaultConfigPath = "bugtracker.json"

// Abscissa values accepted by precip.abscissa.
const (
	AbscissaAngle  = "angle"
	AbscissaHeight = "height"
)

// Config is the root processing configuration. It is read once per run and
// passed by value into the detection and fusion stages, so it cannot change
// under a running pipeline.
type Config struct {
	PlotDir   *string `json:"plot_dir,omitempty"`
	NetCDFDir *string `json:"netcdf_dir,omitempty"`
	CacheDir  *string `json:"cache_dir,omitempty"`
	Database  *string `json:"database_path,omitempty"`

	InputDirs    *InputDirs        `json:"input_dirs,omitempty"`
	Clutter      *ClutterConfig    `json:"clutter,omitempty"`
	Precip       *PrecipConfig     `json:"precip,omitempty"`
	Processing   *ProcessingConfig `json:"processing,omitempty"`
	PlotSettings *PlotConfig       `json:"plot_settings,omitempty"`
}

// InputDirs are where raw scans of each format are read from.
type InputDirs struct {
	Iris   *string `json:"iris,omitempty"`
	Nexrad *string `json:"nexrad,omitempty"`
	Odim   *string `json:"odim,omitempty"`
}

// ClutterConfig controls how calibration scans are turned into clutter masks.
type ClutterConfig struct {
	DBZThreshold      *float64 `json:"dbz_threshold,omitempty"`
	CoverageThreshold *float64 `json:"coverage_threshold,omitempty"`
}

// PrecipConfig controls the zone slope contamination detector.
type PrecipConfig struct {
	AzimRegion      *int     `json:"azim_region,omitempty"`
	GateRegion      *int     `json:"gate_region,omitempty"`
	MaxDBZPerDegree *float64 `json:"max_dbz_per_degree,omitempty"`
	MaxDBZPerKm     *float64 `json:"max_dbz_per_km,omitempty"`
	Abscissa        *string  `json:"abscissa,omitempty"` // "angle" or "height"
	ExcludeMasked   *bool    `json:"exclude_masked,omitempty"`
	WeightPerAngle  *bool    `json:"weight_per_angle,omitempty"`
	CopyConvolToDop *bool    `json:"copy_convol_to_dopvol,omitempty"`
}

// ProcessingConfig holds settings for derived products.
type ProcessingConfig struct {
	JointCutoff *float64 `json:"joint_cutoff,omitempty"` // dBZ
}

// PlotConfig holds settings for the PPI plots.
type PlotConfig struct {
	Enabled  *bool    `json:"enabled,omitempty"`
	MaxRange *float64 `json:"max_range,omitempty"` // km
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a Config with all fields set to nil.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field set to its default, rooted at dir.
// This mirrors the template written by the `bugtracker config` command.
func DefaultConfig(dir string) *Config {
	return &Config{
		PlotDir:   ptrString(filepath.Join(dir, "plot_output")),
		NetCDFDir: ptrString(filepath.Join(dir, "netcdf_output")),
		CacheDir:  ptrString(filepath.Join(dir, "cache")),
		Database:  ptrString(filepath.Join(dir, "cache", "catalog.db")),
		InputDirs: &InputDirs{
			Iris:   ptrString(filepath.Join(dir, "iris_data")),
			Nexrad: ptrString(filepath.Join(dir, "nexrad_data")),
			Odim:   ptrString(filepath.Join(dir, "odim_data")),
		},
		Clutter: &ClutterConfig{
			DBZThreshold:      ptrFloat64(10.0),
			CoverageThreshold: ptrFloat64(0.30),
		},
		Precip: &PrecipConfig{
			AzimRegion:      ptrInt(4),
			GateRegion:      ptrInt(4),
			MaxDBZPerDegree: ptrFloat64(5.0),
			MaxDBZPerKm:     ptrFloat64(0.0),
			Abscissa:        ptrString(AbscissaAngle),
			ExcludeMasked:   ptrBool(false),
			WeightPerAngle:  ptrBool(false),
			CopyConvolToDop: ptrBool(false),
		},
		Processing: &ProcessingConfig{
			JointCutoff: ptrFloat64(30.0),
		},
		PlotSettings: &PlotConfig{
			Enabled:  ptrBool(false),
			MaxRange: ptrFloat64(150.0),
		},
	}
}

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to their defaults through the Get* methods.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes c as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration values are valid.
// Region sizes are checked for positivity here; divisibility against a
// particular grid is checked by the detector.
func (c *Config) Validate() error {
	if p := c.Precip; p != nil {
		if p.AzimRegion != nil && *p.AzimRegion <= 0 {
			return fmt.Errorf("precip.azim_region must be positive, got %d", *p.AzimRegion)
		}
		if p.GateRegion != nil && *p.GateRegion <= 0 {
			return fmt.Errorf("precip.gate_region must be positive, got %d", *p.GateRegion)
		}
		if p.Abscissa != nil && *p.Abscissa != AbscissaAngle && *p.Abscissa != AbscissaHeight {
			return fmt.Errorf("precip.abscissa must be %q or %q, got %q", AbscissaAngle, AbscissaHeight, *p.Abscissa)
		}
	}
	if cl := c.Clutter; cl != nil && cl.CoverageThreshold != nil {
		if v := *cl.CoverageThreshold; v <= 0 || v > 1 {
			return fmt.Errorf("clutter.coverage_threshold must be in (0, 1], got %f", v)
		}
	}
	if ps := c.PlotSettings; ps != nil && ps.MaxRange != nil && *ps.MaxRange <= 0 {
		return fmt.Errorf("plot_settings.max_range must be positive, got %f", *ps.MaxRange)
	}
	return nil
}

// GetPlotDir returns plot_dir or the default.
func (c *Config) GetPlotDir() string {
	if c.PlotDir == nil {
		return "plot_output"
	}
	return *c.PlotDir
}

// GetNetCDFDir returns netcdf_dir or the default.
func (c *Config) GetNetCDFDir() string {
	if c.NetCDFDir == nil {
		return "netcdf_output"
	}
	return *c.NetCDFDir
}

// GetCacheDir returns cache_dir or the default.
func (c *Config) GetCacheDir() string {
	if c.CacheDir == nil {
		return "cache"
	}
	return *c.CacheDir
}

// GetDatabasePath returns database_path, defaulting to catalog.db in the cache dir.
func (c *Config) GetDatabasePath() string {
	if c.Database == nil {
		return filepath.Join(c.GetCacheDir(), "catalog.db")
	}
	return *c.Database
}

// GetIrisInputDir returns input_dirs.iris or the default.
func (c *Config) GetIrisInputDir() string {
	if c.InputDirs == nil || c.InputDirs.Iris == nil {
		return "iris_data"
	}
	return *c.InputDirs.Iris
}

// GetClutterDBZThreshold returns clutter.dbz_threshold or the default.
func (c *Config) GetClutterDBZThreshold() float64 {
	if c.Clutter == nil || c.Clutter.DBZThreshold == nil {
		return 10.0
	}
	return *c.Clutter.DBZThreshold
}

// GetClutterCoverage returns clutter.coverage_threshold or the default.
func (c *Config) GetClutterCoverage() float64 {
	if c.Clutter == nil || c.Clutter.CoverageThreshold == nil {
		return 0.30
	}
	return *c.Clutter.CoverageThreshold
}

func (c *Config) precip() *PrecipConfig {
	if c.Precip == nil {
		return &PrecipConfig{}
	}
	return c.Precip
}

// GetAzimRegion returns precip.azim_region or the default.
func (c *Config) GetAzimRegion() int {
	if v := c.precip().AzimRegion; v != nil {
		return *v
	}
	return 4
}

// GetGateRegion returns precip.gate_region or the default.
func (c *Config) GetGateRegion() int {
	if v := c.precip().GateRegion; v != nil {
		return *v
	}
	return 4
}

// GetMaxDBZPerDegree returns precip.max_dbz_per_degree or the default.
func (c *Config) GetMaxDBZPerDegree() float64 {
	if v := c.precip().MaxDBZPerDegree; v != nil {
		return *v
	}
	return 5.0
}

// GetMaxDBZPerKm returns precip.max_dbz_per_km or the default.
func (c *Config) GetMaxDBZPerKm() float64 {
	if v := c.precip().MaxDBZPerKm; v != nil {
		return *v
	}
	return 0.0
}

// GetAbscissa returns precip.abscissa or the default.
func (c *Config) GetAbscissa() string {
	if v := c.precip().Abscissa; v != nil {
		return *v
	}
	return AbscissaAngle
}

// GetMaxSlope returns the slope threshold matching the configured abscissa.
func (c *Config) GetMaxSlope() float64 {
	if c.GetAbscissa() == AbscissaHeight {
		return c.GetMaxDBZPerKm()
	}
	return c.GetMaxDBZPerDegree()
}

// GetExcludeMasked returns precip.exclude_masked or the default.
func (c *Config) GetExcludeMasked() bool {
	if v := c.precip().ExcludeMasked; v != nil {
		return *v
	}
	return false
}

// GetWeightPerAngle returns precip.weight_per_angle or the default.
func (c *Config) GetWeightPerAngle() bool {
	if v := c.precip().WeightPerAngle; v != nil {
		return *v
	}
	return false
}

// GetCopyConvolToDopvol returns precip.copy_convol_to_dopvol or the default.
func (c *Config) GetCopyConvolToDopvol() bool {
	if v := c.precip().CopyConvolToDop; v != nil {
		return *v
	}
	return false
}

// GetJointCutoff returns processing.joint_cutoff or the default.
func (c *Config) GetJointCutoff() float64 {
	if c.Processing == nil || c.Processing.JointCutoff == nil {
		return 30.0
	}
	return *c.Processing.JointCutoff
}

// GetPlotEnabled returns plot_settings.enabled or the default.
func (c *Config) GetPlotEnabled() bool {
	if c.PlotSettings == nil || c.PlotSettings.Enabled == nil {
		return false
	}
	return *c.PlotSettings.Enabled
}

// GetMaxRange returns plot_settings.max_range or the default.
func (c *Config) GetMaxRange() float64 {
	if c.PlotSettings == nil || c.PlotSettings.MaxRange == nil {
		return 150.0
	}
	return *c.PlotSettings.MaxRange
}
