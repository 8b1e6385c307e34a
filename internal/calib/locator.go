// Package calib loads, validates and exports per-radar calibration artifacts:
// the lat/lon/altitude geometry of the polar grid and, for IRIS radars, the
// CONVOL/DOPVOL scan angles and clutter masks.
package calib

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/grid"
)

var (
	// ErrCalibrationMissing is returned when no calibration artifact exists for a radar.
	ErrCalibrationMissing = errors.New("calibration missing")

	// ErrInsufficientAngles is returned when a scan family has fewer than two angles.
	ErrInsufficientAngles = errors.New("insufficient calibration angles")
)

// Locator resolves calibration artifacts in the cache directory.
type Locator struct {
	cacheDir string
	fs       fsutil.FileSystem
}

// NewLocator returns a Locator rooted at cacheDir. A nil fs uses the OS filesystem.
func NewLocator(cacheDir string, fs fsutil.FileSystem) *Locator {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Locator{cacheDir: cacheDir, fs: fs}
}

// Dir is the folder holding calibration artifacts.
func (l *Locator) Dir() string {
	return filepath.Join(l.cacheDir, "calib")
}

// Key returns the artifact basename for a radar and grid, of the form
// <radar_id>_<azims>_<gates>_<azim_step>_<gate_step>.nc.
func Key(radarID string, g grid.Geometry) string {
	return fmt.Sprintf("%s_%d_%d_%s_%s.nc", radarID, g.Azimuths, g.Gates,
		formatStep(g.AzimStep), formatStep(g.GateStep))
}

// formatStep always keeps a decimal point so 500 and 0.5 render as 500.0 and 0.5.
func formatStep(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Path returns where the artifact for radarID and g lives, whether or not it exists.
func (l *Locator) Path(radarID string, g grid.Geometry) string {
	return filepath.Join(l.Dir(), Key(radarID, g))
}

// Find returns the path of an existing artifact, or ErrCalibrationMissing.
func (l *Locator) Find(radarID string, g grid.Geometry) (string, error) {
	p := l.Path(radarID, g)
	if !l.fs.Exists(p) {
		return "", fmt.Errorf("%w: %s", ErrCalibrationMissing, p)
	}
	return p, nil
}

// List returns every calibration artifact in the cache, sorted by name.
func (l *Locator) List() ([]string, error) {
	return l.fs.Glob(filepath.Join(l.Dir(), "*.nc"))
}

// EnsureDir creates the calibration folder if needed.
func (l *Locator) EnsureDir() error {
	return l.fs.MkdirAll(l.Dir(), 0755)
}
