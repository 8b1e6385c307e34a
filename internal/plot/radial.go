// Package plot draws PPI images of single elevation scans and the zone slope
// diagnostic page for a detection pass.
package plot

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"time"

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/monitoring"
)

// Colour scale limits in dBZ.
const (
	MinDBZ = -10.0
	MaxDBZ = 40.0
)

// RadialPlotter writes PPI heat maps under plotDir/<radar_id>.
type RadialPlotter struct {
	plotDir    string
	maxRangeKm float64
	grid       grid.Geometry
	fs         fsutil.FileSystem

	// pixels is the raster resolution along each axis.
	pixels int
	size   vg.Length
}

// NewRadialPlotter returns a plotter drawing out to maxRangeKm.
func NewRadialPlotter(plotDir string, maxRangeKm float64, g grid.Geometry, fs fsutil.FileSystem) *RadialPlotter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &RadialPlotter{
		plotDir:    plotDir,
		maxRangeKm: maxRangeKm,
		grid:       g,
		fs:         fs,
		pixels:     400,
		size:       8 * vg.Inch,
	}
}

// Label names one elevation image, e.g. "raw_convol_0.5".
func Label(prefix, family string, angle float64) string {
	return fmt.Sprintf("%s_%s_%.1f", prefix, family, angle)
}

// Dir is where images for radarID are written.
func (p *RadialPlotter) Dir(radarID string) string {
	return filepath.Join(p.plotDir, radarID)
}

func (p *RadialPlotter) path(radarID, label string, scanTime time.Time, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", scanTime.UTC().Format("20060102_1504"), label, ext)
	return filepath.Join(p.Dir(radarID), name)
}

// PlotVolume draws every elevation of v and returns the files written.
func (p *RadialPlotter) PlotVolume(prefix, family, radarID string, scanTime time.Time, v *grid.Volume, angles []float64) ([]string, error) {
	if len(angles) != v.Elevations() {
		return nil, fmt.Errorf("%s has %d angles for %d elevations", family, len(angles), v.Elevations())
	}
	monitoring.Logf("plotting %s %s for %s", prefix, family, radarID)

	files := make([]string, 0, len(angles))
	for e, angle := range angles {
		path, err := p.PlotSlice(v.Level(e), Label(prefix, family, angle), radarID, scanTime)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

// PlotSlice draws one (azimuths, gates) slice. NaN cells are left blank.
func (p *RadialPlotter) PlotSlice(slice *sparse.DenseArray, label, radarID string, scanTime time.Time) (string, error) {
	if err := grid.CheckShape(label, p.grid.PlaneShape(), slice.Shape); err != nil {
		return "", err
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%s %s %s", radarID, label, scanTime.UTC().Format("2006-01-02 15:04 UTC"))
	pl.X.Label.Text = "East (km)"
	pl.Y.Label.Text = "North (km)"

	hm := plotter.NewHeatMap(newPPI(slice, p.grid, p.maxRangeKm, p.pixels), palette.Heat(16, 1))
	hm.Min, hm.Max = MinDBZ, MaxDBZ
	hm.NaN = color.Transparent
	hm.Underflow = color.Transparent
	hm.Overflow = color.White
	pl.Add(hm)
	pl.X.Min, pl.X.Max = -p.maxRangeKm, p.maxRangeKm
	pl.Y.Min, pl.Y.Max = -p.maxRangeKm, p.maxRangeKm

	wt, err := pl.WriterTo(p.size, p.size, "png")
	if err != nil {
		return "", fmt.Errorf("render %s: %w", label, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render %s: %w", label, err)
	}

	path := p.path(radarID, label, scanTime, "png")
	if err := writeFile(p.fs, path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(fs fsutil.FileSystem, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ppi resamples a polar slice onto a square east/north raster centred on
// the radar. It implements plotter.GridXYZ.
type ppi struct {
	slice    *sparse.DenseArray
	grid     grid.Geometry
	extentKm float64
	n        int
}

func newPPI(slice *sparse.DenseArray, g grid.Geometry, extentKm float64, n int) *ppi {
	return &ppi{slice: slice, grid: g, extentKm: extentKm, n: n}
}

func (p *ppi) Dims() (c, r int) { return p.n, p.n }

func (p *ppi) coord(i int) float64 {
	step := 2 * p.extentKm / float64(p.n)
	return -p.extentKm + (float64(i)+0.5)*step
}

func (p *ppi) X(c int) float64 { return p.coord(c) }
func (p *ppi) Y(r int) float64 { return p.coord(r) }

// Z looks up the polar cell under raster cell (c, r). Azimuth is a bearing
// clockwise from north.
func (p *ppi) Z(c, r int) float64 {
	x, y := p.X(c), p.Y(r)
	rangeKm := math.Hypot(x, y)
	if rangeKm > p.extentKm {
		return math.NaN()
	}
	gate := int(math.Floor((rangeKm*1000 - p.grid.GateOffset) / p.grid.GateStep))
	if gate < 0 || gate >= p.grid.Gates {
		return math.NaN()
	}
	bearing := math.Mod(math.Atan2(x, y)*180/math.Pi+360, 360)
	azim := int(math.Floor((bearing-p.grid.AzimOffset)/p.grid.AzimStep)) % p.grid.Azimuths
	if azim < 0 {
		azim += p.grid.Azimuths
	}
	return p.slice.Get(azim, gate)
}
