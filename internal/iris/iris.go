// Package iris adapts decoded IRIS scan sets to the polar grid. A scan set is
// read from a NetCDF dump holding the CONVOL reflectivity sweeps and the
// DOPVOL reflectivity, power, velocity and width sweeps, already regularised
// onto the grid.
package iris

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"

	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/ncio"
	"github.com/banshee-data/bugtracker/internal/units"
)

// Grid is the standard IRIS regularisation: 720 rays of 0.5 degrees by 512
// gates of 500 m.
func Grid() grid.Geometry {
	return grid.Geometry{Azimuths: 720, Gates: 512, AzimStep: 0.5, GateStep: 500.0}
}

// Metadata identifies the radar and scan.
type Metadata struct {
	RadarID   string
	Name      string
	Latitude  float64
	Longitude float64
	ScanTime  time.Time
}

// Data is one IRIS scan set on the grid. Volumes are owned by whichever
// pipeline stage currently holds the Data.
type Data struct {
	Meta Metadata

	ConvolElevs []float64
	DopvolElevs []float64

	Convol        *grid.Volume
	Dopvol        *grid.Volume
	TotalPower    *grid.Volume
	Velocity      *grid.Volume
	SpectrumWidth *grid.Volume
}

// Validate checks every volume against g and the elevation lists.
func (d *Data) Validate(g grid.Geometry) error {
	type field struct {
		name  string
		v     *grid.Volume
		elevs int
	}
	for _, f := range []field{
		{"convol", d.Convol, len(d.ConvolElevs)},
		{"dopvol", d.Dopvol, len(d.DopvolElevs)},
		{"total_power", d.TotalPower, len(d.DopvolElevs)},
		{"velocity", d.Velocity, len(d.DopvolElevs)},
		{"spectrum_width", d.SpectrumWidth, len(d.DopvolElevs)},
	} {
		if f.v == nil {
			return fmt.Errorf("%s volume is missing", f.name)
		}
		if err := grid.CheckShape(f.name, g.VolumeShape(f.elevs), f.v.Shape()); err != nil {
			return err
		}
	}
	return nil
}

var dopvolFields = []string{"dopvol", "total_power", "velocity", "spectrum_width"}

// List returns the scan set dumps in dir, sorted by name.
func List(fs fsutil.FileSystem, dir string) ([]string, error) {
	return fs.Glob(filepath.Join(dir, "*.nc"))
}

// Load reads one scan set dump and checks it against g. Cells holding NaN or
// the variable's _FillValue are masked and read back as NaN.
func Load(fs fsutil.FileSystem, path string, g grid.Geometry) (*Data, error) {
	rf, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	f, err := cdf.Open(rf)
	if err != nil {
		return nil, fmt.Errorf("read iris set %s: %w", path, err)
	}

	d, err := load(f)
	if err != nil {
		return nil, fmt.Errorf("read iris set %s: %w", path, err)
	}
	if err := d.Validate(g); err != nil {
		return nil, fmt.Errorf("iris set %s: %w", path, err)
	}
	return d, nil
}

func load(f *cdf.File) (*Data, error) {
	h := f.Header
	d := &Data{}
	d.Meta.RadarID, _ = ncio.StringAttr(h, "", "radar_id")
	d.Meta.Name, _ = ncio.StringAttr(h, "", "name")
	d.Meta.Latitude, _ = ncio.FloatAttr(h, "", "latitude")
	d.Meta.Longitude, _ = ncio.FloatAttr(h, "", "longitude")
	stamp, _ := ncio.StringAttr(h, "", "datetime")
	t, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return nil, fmt.Errorf("invalid datetime attribute %q: %w", stamp, err)
	}
	d.Meta.ScanTime = t

	elevs, err := ncio.ReadFloat(f, "convol_elevs")
	if err != nil {
		return nil, err
	}
	d.ConvolElevs = elevs.Elements
	if elevs, err = ncio.ReadFloat(f, "dopvol_elevs"); err != nil {
		return nil, err
	}
	d.DopvolElevs = elevs.Elements

	if d.Convol, err = readVolume(f, "convol"); err != nil {
		return nil, err
	}
	vols := make([]*grid.Volume, len(dopvolFields))
	for i, name := range dopvolFields {
		if vols[i], err = readVolume(f, name); err != nil {
			return nil, err
		}
	}
	d.Dopvol, d.TotalPower, d.Velocity, d.SpectrumWidth = vols[0], vols[1], vols[2], vols[3]
	return d, nil
}

func readVolume(f *cdf.File, name string) (*grid.Volume, error) {
	data, err := ncio.ReadFloat(f, name)
	if err != nil {
		return nil, err
	}
	fill, hasFill := ncio.FloatAttr(f.Header, name, "_FillValue")

	v, err := grid.VolumeFrom(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	azims, gates := data.Shape[1], data.Shape[2]
	for i, val := range data.Elements {
		if math.IsNaN(val) || (hasFill && val == fill) {
			e, rem := i/(azims*gates), i%(azims*gates)
			v.Set(math.NaN(), e, rem/gates, rem%gates)
			v.MaskCell(e, rem/gates, rem%gates)
		}
	}
	return v, nil
}

const stampLayout = "200601021504"

// FillValue marks masked cells in written dumps.
const FillValue = -9999.0

// Save writes d as a scan set dump. Masked cells are written as FillValue.
func Save(fs fsutil.FileSystem, path string, d *Data, g grid.Geometry) error {
	if err := d.Validate(g); err != nil {
		return err
	}

	h := cdf.NewHeader(
		[]string{"convol_elevs", "dopvol_elevs", "azims", "gates"},
		[]int{len(d.ConvolElevs), len(d.DopvolElevs), g.Azimuths, g.Gates})
	h.AddAttribute("", "radar_id", d.Meta.RadarID)
	h.AddAttribute("", "name", d.Meta.Name)
	h.AddAttribute("", "latitude", []float64{d.Meta.Latitude})
	h.AddAttribute("", "longitude", []float64{d.Meta.Longitude})
	h.AddAttribute("", "datetime", d.Meta.ScanTime.UTC().Format(stampLayout))

	h.AddVariable("convol_elevs", []string{"convol_elevs"}, ncio.Double)
	h.AddVariable("dopvol_elevs", []string{"dopvol_elevs"}, ncio.Double)
	h.AddVariable("convol", []string{"convol_elevs", "azims", "gates"}, ncio.Double)
	h.AddAttribute("convol", "units", units.DBZ)
	h.AddAttribute("convol", "_FillValue", []float64{FillValue})
	fieldUnits := map[string]string{
		"dopvol":         units.DBZ,
		"total_power":    units.DBZ,
		"velocity":       units.MetersPerSecond,
		"spectrum_width": units.MetersPerSecond,
	}
	for _, name := range dopvolFields {
		h.AddVariable(name, []string{"dopvol_elevs", "azims", "gates"}, ncio.Double)
		h.AddAttribute(name, "units", fieldUnits[name])
		h.AddAttribute(name, "_FillValue", []float64{FillValue})
	}
	h.Define()

	ff, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return err
	}

	writes := []struct {
		name string
		data interface{}
	}{
		{"convol_elevs", d.ConvolElevs},
		{"dopvol_elevs", d.DopvolElevs},
		{"convol", d.Convol.Filled(FillValue)},
		{"dopvol", d.Dopvol.Filled(FillValue)},
		{"total_power", d.TotalPower.Filled(FillValue)},
		{"velocity", d.Velocity.Filled(FillValue)},
		{"spectrum_width", d.SpectrumWidth.Filled(FillValue)},
	}
	for _, w := range writes {
		if err := ncio.Write(f, w.name, w.data); err != nil {
			return err
		}
	}
	return nil
}

// NewData returns an empty, unmasked scan set on g.
func NewData(meta Metadata, g grid.Geometry, convolElevs, dopvolElevs []float64) *Data {
	return &Data{
		Meta:          meta,
		ConvolElevs:   append([]float64(nil), convolElevs...),
		DopvolElevs:   append([]float64(nil), dopvolElevs...),
		Convol:        grid.NewVolume(len(convolElevs), g),
		Dopvol:        grid.NewVolume(len(dopvolElevs), g),
		TotalPower:    grid.NewVolume(len(dopvolElevs), g),
		Velocity:      grid.NewVolume(len(dopvolElevs), g),
		SpectrumWidth: grid.NewVolume(len(dopvolElevs), g),
	}
}
