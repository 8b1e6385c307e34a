package output

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/ncio"
	"github.com/banshee-data/bugtracker/internal/units"
)

// Dataset is the in-memory form of an output file.
type Dataset struct {
	RadarID   string
	Name      string
	FileType  string
	DateTime  string
	Version   string
	Latitude  float64
	Longitude float64

	DBZElevs      []float64
	DBZFiltered   *sparse.DenseArray
	DBZUnfiltered *sparse.DenseArray
	Joint         *sparse.DenseArray

	// Doppler fields are present only for formats that carry them.
	DopElevs      []float64
	TotalPower    *sparse.DenseArray
	Velocity      *sparse.DenseArray
	SpectrumWidth *sparse.DenseArray

	// TargetID is nil until appended.
	TargetID []int32
}

// ScanTime parses the datetime attribute.
func (d *Dataset) ScanTime() (time.Time, error) {
	return time.Parse(DateTimeLayout, d.DateTime)
}

// Read loads an output file from the OS filesystem.
func Read(path string) (*Dataset, error) {
	return ReadFS(fsutil.OSFileSystem{}, path)
}

// ReadFS loads an output file through fs.
func ReadFS(fs fsutil.FileSystem, path string) (*Dataset, error) {
	rf, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	f, err := cdf.Open(rf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ds, err := readDataset(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

func readDataset(f *cdf.File) (*Dataset, error) {
	h := f.Header
	ds := &Dataset{}
	ds.RadarID, _ = ncio.StringAttr(h, "", "radar_id")
	ds.Name, _ = ncio.StringAttr(h, "", "name")
	ds.FileType, _ = ncio.StringAttr(h, "", "filetype")
	ds.DateTime, _ = ncio.StringAttr(h, "", "datetime")
	ds.Version, _ = ncio.StringAttr(h, "", "version")
	ds.Latitude, _ = ncio.FloatAttr(h, "", "latitude")
	ds.Longitude, _ = ncio.FloatAttr(h, "", "longitude")

	elevs, err := ncio.ReadFloat(f, "dbz_elevs")
	if err != nil {
		return nil, err
	}
	ds.DBZElevs = elevs.Elements
	if ds.DBZFiltered, err = ncio.ReadFloat(f, "dbz_filtered"); err != nil {
		return nil, err
	}
	if ds.DBZUnfiltered, err = ncio.ReadFloat(f, "dbz_unfiltered"); err != nil {
		return nil, err
	}
	if ds.Joint, err = ncio.ReadFloat(f, "dbz_joint"); err != nil {
		return nil, err
	}

	if ncio.HasVariable(f, "dop_elevs") {
		dop, err := ncio.ReadFloat(f, "dop_elevs")
		if err != nil {
			return nil, err
		}
		ds.DopElevs = dop.Elements
		if ds.TotalPower, err = ncio.ReadFloat(f, "total_power"); err != nil {
			return nil, err
		}
		if ds.Velocity, err = ncio.ReadFloat(f, "velocity"); err != nil {
			return nil, err
		}
		if ds.SpectrumWidth, err = ncio.ReadFloat(f, "spectrum_width"); err != nil {
			return nil, err
		}
	}

	if ncio.HasVariable(f, "target_id") {
		if ds.TargetID, _, err = ncio.ReadInt(f, "target_id"); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (d *Dataset) header() *cdf.Header {
	azims, gates := d.Joint.Shape[0], d.Joint.Shape[1]
	names := []string{"dbz_elevs", "azims", "gates"}
	lengths := []int{len(d.DBZElevs), azims, gates}
	if d.DopElevs != nil {
		names = append(names, "dop_elevs")
		lengths = append(lengths, len(d.DopElevs))
	}

	h := cdf.NewHeader(names, lengths)
	h.AddAttribute("", "latitude", []float64{d.Latitude})
	h.AddAttribute("", "longitude", []float64{d.Longitude})
	h.AddAttribute("", "radar_id", d.RadarID)
	h.AddAttribute("", "datetime", d.DateTime)
	h.AddAttribute("", "name", d.Name)
	h.AddAttribute("", "filetype", d.FileType)
	if d.Version != "" {
		h.AddAttribute("", "version", d.Version)
	}

	dbz := []string{"dbz_elevs", "azims", "gates"}
	h.AddVariable("dbz_elevs", []string{"dbz_elevs"}, ncio.Double)
	h.AddAttribute("dbz_elevs", "units", units.Degrees)
	h.AddVariable("dbz_filtered", dbz, ncio.Double)
	h.AddAttribute("dbz_filtered", "units", units.DBZ)
	h.AddVariable("dbz_unfiltered", dbz, ncio.Double)
	h.AddAttribute("dbz_unfiltered", "units", units.DBZ)
	h.AddVariable("dbz_joint", []string{"azims", "gates"}, ncio.Double)
	h.AddAttribute("dbz_joint", "units", units.DBZ)

	if d.DopElevs != nil {
		dop := []string{"dop_elevs", "azims", "gates"}
		h.AddVariable("dop_elevs", []string{"dop_elevs"}, ncio.Double)
		h.AddAttribute("dop_elevs", "units", units.Degrees)
		h.AddVariable("total_power", dop, ncio.Double)
		h.AddAttribute("total_power", "units", units.DBZ)
		h.AddVariable("velocity", dop, ncio.Double)
		h.AddAttribute("velocity", "units", units.MetersPerSecond)
		h.AddVariable("spectrum_width", dop, ncio.Double)
		h.AddAttribute("spectrum_width", "units", units.MetersPerSecond)
	}

	if d.TargetID != nil {
		h.AddVariable("target_id", dbz, ncio.Int)
		h.AddAttribute("target_id", "description", "0 none, 1 clutter, 2 rain, 3 bugs")
	}
	h.Define()
	return h
}

func (d *Dataset) writeBody(f *cdf.File) error {
	vars := []struct {
		name string
		data interface{}
	}{
		{"dbz_elevs", d.DBZElevs},
		{"dbz_filtered", d.DBZFiltered.Elements},
		{"dbz_unfiltered", d.DBZUnfiltered.Elements},
		{"dbz_joint", d.Joint.Elements},
	}
	if d.DopElevs != nil {
		vars = append(vars, []struct {
			name string
			data interface{}
		}{
			{"dop_elevs", d.DopElevs},
			{"total_power", d.TotalPower.Elements},
			{"velocity", d.Velocity.Elements},
			{"spectrum_width", d.SpectrumWidth.Elements},
		}...)
	}
	if d.TargetID != nil {
		vars = append(vars, struct {
			name string
			data interface{}
		}{"target_id", d.TargetID})
	}

	for _, v := range vars {
		if err := ncio.Write(f, v.name, v.data); err != nil {
			return err
		}
	}
	return nil
}

// writeDataset writes d to a temporary sibling of path and renames it into
// place, so a failed write never leaves a partial file at path.
func writeDataset(fs fsutil.FileSystem, path string, d *Dataset) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	ff, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	f, err := cdf.Create(ff, d.header())
	if err == nil {
		err = d.writeBody(f)
	}
	if cerr := ff.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Join(fmt.Errorf("write %s: %w", path, err), fs.Remove(tmp))
	}
	return fs.Rename(tmp, path)
}
