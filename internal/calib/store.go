package calib

import (
	"fmt"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/monitoring"
	"github.com/banshee-data/bugtracker/internal/ncio"
)

// Data is the geometry shared by every instrument format. It is read-only
// once loaded and safe to share between processing passes.
type Data struct {
	RadarID  string
	Grid     grid.Geometry
	Lats     *sparse.DenseArray
	Lons     *sparse.DenseArray
	Altitude *sparse.DenseArray

	// Start and Hours describe the calibration window, when recorded.
	Start string
	Hours float64
}

// Validate checks every geometry field against the grid.
func (d *Data) Validate() error {
	want := d.Grid.PlaneShape()
	for _, f := range []struct {
		name string
		arr  *sparse.DenseArray
	}{
		{"lats", d.Lats},
		{"lons", d.Lons},
		{"altitude", d.Altitude},
	} {
		if f.arr == nil {
			return fmt.Errorf("%s grid is missing", f.name)
		}
		if err := grid.CheckShape(f.name, want, f.arr.Shape); err != nil {
			return err
		}
	}
	return nil
}

// Family is the format-specific calibration of one scan strategy.
type Family struct {
	Name    string
	Angles  []float64
	Clutter *grid.Mask
}

// Validate checks the angle count and the clutter mask shape.
func (f Family) Validate(g grid.Geometry) error {
	if len(f.Angles) < 2 {
		return fmt.Errorf("%w: %d %s angles", ErrInsufficientAngles, len(f.Angles), f.Name)
	}
	if f.Clutter == nil {
		return fmt.Errorf("%s clutter mask is missing", f.Name)
	}
	return grid.CheckShape(f.Name+"_clutter", g.VolumeShape(len(f.Angles)), f.Clutter.Shape())
}

// IrisData adds the CONVOL and DOPVOL families to the universal geometry.
type IrisData struct {
	*Data
	Convol Family
	Dopvol Family
}

// Store loads calibration artifacts found by a Locator.
type Store struct {
	loc *Locator
}

// NewStore returns a Store reading through loc.
func NewStore(loc *Locator) *Store {
	return &Store{loc: loc}
}

// Load reads and validates the universal calibration for radarID on g.
// Nothing is returned unless every field matches the grid.
func (s *Store) Load(radarID string, g grid.Geometry) (*Data, error) {
	var d *Data
	err := s.withFile(radarID, g, func(f *cdf.File) error {
		var err error
		d, err = loadUniversal(f, radarID, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// LoadIris reads and validates the universal calibration and both IRIS scan
// families. Both phases must pass before anything is returned.
func (s *Store) LoadIris(radarID string, g grid.Geometry) (*IrisData, error) {
	var out *IrisData
	err := s.withFile(radarID, g, func(f *cdf.File) error {
		d, err := loadUniversal(f, radarID, g)
		if err != nil {
			return err
		}
		convol, err := loadFamily(f, "convol", g)
		if err != nil {
			return err
		}
		dopvol, err := loadFamily(f, "dopvol", g)
		if err != nil {
			return err
		}
		out = &IrisData{Data: d, Convol: convol, Dopvol: dopvol}
		return nil
	})
	if err != nil {
		return nil, err
	}
	monitoring.Logf("calibration loaded for %s: %d convol angles, %d dopvol angles",
		radarID, len(out.Convol.Angles), len(out.Dopvol.Angles))
	return out, nil
}

func (s *Store) withFile(radarID string, g grid.Geometry, fn func(*cdf.File) error) error {
	if err := g.Validate(); err != nil {
		return err
	}
	path, err := s.loc.Find(radarID, g)
	if err != nil {
		return err
	}
	rf, err := s.loc.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open calibration: %w", err)
	}
	defer rf.Close()

	f, err := cdf.Open(rf)
	if err != nil {
		return fmt.Errorf("read calibration %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		return fmt.Errorf("calibration %s: %w", path, err)
	}
	return nil
}

func loadUniversal(f *cdf.File, radarID string, g grid.Geometry) (*Data, error) {
	d := &Data{RadarID: radarID, Grid: g}
	var err error
	if d.Lats, err = ncio.ReadFloat(f, "lats"); err != nil {
		return nil, err
	}
	if d.Lons, err = ncio.ReadFloat(f, "lons"); err != nil {
		return nil, err
	}
	if d.Altitude, err = ncio.ReadFloat(f, "altitude"); err != nil {
		return nil, err
	}
	d.Start, _ = ncio.StringAttr(f.Header, "", "calib_start")
	d.Hours, _ = ncio.FloatAttr(f.Header, "", "calib_hours")

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func loadFamily(f *cdf.File, name string, g grid.Geometry) (Family, error) {
	angles, err := ncio.ReadFloat(f, name+"_angles")
	if err != nil {
		return Family{}, err
	}
	fam := Family{Name: name, Angles: angles.Elements}
	if len(fam.Angles) < 2 {
		return Family{}, fmt.Errorf("%w: %d %s angles", ErrInsufficientAngles, len(fam.Angles), name)
	}

	vals, shape, err := ncio.ReadInt(f, name+"_clutter")
	if err != nil {
		return Family{}, err
	}
	if err := grid.CheckShape(name+"_clutter", g.VolumeShape(len(fam.Angles)), shape); err != nil {
		return Family{}, err
	}
	if fam.Clutter, err = grid.MaskFromValues(shape, vals); err != nil {
		return Family{}, err
	}
	return fam, nil
}
