package calib

import (
	"fmt"

	"github.com/ctessum/cdf"

	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/ncio"
	"github.com/banshee-data/bugtracker/internal/units"
)

// Write exports d, and any scan families, to path as a calibration artifact.
// Everything is validated before the file is created.
func Write(fs fsutil.FileSystem, path string, d *Data, families ...Family) error {
	if err := d.Validate(); err != nil {
		return err
	}
	for _, fam := range families {
		if err := fam.Validate(d.Grid); err != nil {
			return err
		}
	}

	dims := []string{"azims", "gates"}
	lengths := []int{d.Grid.Azimuths, d.Grid.Gates}
	for _, fam := range families {
		dims = append(dims, fam.Name+"_angles")
		lengths = append(lengths, len(fam.Angles))
	}

	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "radar_id", d.RadarID)
	if d.Start != "" {
		h.AddAttribute("", "calib_start", d.Start)
	}
	h.AddAttribute("", "calib_hours", []float64{d.Hours})
	h.AddAttribute("", "azim_offset", []float64{d.Grid.AzimOffset})
	h.AddAttribute("", "gate_offset", []float64{d.Grid.GateOffset})
	h.AddAttribute("", "azim_step", []float64{d.Grid.AzimStep})
	h.AddAttribute("", "gate_step", []float64{d.Grid.GateStep})

	plane := []string{"azims", "gates"}
	h.AddVariable("lats", plane, ncio.Double)
	h.AddAttribute("lats", "units", units.DegreesNorth)
	h.AddVariable("lons", plane, ncio.Double)
	h.AddAttribute("lons", "units", units.DegreesEast)
	h.AddVariable("altitude", plane, ncio.Double)
	h.AddAttribute("altitude", "units", units.Meters)
	for _, fam := range families {
		h.AddVariable(fam.Name+"_angles", []string{fam.Name + "_angles"}, ncio.Double)
		h.AddAttribute(fam.Name+"_angles", "units", units.Degrees)
		// 0 is no clutter, 1 is clutter.
		h.AddVariable(fam.Name+"_clutter", []string{fam.Name + "_angles", "azims", "gates"}, ncio.Int)
	}
	h.Define()

	ff, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create calibration: %w", err)
	}
	if err := writeBody(ff, h, d, families); err != nil {
		ff.Close()
		fs.Remove(path)
		return fmt.Errorf("write calibration %s: %w", path, err)
	}
	return ff.Close()
}

func writeBody(ff fsutil.File, h *cdf.Header, d *Data, families []Family) error {
	f, err := cdf.Create(ff, h)
	if err != nil {
		return err
	}
	if err := ncio.Write(f, "lats", d.Lats.Elements); err != nil {
		return err
	}
	if err := ncio.Write(f, "lons", d.Lons.Elements); err != nil {
		return err
	}
	if err := ncio.Write(f, "altitude", d.Altitude.Elements); err != nil {
		return err
	}
	for _, fam := range families {
		if err := ncio.Write(f, fam.Name+"_angles", fam.Angles); err != nil {
			return err
		}
		if err := ncio.Write(f, fam.Name+"_clutter", fam.Clutter.Values()); err != nil {
			return err
		}
	}
	return nil
}
