package calib

import (
	"github.com/ctessum/sparse"

	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/units"
)

// FlatGeometry builds the universal calibration for a radar at (lat, lon)
// with antenna height heightM by projecting every gate centre along its
// azimuth. Terrain is not modelled, so altitude is the antenna height everywhere.
func FlatGeometry(radarID string, g grid.Geometry, lat, lon, heightM float64) *Data {
	d := &Data{
		RadarID:  radarID,
		Grid:     g,
		Lats:     sparse.ZerosDense(g.Azimuths, g.Gates),
		Lons:     sparse.ZerosDense(g.Azimuths, g.Gates),
		Altitude: sparse.ZerosDense(g.Azimuths, g.Gates),
	}

	ranges := g.Ranges()
	for a, azim := range g.AzimuthAngles() {
		bearing := azim + 0.5*g.AzimStep
		for i, r := range ranges {
			gLat, gLon := units.Destination(lat, lon, bearing, r+0.5*g.GateStep)
			d.Lats.Set(gLat, a, i)
			d.Lons.Set(gLon, a, i)
			d.Altitude.Set(heightM, a, i)
		}
	}
	return d
}
