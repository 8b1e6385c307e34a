// Package units provides the unit names written to output variables and the
// range/height conversions used on the polar grid.
package units

import "math"

// Unit names written as the "units" attribute of output variables.
const (
	DBZ             = "dBZ"
	MetersPerSecond = "m/s"
	Degrees         = "degrees"
	DegreesNorth    = "degrees_north"
	DegreesEast     = "degrees_east"
	Meters          = "m"
	Count           = "count"
)

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371000.0

// GateRangeKm converts a gate index to its distance from the radar in km.
// gateStep and gateOffset are in meters.
func GateRangeKm(gate int, gateStep, gateOffset float64) float64 {
	return (gateOffset + float64(gate)*gateStep) * 0.001
}

// BeamHeightKm approximates the beam height above the radar using
// h = r*tan(elevation), ignoring Earth curvature and refraction.
func BeamHeightKm(rangeKm, elevationDeg float64) float64 {
	return rangeKm * math.Tan(elevationDeg*math.Pi/180.0)
}

// Destination returns the latitude and longitude reached by travelling
// distM meters from (lat, lon) along bearingDeg on a spherical Earth.
func Destination(lat, lon, bearingDeg, distM float64) (float64, float64) {
	phi1 := lat * math.Pi / 180.0
	lambda1 := lon * math.Pi / 180.0
	theta := bearingDeg * math.Pi / 180.0
	delta := distM / EarthRadiusM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	return phi2 * 180.0 / math.Pi, lambda2 * 180.0 / math.Pi
}
