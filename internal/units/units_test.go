package units

import (
	"math"
	"testing"
)

func TestGateRangeKm(t *testing.T) {
	tests := []struct {
		gate   int
		step   float64
		offset float64
		want   float64
	}{
		{0, 500, 0, 0},
		{1, 500, 0, 0.5},
		{300, 500, 0, 150},
		{10, 250, 1000, 3.5},
	}
	for _, tt := range tests {
		if got := GateRangeKm(tt.gate, tt.step, tt.offset); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("GateRangeKm(%d, %g, %g) = %g, want %g", tt.gate, tt.step, tt.offset, got, tt.want)
		}
	}
}

func TestBeamHeightKm(t *testing.T) {
	if got := BeamHeightKm(100, 0); got != 0 {
		t.Errorf("zero elevation should give zero height, got %g", got)
	}
	if got := BeamHeightKm(10, 45); math.Abs(got-10) > 1e-9 {
		t.Errorf("45 degrees at 10 km = %g, want 10", got)
	}
	if got := BeamHeightKm(10, -0.5); got >= 0 {
		t.Errorf("negative elevation should give negative height, got %g", got)
	}
}

func TestDestination(t *testing.T) {
	// Zero distance is the origin.
	lat, lon := Destination(45.5, -73.6, 90, 0)
	if math.Abs(lat-45.5) > 1e-12 || math.Abs(lon+73.6) > 1e-12 {
		t.Errorf("zero distance moved to (%g, %g)", lat, lon)
	}

	// Due north by one degree of arc.
	oneDeg := EarthRadiusM * math.Pi / 180.0
	lat, lon = Destination(0, 0, 0, oneDeg)
	if math.Abs(lat-1) > 1e-9 || math.Abs(lon) > 1e-9 {
		t.Errorf("north one degree = (%g, %g), want (1, 0)", lat, lon)
	}

	// Due east along the equator.
	lat, lon = Destination(0, 10, 90, oneDeg)
	if math.Abs(lat) > 1e-9 || math.Abs(lon-11) > 1e-9 {
		t.Errorf("east one degree = (%g, %g), want (0, 11)", lat, lon)
	}
}
