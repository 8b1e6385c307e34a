// Package grid describes the fixed polar grid shared by every per-radar array,
// and the masked volumes and boolean masks laid out on it.
package grid

import (
	"fmt"
	"strings"
)

// Geometry is the polar grid all arrays for one radar must conform to.
// Azimuth angles are in degrees and gate distances in meters.
type Geometry struct {
	Azimuths   int
	Gates      int
	AzimStep   float64
	GateStep   float64
	AzimOffset float64
	GateOffset float64
}

// NewGeometry returns a Geometry with the given extents and spacing.
func NewGeometry(azimuths, gates int, azimStep, gateStep float64) (Geometry, error) {
	g := Geometry{Azimuths: azimuths, Gates: gates, AzimStep: azimStep, GateStep: gateStep}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate checks that both extents and both steps are positive.
func (g Geometry) Validate() error {
	if g.Azimuths <= 0 {
		return fmt.Errorf("grid azimuths must be positive, got %d", g.Azimuths)
	}
	if g.Gates <= 0 {
		return fmt.Errorf("grid gates must be positive, got %d", g.Gates)
	}
	if !(g.AzimStep > 0) {
		return fmt.Errorf("grid azim_step must be positive, got %g", g.AzimStep)
	}
	if !(g.GateStep > 0) {
		return fmt.Errorf("grid gate_step must be positive, got %g", g.GateStep)
	}
	return nil
}

// PlaneShape is the shape of a 2-D product on this grid.
func (g Geometry) PlaneShape() []int {
	return []int{g.Azimuths, g.Gates}
}

// VolumeShape is the shape of a volume with the given number of elevation scans.
func (g Geometry) VolumeShape(elevations int) []int {
	return []int{elevations, g.Azimuths, g.Gates}
}

// Cells is the number of cells in one elevation plane.
func (g Geometry) Cells() int {
	return g.Azimuths * g.Gates
}

// Ranges returns the distance in meters to the start of every gate.
func (g Geometry) Ranges() []float64 {
	out := make([]float64, g.Gates)
	for i := range out {
		out[i] = g.GateOffset + float64(i)*g.GateStep
	}
	return out
}

// AzimuthAngles returns the angle in degrees of every azimuth ray.
func (g Geometry) AzimuthAngles() []float64 {
	out := make([]float64, g.Azimuths)
	for i := range out {
		out[i] = g.AzimOffset + float64(i)*g.AzimStep
	}
	return out
}

func (g Geometry) String() string {
	var b strings.Builder
	b.WriteString("Geometry:\n")
	fmt.Fprintf(&b, "gates: %d\n", g.Gates)
	fmt.Fprintf(&b, "azims: %d\n", g.Azimuths)
	fmt.Fprintf(&b, "gate_step: %g m\n", g.GateStep)
	fmt.Fprintf(&b, "azim_step: %g deg\n", g.AzimStep)
	fmt.Fprintf(&b, "gate_offset: %g m\n", g.GateOffset)
	fmt.Fprintf(&b, "azim_offset: %g deg\n", g.AzimOffset)
	return b.String()
}
