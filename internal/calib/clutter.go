package calib

import (
	"errors"
	"fmt"

	"github.com/banshee-data/bugtracker/internal/grid"
)

// ClutterCounter accumulates, over a calibration window, how often each cell
// of one scan family exceeds a reflectivity threshold. Cells that exceed it in
// at least a coverage fraction of the scans become clutter.
type ClutterCounter struct {
	name      string
	angles    []float64
	shape     []int
	threshold float64

	counts   []int
	scans    int
	excluded int
}

// NewClutterCounter starts a counter for a family with the given angles on g.
func NewClutterCounter(name string, angles []float64, g grid.Geometry, dbzThreshold float64) *ClutterCounter {
	shape := g.VolumeShape(len(angles))
	return &ClutterCounter{
		name:      name,
		angles:    append([]float64(nil), angles...),
		shape:     shape,
		threshold: dbzThreshold,
		counts:    make([]int, shape[0]*shape[1]*shape[2]),
	}
}

// Add counts the unmasked cells of v above the threshold.
func (c *ClutterCounter) Add(v *grid.Volume) error {
	if err := grid.CheckShape(c.name, c.shape, v.Shape()); err != nil {
		return err
	}
	for i, val := range v.Data.Elements {
		if !v.MaskedFlat(i) && val > c.threshold {
			c.counts[i]++
		}
	}
	c.scans++
	return nil
}

// Exclude records a scan that was skipped.
func (c *ClutterCounter) Exclude() { c.excluded++ }

// Scans returns how many scans were counted and how many were excluded.
func (c *ClutterCounter) Scans() (counted, excluded int) { return c.scans, c.excluded }

// Family thresholds the normalised counts at coverage and returns the result
// as a calibration family.
func (c *ClutterCounter) Family(coverage float64) (Family, error) {
	if c.scans == 0 {
		return Family{}, errors.New("no scans in calibration set")
	}
	if coverage <= 0 || coverage > 1 {
		return Family{}, fmt.Errorf("coverage must be in (0, 1], got %g", coverage)
	}

	vals := make([]int32, len(c.counts))
	for i, n := range c.counts {
		if float64(n)/float64(c.scans) >= coverage {
			vals[i] = 1
		}
	}
	m, err := grid.MaskFromValues(c.shape, vals)
	if err != nil {
		return Family{}, err
	}
	return Family{Name: c.name, Angles: append([]float64(nil), c.angles...), Clutter: m}, nil
}
