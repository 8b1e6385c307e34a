package grid

import (
	"fmt"
	"math"
	"slices"

	"github.com/ctessum/sparse"
)

// Volume is a masked 3-D array of physical values with shape
// (elevations, azimuths, gates). The mask layer flags invalid samples and
// grows monotonically; nothing in this repository clears a masked cell.
//
// A Volume is owned by one pipeline stage at a time.
type Volume struct {
	Data *sparse.DenseArray
	mask []bool
}

// NewVolume returns a zero-valued, unmasked volume on g.
func NewVolume(elevations int, g Geometry) *Volume {
	data := sparse.ZerosDense(elevations, g.Azimuths, g.Gates)
	return &Volume{Data: data, mask: make([]bool, len(data.Elements))}
}

// VolumeFrom wraps data with an optional mask. A nil mask means no cell is masked.
func VolumeFrom(data *sparse.DenseArray, mask *Mask) (*Volume, error) {
	if len(data.Shape) != 3 {
		return nil, fmt.Errorf("volume must be 3D, got shape %v", data.Shape)
	}
	if n := product(data.Shape); n != len(data.Elements) {
		return nil, fmt.Errorf("volume dims are %d but array length is %d", n, len(data.Elements))
	}
	v := &Volume{Data: data, mask: make([]bool, len(data.Elements))}
	if mask != nil {
		if err := v.SetMask(mask); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Shape returns a copy of the volume shape.
func (v *Volume) Shape() []int { return slices.Clone(v.Data.Shape) }

// Elevations is the number of elevation scans.
func (v *Volume) Elevations() int { return v.Data.Shape[0] }

func (v *Volume) index(e, a, g int) int {
	return (e*v.Data.Shape[1]+a)*v.Data.Shape[2] + g
}

// At returns the value at (e, a, g) and whether it is masked.
func (v *Volume) At(e, a, g int) (float64, bool) {
	i := v.index(e, a, g)
	return v.Data.Elements[i], v.mask[i]
}

// Set assigns the value at (e, a, g) without touching the mask.
func (v *Volume) Set(val float64, e, a, g int) {
	v.Data.Elements[v.index(e, a, g)] = val
}

// MaskCell flags (e, a, g) as invalid.
func (v *Volume) MaskCell(e, a, g int) {
	v.mask[v.index(e, a, g)] = true
}

// MaskedFlat reports whether the i-th cell in row-major order is masked.
func (v *Volume) MaskedFlat(i int) bool { return v.mask[i] }

// MaskLayer returns a copy of the current mask.
func (v *Volume) MaskLayer() *Mask {
	return &Mask{shape: v.Shape(), cells: slices.Clone(v.mask)}
}

// SetMask replaces the mask layer. The mask shape must equal the volume shape.
func (v *Volume) SetMask(m *Mask) error {
	if err := CheckShape("mask", v.Data.Shape, m.shape); err != nil {
		return err
	}
	v.mask = slices.Clone(m.cells)
	return nil
}

// MaskedCount returns the number of masked cells.
func (v *Volume) MaskedCount() int {
	n := 0
	for _, m := range v.mask {
		if m {
			n++
		}
	}
	return n
}

// Filled returns the row-major values with masked cells replaced by fill.
func (v *Volume) Filled(fill float64) []float64 {
	out := slices.Clone(v.Data.Elements)
	for i, m := range v.mask {
		if m {
			out[i] = fill
		}
	}
	return out
}

// Level returns elevation e as a 2-D (azimuths, gates) array with masked
// cells set to NaN.
func (v *Volume) Level(e int) *sparse.DenseArray {
	azims, gates := v.Data.Shape[1], v.Data.Shape[2]
	out := sparse.ZerosDense(azims, gates)
	start := e * azims * gates
	for i := range out.Elements {
		if v.mask[start+i] {
			out.Elements[i] = math.NaN()
			continue
		}
		out.Elements[i] = v.Data.Elements[start+i]
	}
	return out
}

// Clone returns a deep copy of the values and the mask.
func (v *Volume) Clone() *Volume {
	data := sparse.ZerosDense(v.Data.Shape...)
	copy(data.Elements, v.Data.Elements)
	return &Volume{Data: data, mask: slices.Clone(v.mask)}
}

// ColumnMax reduces over elevations, returning the largest unmasked value in
// each (azimuth, gate) column. Columns with no unmasked value are NaN.
func (v *Volume) ColumnMax() *sparse.DenseArray {
	elevs, azims, gates := v.Data.Shape[0], v.Data.Shape[1], v.Data.Shape[2]
	out := sparse.ZerosDense(azims, gates)
	plane := azims * gates
	for i := 0; i < plane; i++ {
		best := math.NaN()
		for e := 0; e < elevs; e++ {
			j := e*plane + i
			if v.mask[j] {
				continue
			}
			if val := v.Data.Elements[j]; math.IsNaN(best) || val > best {
				best = val
			}
		}
		out.Elements[i] = best
	}
	return out
}
