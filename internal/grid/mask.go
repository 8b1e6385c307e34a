package grid

import (
	"fmt"
	"slices"
)

// Mask is a boolean volume of shape (elevations, azimuths, gates) stored in
// row-major order. True marks a cell to be excluded.
type Mask struct {
	shape []int
	cells []bool
}

// NewMask returns an all-false mask of shape (elevations, azimuths, gates).
func NewMask(elevations, azimuths, gates int) *Mask {
	return &Mask{
		shape: []int{elevations, azimuths, gates},
		cells: make([]bool, elevations*azimuths*gates),
	}
}

// MaskFromValues builds a mask from integer-coded booleans, any non-zero value is true.
func MaskFromValues(shape []int, vals []int32) (*Mask, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("mask must be 3D, got shape %v", shape)
	}
	if n := product(shape); n != len(vals) {
		return nil, fmt.Errorf("mask dims are %d but array length is %d", n, len(vals))
	}
	m := &Mask{shape: slices.Clone(shape), cells: make([]bool, len(vals))}
	for i, v := range vals {
		m.cells[i] = v != 0
	}
	return m, nil
}

// Shape returns a copy of the mask shape.
func (m *Mask) Shape() []int { return slices.Clone(m.shape) }

// Len is the total number of cells.
func (m *Mask) Len() int { return len(m.cells) }

func (m *Mask) index(e, a, g int) int {
	return (e*m.shape[1]+a)*m.shape[2] + g
}

// At reports whether cell (e, a, g) is set.
func (m *Mask) At(e, a, g int) bool { return m.cells[m.index(e, a, g)] }

// Set assigns cell (e, a, g).
func (m *Mask) Set(v bool, e, a, g int) { m.cells[m.index(e, a, g)] = v }

// Flat reports whether the i-th cell in row-major order is set.
func (m *Mask) Flat(i int) bool { return m.cells[i] }

// SetBlock marks every cell with azimuth in [aMin, aMax) and gate in
// [gMin, gMax) on every elevation.
func (m *Mask) SetBlock(aMin, aMax, gMin, gMax int) {
	for e := 0; e < m.shape[0]; e++ {
		for a := aMin; a < aMax; a++ {
			row := m.index(e, a, 0)
			for g := gMin; g < gMax; g++ {
				m.cells[row+g] = true
			}
		}
	}
}

// Count returns the number of set cells.
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// Values returns the mask as 0/1 integers for serialization.
func (m *Mask) Values() []int32 {
	out := make([]int32, len(m.cells))
	for i, c := range m.cells {
		if c {
			out[i] = 1
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	return &Mask{shape: slices.Clone(m.shape), cells: slices.Clone(m.cells)}
}

// Or returns the elementwise union of m and other. Shapes must match.
func (m *Mask) Or(other *Mask) (*Mask, error) {
	if err := CheckShape("mask", m.shape, other.shape); err != nil {
		return nil, err
	}
	out := m.Clone()
	for i, c := range other.cells {
		if c {
			out.cells[i] = true
		}
	}
	return out, nil
}

// Contains reports whether every cell set in other is also set in m.
func (m *Mask) Contains(other *Mask) bool {
	if !slices.Equal(m.shape, other.shape) {
		return false
	}
	for i, c := range other.cells {
		if c && !m.cells[i] {
			return false
		}
	}
	return true
}

// CopyFirstLevel broadcasts the first elevation of m onto every elevation of dst.
// Used to carry a CONVOL decision over to the DOPVOL family.
func (m *Mask) CopyFirstLevel(dst *Mask) error {
	if m.shape[0] < 1 {
		return fmt.Errorf("invalid source angles: %d", m.shape[0])
	}
	if m.shape[1] != dst.shape[1] {
		return &ShapeError{Field: "azimuths", Want: m.shape[1:2], Got: dst.shape[1:2]}
	}
	if m.shape[2] != dst.shape[2] {
		return &ShapeError{Field: "gates", Want: m.shape[2:3], Got: dst.shape[2:3]}
	}
	plane := m.shape[1] * m.shape[2]
	for e := 0; e < dst.shape[0]; e++ {
		copy(dst.cells[e*plane:(e+1)*plane], m.cells[:plane])
	}
	return nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
