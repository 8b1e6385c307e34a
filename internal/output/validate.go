package output

import (
	"fmt"
	"slices"

	"github.com/ctessum/sparse"

	"github.com/banshee-data/bugtracker/internal/grid"
)

// ValidationError names the field that failed validation. It is returned
// before any output file is opened.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid output field %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

func shapeOf(a *sparse.DenseArray) []int {
	if a == nil {
		return nil
	}
	return a.Shape
}

// ValidateVolumes checks the universal fields against g. Every variant runs it.
func ValidateVolumes(g grid.Geometry, v Volumes) error {
	if v.DBZFiltered == nil {
		return invalid("dbz_filtered", "array cannot be null")
	}
	if v.DBZUnfiltered == nil {
		return invalid("dbz_unfiltered", "array cannot be null")
	}
	if !slices.Equal(v.DBZFiltered.Shape, v.DBZUnfiltered.Shape) {
		return &ValidationError{Field: "dbz_unfiltered", Err: &grid.ShapeError{
			Field: "dbz_unfiltered", Want: v.DBZFiltered.Shape, Got: v.DBZUnfiltered.Shape}}
	}

	shape := v.DBZFiltered.Shape
	if len(shape) != 3 {
		return invalid("dbz_filtered", "must be a 3D array, got shape %v", shape)
	}
	if shape[1] != g.Azimuths {
		return invalid("dbz_filtered", "incompatible azims: %d != %d", shape[1], g.Azimuths)
	}
	if shape[2] != g.Gates {
		return invalid("dbz_filtered", "incompatible gates: %d != %d", shape[2], g.Gates)
	}
	if len(v.DBZElevs) != shape[0] {
		return invalid("dbz_elevs", "%d angles for %d elevations", len(v.DBZElevs), shape[0])
	}

	if v.Joint == nil {
		return invalid("dbz_joint", "joint product cannot be null")
	}
	if len(v.Joint.Shape) != 2 {
		return invalid("dbz_joint", "must be a 2D array, got shape %v", v.Joint.Shape)
	}
	if err := grid.CheckShape("dbz_joint", g.PlaneShape(), v.Joint.Shape); err != nil {
		return &ValidationError{Field: "dbz_joint", Err: err}
	}
	return nil
}

// validateSiblings checks that a set of auxiliary volumes share one shape on
// g with the given number of elevations.
func validateSiblings(g grid.Geometry, elevs int, fields []string, arrs []*sparse.DenseArray) error {
	want := g.VolumeShape(elevs)
	for i, a := range arrs {
		if a == nil {
			return invalid(fields[i], "array cannot be null")
		}
		if i > 0 && !slices.Equal(arrs[0].Shape, a.Shape) {
			return &ValidationError{Field: fields[i], Err: &grid.ShapeError{
				Field: fields[i], Want: arrs[0].Shape, Got: a.Shape}}
		}
		if err := grid.CheckShape(fields[i], want, shapeOf(a)); err != nil {
			return &ValidationError{Field: fields[i], Err: err}
		}
	}
	return nil
}

func validateTargetID(g grid.Geometry, elevs int, ids []int32) error {
	if want := elevs * g.Cells(); len(ids) != want {
		return invalid("target_id", "dims are %d but array length is %d", want, len(ids))
	}
	return nil
}
