package grid

import (
	"fmt"
	"slices"
)

// ShapeError reports an array whose shape disagrees with what the grid requires.
type ShapeError struct {
	Field string
	Want  []int
	Got   []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s has invalid dims: want %v, got %v", e.Field, e.Want, e.Got)
}

// CheckShape returns a *ShapeError naming field when got differs from want.
func CheckShape(field string, want, got []int) error {
	if !slices.Equal(want, got) {
		return &ShapeError{Field: field, Want: slices.Clone(want), Got: slices.Clone(got)}
	}
	return nil
}
