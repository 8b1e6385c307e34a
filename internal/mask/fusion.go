// Package mask combines clutter and contamination masks and applies them to
// scan volumes. Masking only ever grows: a masked cell is never cleared.
package mask

import (
	"errors"
	"fmt"
	"slices"

	"github.com/banshee-data/bugtracker/internal/grid"
)

// ErrShapeChanged reports a volume whose shape changed while its mask was
// replaced. It indicates a bug, not bad input.
var ErrShapeChanged = errors.New("internal invariant violated: volume shape changed")

// Fuse returns the union of the clutter and contamination masks.
func Fuse(clutter, contamination *grid.Mask) (*grid.Mask, error) {
	if clutter == nil || contamination == nil {
		return nil, errors.New("fuse: both masks are required")
	}
	joint, err := clutter.Or(contamination)
	if err != nil {
		return nil, fmt.Errorf("fuse clutter with contamination: %w", err)
	}
	return joint, nil
}

// Apply ORs joint into the mask layer of v.
func Apply(v *grid.Volume, joint *grid.Mask) error {
	before := v.Shape()

	merged, err := v.MaskLayer().Or(joint)
	if err != nil {
		return fmt.Errorf("apply mask: %w", err)
	}
	if err := v.SetMask(merged); err != nil {
		return fmt.Errorf("apply mask: %w", err)
	}

	if after := v.Shape(); !slices.Equal(before, after) {
		return fmt.Errorf("%w: %v became %v", ErrShapeChanged, before, after)
	}
	return nil
}

// FuseAndApply masks every cell of v flagged by either clutter or
// contamination, keeping whatever v already had masked.
func FuseAndApply(v *grid.Volume, contamination, clutter *grid.Mask) error {
	joint, err := Fuse(clutter, contamination)
	if err != nil {
		return err
	}
	return Apply(v, joint)
}
