// Package targetid assigns a target class to every cell of a reflectivity volume.
package targetid

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/bugtracker/internal/grid"
)

// Code is the integer class written to the target_id variable.
type Code int32

// Target codes. They are persisted, so never renumber them.
const (
	None    Code = 0
	Clutter Code = 1
	Rain    Code = 2
	Bugs    Code = 3
)

var names = map[string]Code{
	"none":    None,
	"clutter": Clutter,
	"rain":    Rain,
	"bugs":    Bugs,
}

func (c Code) String() string {
	for name, code := range names {
		if code == c {
			return name
		}
	}
	return fmt.Sprintf("Code(%d)", int32(c))
}

// Parse returns the code for a target name, ignoring case and surrounding space.
func Parse(name string) (Code, error) {
	c, ok := names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return None, fmt.Errorf("invalid target code %q", name)
	}
	return c, nil
}

// Classify labels each cell of the unfiltered volume v. Cells with no valid
// sample are None, clutter cells are Clutter, cells in a contaminated zone are
// Bugs and every remaining echo is Rain.
func Classify(v *grid.Volume, clutter, contamination *grid.Mask) ([]int32, error) {
	shape := v.Shape()
	if err := grid.CheckShape("clutter", shape, clutter.Shape()); err != nil {
		return nil, err
	}
	if err := grid.CheckShape("contamination", shape, contamination.Shape()); err != nil {
		return nil, err
	}

	out := make([]int32, clutter.Len())
	for i := range out {
		val := v.Data.Elements[i]
		switch {
		case v.MaskedFlat(i) || math.IsNaN(val):
			out[i] = int32(None)
		case clutter.Flat(i):
			out[i] = int32(Clutter)
		case contamination.Flat(i):
			out[i] = int32(Bugs)
		default:
			out[i] = int32(Rain)
		}
	}
	return out, nil
}

// Counts tallies a classified volume by code.
func Counts(ids []int32) map[Code]int {
	out := make(map[Code]int)
	for _, id := range ids {
		out[Code(id)]++
	}
	return out
}
