// Package ncio reads and writes whole variables of NetCDF classic files.
package ncio

import (
	"errors"
	"fmt"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// ErrMissingVariable is returned when a named variable is not in the file header.
var ErrMissingVariable = errors.New("variable not in file")

// Double and Int are the zero-value type hints passed to cdf.Header.AddVariable.
var (
	Double = []float64{0}
	Int    = []int32{0}
)

// HasVariable reports whether name is declared in f.
func HasVariable(f *cdf.File, name string) bool {
	return len(f.Header.Lengths(name)) > 0
}

// Shape returns the dimension lengths of variable name.
func Shape(f *cdf.File, name string) ([]int, error) {
	dims := f.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, name)
	}
	return dims, nil
}

// ReadFloat reads the whole of variable name, converting any numeric type to float64.
func ReadFloat(f *cdf.File, name string) (*sparse.DenseArray, error) {
	dims, err := Shape(f, name)
	if err != nil {
		return nil, err
	}
	buf, err := read(f, name)
	if err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float64:
		copy(out.Elements, b)
	case []float32:
		for i, v := range b {
			out.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			out.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			out.Elements[i] = float64(v)
		}
	case []int8:
		for i, v := range b {
			out.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("read %s: unsupported type %T", name, buf)
	}
	return out, nil
}

// ReadInt reads the whole of integer variable name along with its shape.
func ReadInt(f *cdf.File, name string) ([]int32, []int, error) {
	dims, err := Shape(f, name)
	if err != nil {
		return nil, nil, err
	}
	buf, err := read(f, name)
	if err != nil {
		return nil, nil, err
	}
	switch b := buf.(type) {
	case []int32:
		return b, dims, nil
	case []int16:
		out := make([]int32, len(b))
		for i, v := range b {
			out[i] = int32(v)
		}
		return out, dims, nil
	case []int8:
		out := make([]int32, len(b))
		for i, v := range b {
			out[i] = int32(v)
		}
		return out, dims, nil
	default:
		return nil, nil, fmt.Errorf("read %s: not an integer variable (%T)", name, buf)
	}
}

func read(f *cdf.File, name string) (interface{}, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read %s: %v", name, err)
	}
	return buf, nil
}

// Write writes data, a []float64 or []int32, as the whole of variable name.
func Write(f *cdf.File, name string, data interface{}) error {
	dims, err := Shape(f, name)
	if err != nil {
		return err
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	var got int
	switch d := data.(type) {
	case []float64:
		got = len(d)
	case []int32:
		got = len(d)
	default:
		return fmt.Errorf("write %s: unsupported type %T", name, data)
	}
	if got != n {
		return fmt.Errorf("write %s: dims are %d but array length is %d", name, n, got)
	}

	w := f.Writer(name, make([]int, len(dims)), dims)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %v", name, err)
	}
	return nil
}

// StringAttr returns a text attribute of variable v, or of the file when v is "".
func StringAttr(h *cdf.Header, v, name string) (string, bool) {
	s, ok := h.GetAttribute(v, name).(string)
	return s, ok
}

// FloatAttr returns the first value of a numeric attribute.
func FloatAttr(h *cdf.Header, v, name string) (float64, bool) {
	switch a := h.GetAttribute(v, name).(type) {
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}
