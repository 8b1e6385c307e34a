// Package output writes filtered radar volumes, the joint product and the
// format-specific auxiliary fields to self-describing NetCDF files.
package output

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/ctessum/sparse"
)

// ErrNotImplemented is returned by the constructors of unfinished formats.
var ErrNotImplemented = errors.New("not implemented")

// DateTimeLayout is the layout of the datetime attribute (YYYYMMDDHHMM).
const DateTimeLayout = "200601021504"

// Format tags written as the filetype attribute.
const (
	FormatIris   = "iris"
	FormatOdim   = "odim"
	FormatNexrad = "nexrad"
)

// Output is one format variant of the volume writer.
type Output interface {
	// Format returns the filetype tag.
	Format() string
	// Validate checks every field against the grid without touching any file.
	Validate() error
	// Create validates, then writes a new file at path.
	Create(path string) error
	// Write creates the file under dir using the standard filename.
	Write(dir string) (string, error)
	// AppendTargetID validates again, then adds the target_id volume to path.
	AppendTargetID(path string, ids []int32) error
}

// Metadata identifies the radar and scan written into the file attributes.
type Metadata struct {
	RadarID   string
	Name      string
	Latitude  float64
	Longitude float64
	ScanTime  time.Time
}

// Volumes are the fields common to every format.
type Volumes struct {
	DBZElevs      []float64
	DBZFiltered   *sparse.DenseArray // (len(DBZElevs), azims, gates)
	DBZUnfiltered *sparse.DenseArray // same shape as DBZFiltered
	Joint         *sparse.DenseArray // (azims, gates)
}

// Filename returns the standard output path for a scan, dir/YYYYMMDD_HHMM.nc.
func Filename(scanTime time.Time, dir string) string {
	return filepath.Join(dir, scanTime.UTC().Format("20060102_1504")+".nc")
}
