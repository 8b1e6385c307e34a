package output

import (
	"fmt"
	"slices"

	"github.com/ctessum/sparse"
	"github.com/jonboulle/clockwork"

	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/monitoring"
	"github.com/banshee-data/bugtracker/internal/version"
)

// IrisAux holds the DOPVOL fields written alongside the reflectivity.
type IrisAux struct {
	DopElevs      []float64
	TotalPower    *sparse.DenseArray
	Velocity      *sparse.DenseArray
	SpectrumWidth *sparse.DenseArray
}

// IrisOutput writes IRIS CONVOL/DOPVOL products.
type IrisOutput struct {
	meta    Metadata
	grid    grid.Geometry
	volumes Volumes
	aux     IrisAux

	fs      fsutil.FileSystem
	clock   clockwork.Clock
	metrics *monitoring.Metrics
}

var _ Output = (*IrisOutput)(nil)

// Option configures an IrisOutput.
type Option func(*IrisOutput)

// WithFileSystem writes through fs instead of the OS filesystem.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(o *IrisOutput) { o.fs = fs }
}

// WithMetrics records write durations and validation failures.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *IrisOutput) { o.metrics = m }
}

// WithClock sets the clock used to time writes.
func WithClock(c clockwork.Clock) Option {
	return func(o *IrisOutput) { o.clock = c }
}

// NewIrisOutput assembles an IRIS output. Nothing is validated until Validate,
// Create or AppendTargetID is called.
func NewIrisOutput(meta Metadata, g grid.Geometry, vols Volumes, aux IrisAux, opts ...Option) *IrisOutput {
	o := &IrisOutput{
		meta:    meta,
		grid:    g,
		volumes: vols,
		aux:     aux,
		fs:      fsutil.OSFileSystem{},
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Format implements Output.
func (o *IrisOutput) Format() string { return FormatIris }

// Validate implements Output.
func (o *IrisOutput) Validate() error {
	err := o.validate()
	if err != nil && o.metrics != nil {
		o.metrics.ValidationFailures.Inc()
	}
	return err
}

func (o *IrisOutput) validate() error {
	if err := ValidateVolumes(o.grid, o.volumes); err != nil {
		return err
	}
	if o.aux.DopElevs == nil {
		return invalid("dop_elevs", "array cannot be null")
	}
	return validateSiblings(o.grid, len(o.aux.DopElevs),
		[]string{"total_power", "velocity", "spectrum_width"},
		[]*sparse.DenseArray{o.aux.TotalPower, o.aux.Velocity, o.aux.SpectrumWidth})
}

func (o *IrisOutput) dataset() *Dataset {
	return &Dataset{
		RadarID:       o.meta.RadarID,
		Name:          o.meta.Name,
		FileType:      FormatIris,
		DateTime:      o.meta.ScanTime.UTC().Format(DateTimeLayout),
		Version:       version.Version,
		Latitude:      o.meta.Latitude,
		Longitude:     o.meta.Longitude,
		DBZElevs:      o.volumes.DBZElevs,
		DBZFiltered:   o.volumes.DBZFiltered,
		DBZUnfiltered: o.volumes.DBZUnfiltered,
		Joint:         o.volumes.Joint,
		DopElevs:      o.aux.DopElevs,
		TotalPower:    o.aux.TotalPower,
		Velocity:      o.aux.Velocity,
		SpectrumWidth: o.aux.SpectrumWidth,
	}
}

// Create implements Output.
func (o *IrisOutput) Create(path string) error {
	if err := o.Validate(); err != nil {
		return err
	}
	start := o.clock.Now()
	if err := writeDataset(o.fs, path, o.dataset()); err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.WriteDuration.Observe(o.clock.Since(start).Seconds())
	}
	monitoring.Logf("saved %s output: %s", FormatIris, path)
	return nil
}

// Write implements Output.
func (o *IrisOutput) Write(dir string) (string, error) {
	path := Filename(o.meta.ScanTime, dir)
	if err := o.Create(path); err != nil {
		return "", err
	}
	return path, nil
}

// AppendTargetID implements Output. The file at path must have been created
// from the same volumes; it is rewritten with target_id added.
func (o *IrisOutput) AppendTargetID(path string, ids []int32) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := validateTargetID(o.grid, len(o.volumes.DBZElevs), ids); err != nil {
		if o.metrics != nil {
			o.metrics.ValidationFailures.Inc()
		}
		return err
	}

	ds, err := ReadFS(o.fs, path)
	if err != nil {
		return err
	}
	if ds.TargetID != nil {
		return fmt.Errorf("%s already has target_id", path)
	}
	if want := o.grid.VolumeShape(len(o.volumes.DBZElevs)); !slices.Equal(want, ds.DBZFiltered.Shape) {
		return fmt.Errorf("%s does not match this output: %w", path,
			&grid.ShapeError{Field: "dbz_filtered", Want: want, Got: ds.DBZFiltered.Shape})
	}

	ds.TargetID = ids
	return writeDataset(o.fs, path, ds)
}

// NewOdimOutput is the placeholder for ODIM HDF5 products.
func NewOdimOutput(Metadata, grid.Geometry, Volumes, ...Option) (Output, error) {
	return nil, fmt.Errorf("odim output: %w", ErrNotImplemented)
}

// NewNexradOutput is the placeholder for NEXRAD Level II products.
func NewNexradOutput(Metadata, grid.Geometry, Volumes, ...Option) (Output, error) {
	return nil, fmt.Errorf("nexrad output: %w", ErrNotImplemented)
}
