// Package processor drives one radar's scan sets through contamination
// detection, mask fusion and output.
package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/banshee-data/bugtracker/internal/calib"
	"github.com/banshee-data/bugtracker/internal/config"
	"github.com/banshee-data/bugtracker/internal/db"
	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/iris"
	"github.com/banshee-data/bugtracker/internal/mask"
	"github.com/banshee-data/bugtracker/internal/monitoring"
	"github.com/banshee-data/bugtracker/internal/output"
	"github.com/banshee-data/bugtracker/internal/precip"
	"github.com/banshee-data/bugtracker/internal/targetid"
)

// ErrNotImplemented is returned by the constructors of unfinished formats.
var ErrNotImplemented = errors.New("not implemented")

// ErrRadarMismatch is returned for a scan set from a different radar than
// the one the processor was calibrated for.
var ErrRadarMismatch = errors.New("scan set radar does not match processor")

// Processor runs scan sets for one radar.
type Processor interface {
	ProcessSet(ctx context.Context, path string) (*Report, error)
	ProcessSets(ctx context.Context, paths []string) ([]*Report, error)
}

// Plotter draws PPI images and the zone slope page for a scan set.
type Plotter interface {
	PlotVolume(prefix, family, radarID string, scanTime time.Time, v *grid.Volume, angles []float64) ([]string, error)
	PlotZones(family, radarID string, scanTime time.Time, res *precip.Result) (string, error)
}

// Recorder stores a summary of each processed set.
type Recorder interface {
	RecordRun(ctx context.Context, run *db.Run) error
}

// FamilyReport summarises one scan family of a processed set.
type FamilyReport struct {
	Zones   int
	Flagged int
	Masked  int
	Cells   int
	Copied  bool // contamination copied from CONVOL rather than detected
}

// Report summarises one processed set.
type Report struct {
	RunID      string
	RadarID    string
	ScanTime   time.Time
	OutputPath string
	Convol     FamilyReport
	Dopvol     FamilyReport
	Targets    map[targetid.Code]int
	Plots      []string
}

// IrisProcessor processes IRIS CONVOL/DOPVOL scan sets.
type IrisProcessor struct {
	radarID  string
	grid     grid.Geometry
	calib    *calib.IrisData
	detector *precip.Detector

	netcdfDir   string
	jointCutoff float64
	copyConvol  bool
	plotEnabled bool

	fs       fsutil.FileSystem
	clock    clockwork.Clock
	metrics  *monitoring.Metrics
	plotter  Plotter
	recorder Recorder
}

var _ Processor = (*IrisProcessor)(nil)

// Option configures an IrisProcessor.
type Option func(*IrisProcessor)

// WithGrid overrides the standard IRIS grid.
func WithGrid(g grid.Geometry) Option {
	return func(p *IrisProcessor) { p.grid = g }
}

// WithFileSystem reads scan sets and writes output through fs.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(p *IrisProcessor) { p.fs = fs }
}

// WithClock sets the clock used for timings.
func WithClock(c clockwork.Clock) Option {
	return func(p *IrisProcessor) { p.clock = c }
}

// WithMetrics records pipeline metrics to m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *IrisProcessor) { p.metrics = m }
}

// WithPlotter draws raw and filtered images when plotting is enabled.
func WithPlotter(pl Plotter) Option {
	return func(p *IrisProcessor) { p.plotter = pl }
}

// WithRecorder records every processed set.
func WithRecorder(r Recorder) Option {
	return func(p *IrisProcessor) { p.recorder = r }
}

// NewIrisProcessor loads and validates the calibration for radarID. The
// configuration is read once here; later changes to cfg have no effect.
func NewIrisProcessor(cfg *config.Config, radarID string, store *calib.Store, opts ...Option) (*IrisProcessor, error) {
	p := &IrisProcessor{
		radarID:     radarID,
		grid:        iris.Grid(),
		netcdfDir:   cfg.GetNetCDFDir(),
		jointCutoff: cfg.GetJointCutoff(),
		copyConvol:  cfg.GetCopyConvolToDopvol(),
		plotEnabled: cfg.GetPlotEnabled(),
		fs:          fsutil.OSFileSystem{},
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}

	params := precip.ParamsFromConfig(cfg)
	if _, _, err := params.Zones(p.grid); err != nil {
		return nil, err
	}
	detOpts := []precip.Option{precip.WithClock(p.clock)}
	if p.metrics != nil {
		detOpts = append(detOpts, precip.WithMetrics(p.metrics))
	}
	p.detector = precip.NewDetector(params, detOpts...)

	cal, err := store.LoadIris(radarID, p.grid)
	if err != nil {
		return nil, fmt.Errorf("iris processor for %s: %w", radarID, err)
	}
	p.calib = cal
	return p, nil
}

// NewOdimProcessor is the placeholder for ODIM HDF5 scans.
func NewOdimProcessor(*config.Config, string, *calib.Store, ...Option) (Processor, error) {
	return nil, fmt.Errorf("odim processor: %w", ErrNotImplemented)
}

// NewNexradProcessor is the placeholder for NEXRAD Level II scans.
func NewNexradProcessor(*config.Config, string, *calib.Store, ...Option) (Processor, error) {
	return nil, fmt.Errorf("nexrad processor: %w", ErrNotImplemented)
}

// Grid returns the grid the processor was calibrated for.
func (p *IrisProcessor) Grid() grid.Geometry { return p.grid }

// ProcessSets processes each path in order, stopping at the first error or
// when ctx is cancelled between sets.
func (p *IrisProcessor) ProcessSets(ctx context.Context, paths []string) ([]*Report, error) {
	reports := make([]*Report, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := p.ProcessSet(ctx, path)
		if err != nil {
			return reports, fmt.Errorf("process %s: %w", path, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// ProcessSet detects and masks contamination in one scan set, writes the
// filtered output and appends the target classification.
func (p *IrisProcessor) ProcessSet(ctx context.Context, path string) (*Report, error) {
	start := p.clock.Now()

	data, err := iris.Load(p.fs, path, p.grid)
	if err != nil {
		return nil, err
	}
	if data.Meta.RadarID != p.radarID {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrRadarMismatch, data.Meta.RadarID, p.radarID)
	}

	report := &Report{
		RunID:    uuid.NewString(),
		RadarID:  p.radarID,
		ScanTime: data.Meta.ScanTime,
	}
	plotting := p.plotEnabled && p.plotter != nil

	if plotting {
		if err := p.plot(report, "raw", data); err != nil {
			return nil, err
		}
	}

	unfiltered := data.Convol.Clone()

	convolRes, err := p.detector.Detect(precip.Input{
		Family:  "convol",
		Volume:  data.Convol,
		Angles:  p.calib.Convol.Angles,
		Grid:    p.grid,
		Exclude: p.calib.Convol.Clutter,
	})
	if err != nil {
		return nil, err
	}

	var dopvolRes *precip.Result
	dopvolContam := grid.NewMask(data.Dopvol.Elevations(), p.grid.Azimuths, p.grid.Gates)
	if p.copyConvol {
		if err := convolRes.Mask.CopyFirstLevel(dopvolContam); err != nil {
			return nil, err
		}
	} else {
		dopvolRes, err = p.detector.Detect(precip.Input{
			Family:  "dopvol",
			Volume:  data.Dopvol,
			Angles:  p.calib.Dopvol.Angles,
			Grid:    p.grid,
			Exclude: p.calib.Dopvol.Clutter,
		})
		if err != nil {
			return nil, err
		}
		dopvolContam = dopvolRes.Mask
	}

	if err := mask.FuseAndApply(data.Convol, convolRes.Mask, p.calib.Convol.Clutter); err != nil {
		return nil, fmt.Errorf("convol: %w", err)
	}
	if err := mask.FuseAndApply(data.Dopvol, dopvolContam, p.calib.Dopvol.Clutter); err != nil {
		return nil, fmt.Errorf("dopvol: %w", err)
	}

	report.Convol = familyReport(convolRes, data.Convol)
	report.Dopvol = familyReport(dopvolRes, data.Dopvol)
	report.Dopvol.Copied = p.copyConvol
	if p.metrics != nil {
		p.metrics.MaskedCells.WithLabelValues("convol").Set(float64(report.Convol.Masked))
		p.metrics.MaskedCells.WithLabelValues("dopvol").Set(float64(report.Dopvol.Masked))
	}

	if plotting {
		if err := p.plot(report, "filtered", data); err != nil {
			return nil, err
		}
		for _, r := range []struct {
			family string
			res    *precip.Result
		}{{"convol", convolRes}, {"dopvol", dopvolRes}} {
			if r.res == nil {
				continue
			}
			page, err := p.plotter.PlotZones(r.family, p.radarID, data.Meta.ScanTime, r.res)
			if err != nil {
				return nil, err
			}
			report.Plots = append(report.Plots, page)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := p.output(data, unfiltered)
	report.OutputPath, err = out.Write(p.netcdfDir)
	if err != nil {
		return nil, err
	}

	ids, err := targetid.Classify(unfiltered, p.calib.Convol.Clutter, convolRes.Mask)
	if err != nil {
		return nil, err
	}
	if err := out.AppendTargetID(report.OutputPath, ids); err != nil {
		return nil, err
	}
	report.Targets = targetid.Counts(ids)

	if p.recorder != nil {
		if err := p.recorder.RecordRun(ctx, runRecord(report, p.clock.Now())); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}
	if p.metrics != nil {
		p.metrics.SetsProcessed.Inc()
	}
	monitoring.L().Info("processed scan set",
		zap.String("radar_id", p.radarID),
		zap.String("run_id", report.RunID),
		zap.Time("scan_time", report.ScanTime),
		zap.String("output", report.OutputPath),
		zap.Int("convol_flagged", report.Convol.Flagged),
		zap.Int("dopvol_flagged", report.Dopvol.Flagged),
		zap.Duration("elapsed", p.clock.Since(start)))
	return report, nil
}

func (p *IrisProcessor) plot(report *Report, prefix string, data *iris.Data) error {
	for _, f := range []struct {
		family string
		v      *grid.Volume
		angles []float64
	}{
		{"convol", data.Convol, p.calib.Convol.Angles},
		{"dopvol", data.Dopvol, p.calib.Dopvol.Angles},
	} {
		files, err := p.plotter.PlotVolume(prefix, f.family, p.radarID, data.Meta.ScanTime, f.v, f.angles)
		if err != nil {
			return fmt.Errorf("plot %s %s: %w", prefix, f.family, err)
		}
		report.Plots = append(report.Plots, files...)
	}
	return nil
}

func (p *IrisProcessor) output(data *iris.Data, unfiltered *grid.Volume) *output.IrisOutput {
	meta := output.Metadata{
		RadarID:   data.Meta.RadarID,
		Name:      data.Meta.Name,
		Latitude:  data.Meta.Latitude,
		Longitude: data.Meta.Longitude,
		ScanTime:  data.Meta.ScanTime,
	}
	vols := output.Volumes{
		DBZElevs:      data.ConvolElevs,
		DBZFiltered:   dense(data.Convol),
		DBZUnfiltered: dense(unfiltered),
		Joint:         JointProduct(data.Convol, p.jointCutoff),
	}
	aux := output.IrisAux{
		DopElevs:      data.DopvolElevs,
		TotalPower:    dense(data.TotalPower),
		Velocity:      dense(data.Velocity),
		SpectrumWidth: dense(data.SpectrumWidth),
	}
	opts := []output.Option{output.WithFileSystem(p.fs), output.WithClock(p.clock)}
	if p.metrics != nil {
		opts = append(opts, output.WithMetrics(p.metrics))
	}
	return output.NewIrisOutput(meta, p.grid, vols, aux, opts...)
}

// JointProduct is the column maximum of v over elevations. Columns with no
// unmasked value, and values above cutoff, are NaN.
func JointProduct(v *grid.Volume, cutoff float64) *sparse.DenseArray {
	joint := v.ColumnMax()
	for i, val := range joint.Elements {
		if val > cutoff {
			joint.Elements[i] = math.NaN()
		}
	}
	return joint
}

// dense returns the values of v with masked cells as NaN.
func dense(v *grid.Volume) *sparse.DenseArray {
	out := sparse.ZerosDense(v.Shape()...)
	copy(out.Elements, v.Filled(math.NaN()))
	return out
}

func familyReport(res *precip.Result, v *grid.Volume) FamilyReport {
	fr := FamilyReport{Masked: v.MaskedCount(), Cells: len(v.Data.Elements)}
	if res != nil {
		fr.Zones = len(res.Zones)
		fr.Flagged = res.Flagged()
	}
	return fr
}

func runRecord(r *Report, processedAt time.Time) *db.Run {
	targets := make(map[int32]int, len(r.Targets))
	for code, n := range r.Targets {
		targets[int32(code)] = n
	}
	return &db.Run{
		ID:             r.RunID,
		RadarID:        r.RadarID,
		ScanTime:       r.ScanTime,
		OutputPath:     r.OutputPath,
		ConvolZones:    r.Convol.Zones,
		ConvolFlagged:  r.Convol.Flagged,
		DopvolZones:    r.Dopvol.Zones,
		DopvolFlagged:  r.Dopvol.Flagged,
		MaskedFraction: maskedFraction(r),
		ProcessedAt:    processedAt,
		Targets:        targets,
	}
}

func maskedFraction(r *Report) float64 {
	cells := r.Convol.Cells + r.Dopvol.Cells
	if cells == 0 {
		return 0
	}
	return float64(r.Convol.Masked+r.Dopvol.Masked) / float64(cells)
}
