package precip

import (
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/monitoring"
	"github.com/banshee-data/bugtracker/internal/units"
)

// Input is one scan family to classify. The volume is never modified.
type Input struct {
	Family string
	Volume *grid.Volume
	Angles []float64
	Grid   grid.Geometry
	// Exclude marks samples left out of the regression when ExcludeMasked
	// is set, typically the family's clutter mask. May be nil.
	Exclude *grid.Mask
}

// Zone is the regression result for one azimuth/gate block.
type Zone struct {
	Azim    int
	Gate    int
	Slope   float64 // NaN when the zone was skipped
	Samples int
	Flagged bool
}

// Result holds the contamination mask and the per-zone slopes behind it.
type Result struct {
	Mask      *grid.Mask
	Zones     []Zone
	AzimZones int
	GateZones int
}

// Flagged returns the number of contaminated zones.
func (r *Result) Flagged() int {
	n := 0
	for _, z := range r.Zones {
		if z.Flagged {
			n++
		}
	}
	return n
}

// Detector runs the zone slope classification.
type Detector struct {
	params  Params
	clock   clockwork.Clock
	metrics *monitoring.Metrics
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock sets the clock used to time a detection pass.
func WithClock(c clockwork.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// WithMetrics records zone counts and timings to m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// NewDetector returns a Detector with fixed parameters.
func NewDetector(p Params, opts ...Option) *Detector {
	d := &Detector{params: p, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Params returns the detector parameters.
func (d *Detector) Params() Params { return d.params }

// Detect returns a mask shaped like in.Volume with every cell of each
// contaminated zone set on every elevation.
func Detect(v *grid.Volume, angles []float64, g grid.Geometry, p Params) (*grid.Mask, error) {
	res, err := NewDetector(p).Detect(Input{Volume: v, Angles: angles, Grid: g})
	if err != nil {
		return nil, err
	}
	return res.Mask, nil
}

// Detect classifies every zone of in.Volume.
func (d *Detector) Detect(in Input) (*Result, error) {
	start := d.clock.Now()

	zones, azimZones, gateZones, err := d.zoneSlopes(in)
	if err != nil {
		return nil, err
	}

	p := d.params
	res := &Result{
		Mask:      grid.NewMask(in.Volume.Elevations(), in.Grid.Azimuths, in.Grid.Gates),
		Zones:     zones,
		AzimZones: azimZones,
		GateZones: gateZones,
	}
	for i := range res.Zones {
		z := &res.Zones[i]
		// NaN never compares greater, so skipped zones stay clear.
		if z.Slope > p.MaxSlope {
			z.Flagged = true
			res.Mask.SetBlock(z.Azim*p.AzimRegion, (z.Azim+1)*p.AzimRegion,
				z.Gate*p.GateRegion, (z.Gate+1)*p.GateRegion)
		}
	}

	elapsed := d.clock.Since(start)
	flagged := res.Flagged()
	if d.metrics != nil {
		d.metrics.ZonesEvaluated.WithLabelValues(in.Family).Add(float64(len(zones)))
		d.metrics.ZonesFlagged.WithLabelValues(in.Family).Add(float64(flagged))
		d.metrics.DetectDuration.Observe(elapsed.Seconds())
	}
	monitoring.L().Info("precip filter",
		zap.String("family", in.Family),
		zap.Int("zones", len(zones)),
		zap.Int("flagged", flagged),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

// ZoneSlopes returns the fitted slope of every zone in row-major zone order
// without thresholding.
func (d *Detector) ZoneSlopes(in Input) ([]Zone, error) {
	zones, _, _, err := d.zoneSlopes(in)
	return zones, err
}

func (d *Detector) zoneSlopes(in Input) ([]Zone, int, int, error) {
	p := d.params
	azimZones, gateZones, err := p.Zones(in.Grid)
	if err != nil {
		return nil, 0, 0, err
	}
	if in.Volume == nil {
		return nil, 0, 0, fmt.Errorf("%s volume is missing", in.Family)
	}
	shape := in.Volume.Shape()
	if err := grid.CheckShape(label(in.Family, "volume"), in.Grid.VolumeShape(shape[0]), shape); err != nil {
		return nil, 0, 0, err
	}
	if len(in.Angles) != shape[0] {
		return nil, 0, 0, fmt.Errorf("%s has %d angles for %d elevations", in.Family, len(in.Angles), shape[0])
	}
	if n := distinct(in.Angles); n < 2 && !p.ExcludeMasked {
		return nil, 0, 0, fmt.Errorf("%s: %w: %d distinct", label(in.Family, "angles"), ErrDegenerateAngles, n)
	}
	if p.ExcludeMasked && in.Exclude != nil {
		if err := grid.CheckShape(label(in.Family, "exclusion mask"), shape, in.Exclude.Shape()); err != nil {
			return nil, 0, 0, err
		}
	}

	zones := make([]Zone, 0, azimZones*gateZones)
	var s samples
	for az := 0; az < azimZones; az++ {
		for gz := 0; gz < gateZones; gz++ {
			s.reset()
			d.gather(&s, in, az, gz)
			slope := s.slope(p)
			zones = append(zones, Zone{Azim: az, Gate: gz, Slope: slope, Samples: len(s.y)})
		}
	}
	return zones, azimZones, gateZones, nil
}

// gather pools the (abscissa, value) pairs of one zone across all elevations.
// Missing samples (NaN) are always left out.
func (d *Detector) gather(s *samples, in Input, az, gz int) {
	p := d.params
	minAzim, maxAzim := az*p.AzimRegion, (az+1)*p.AzimRegion
	minGate, maxGate := gz*p.GateRegion, (gz+1)*p.GateRegion
	midKm := units.GateRangeKm((minGate+maxGate)/2, in.Grid.GateStep, in.Grid.GateOffset)

	for e, angle := range in.Angles {
		x := angle
		if p.Abscissa == AbscissaHeight {
			x = units.BeamHeightKm(midKm, angle)
		}
		for a := minAzim; a < maxAzim; a++ {
			for g := minGate; g < maxGate; g++ {
				val, masked := in.Volume.At(e, a, g)
				if math.IsNaN(val) {
					continue
				}
				if p.ExcludeMasked && (masked || (in.Exclude != nil && in.Exclude.At(e, a, g))) {
					continue
				}
				s.add(e, angle, x, val)
			}
		}
	}
}

type samples struct {
	elev   []int
	angles map[float64]int
	x, y   []float64
}

func (s *samples) reset() {
	s.elev = s.elev[:0]
	s.x = s.x[:0]
	s.y = s.y[:0]
	if s.angles == nil {
		s.angles = make(map[float64]int)
	}
	clear(s.angles)
}

func (s *samples) add(elev int, angle, x, y float64) {
	s.elev = append(s.elev, elev)
	s.angles[angle]++
	s.x = append(s.x, x)
	s.y = append(s.y, y)
}

// slope is NaN when the zone's remaining samples span fewer than two angles.
func (s *samples) slope(p Params) float64 {
	if len(s.angles) < 2 {
		return math.NaN()
	}
	// A zone at the radar has zero height on every angle.
	if constant(s.x) {
		return math.NaN()
	}

	var weights []float64
	if p.Weighting == WeightPerAngle {
		perElev := make(map[int]int)
		for _, e := range s.elev {
			perElev[e]++
		}
		weights = make([]float64, len(s.elev))
		for i, e := range s.elev {
			weights[i] = 1.0 / float64(perElev[e])
		}
	}
	_, beta := stat.LinearRegression(s.x, s.y, weights, false)
	return beta
}

func distinct(angles []float64) int {
	seen := make(map[float64]struct{}, len(angles))
	for _, a := range angles {
		seen[a] = struct{}{}
	}
	return len(seen)
}

func label(family, field string) string {
	if family == "" {
		return field
	}
	return family + " " + field
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
