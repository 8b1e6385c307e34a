package precip

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/banshee-data/bugtracker/internal/config"
	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/monitoring"
)

func mustGrid(t *testing.T, azims, gates int) grid.Geometry {
	t.Helper()
	g, err := grid.NewGeometry(azims, gates, 1.0, 1000)
	require.NoError(t, err)
	return g
}

// risingZoneVolume is flat at 15 dBZ except zone (0,0) of a 4x4 region
// layout, which rises 20 dB per degree.
func risingZoneVolume(g grid.Geometry, angles []float64) *grid.Volume {
	v := grid.NewVolume(len(angles), g)
	for e, angle := range angles {
		for a := 0; a < g.Azimuths; a++ {
			for gate := 0; gate < g.Gates; gate++ {
				val := 15.0
				if a < 4 && gate < 4 {
					val = 10.0 + 20.0*angle
				}
				v.Set(val, e, a, gate)
			}
		}
	}
	return v
}

func defaultParams() Params {
	return Params{AzimRegion: 4, GateRegion: 4, MaxSlope: 5.0}
}

func TestDetectRisingZone(t *testing.T) {
	g := mustGrid(t, 8, 8)
	angles := []float64{0.5, 1.0, 1.5}
	v := risingZoneVolume(g, angles)
	before := v.Clone()

	mask, err := Detect(v, angles, g, defaultParams())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 8, 8}, mask.Shape())

	for e := range angles {
		for a := 0; a < 8; a++ {
			for gate := 0; gate < 8; gate++ {
				want := a < 4 && gate < 4
				assert.Equal(t, want, mask.At(e, a, gate), "cell (%d,%d,%d)", e, a, gate)
			}
		}
	}
	assert.Equal(t, 3*16, mask.Count())

	// The input volume is not touched.
	assert.Equal(t, before.Data.Elements, v.Data.Elements)
	assert.Equal(t, 0, v.MaskedCount())
}

func TestZoneSlopes(t *testing.T) {
	g := mustGrid(t, 8, 8)
	angles := []float64{0.5, 1.0, 1.5}
	d := NewDetector(defaultParams())

	zones, err := d.ZoneSlopes(Input{Family: "convol", Volume: risingZoneVolume(g, angles), Angles: angles, Grid: g})
	require.NoError(t, err)
	require.Len(t, zones, 4)

	assert.Equal(t, 0, zones[0].Azim)
	assert.Equal(t, 0, zones[0].Gate)
	assert.InDelta(t, 20.0, zones[0].Slope, 1e-9)
	assert.Equal(t, 48, zones[0].Samples)
	for _, z := range zones[1:] {
		assert.InDelta(t, 0.0, z.Slope, 1e-9)
		assert.False(t, z.Flagged)
	}
}

func TestDetectMissingSamples(t *testing.T) {
	g := mustGrid(t, 8, 8)
	angles := []float64{0.5, 1.0, 1.5}
	v := risingZoneVolume(g, angles)
	// Fill values arrive as NaN and masked.
	v.Set(math.NaN(), 1, 2, 3)
	v.MaskCell(1, 2, 3)
	// Zone (1,1) keeps samples on the lowest elevation only.
	for e := 1; e < len(angles); e++ {
		for a := 4; a < 8; a++ {
			for gate := 4; gate < 8; gate++ {
				v.Set(math.NaN(), e, a, gate)
				v.MaskCell(e, a, gate)
			}
		}
	}

	res, err := NewDetector(defaultParams()).Detect(Input{Family: "convol", Volume: v, Angles: angles, Grid: g})
	require.NoError(t, err)
	require.Len(t, res.Zones, 4)

	assert.InDelta(t, 20.0, res.Zones[0].Slope, 1e-9)
	assert.Equal(t, 47, res.Zones[0].Samples)
	assert.True(t, res.Zones[0].Flagged)

	assert.True(t, math.IsNaN(res.Zones[3].Slope))
	assert.Equal(t, 16, res.Zones[3].Samples)
	assert.False(t, res.Zones[3].Flagged)

	assert.Equal(t, 1, res.Flagged())
	assert.Equal(t, 3*16, res.Mask.Count())
}

func TestDetectInvalidZoneRegion(t *testing.T) {
	g := mustGrid(t, 8, 8)
	angles := []float64{0.5, 1.0}
	v := grid.NewVolume(2, g)

	tests := []struct {
		name       string
		azimRegion int
		gateRegion int
	}{
		{"azim does not divide", 3, 4},
		{"gate does not divide", 4, 5},
		{"zero azim", 0, 4},
		{"negative gate", 4, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Params{AzimRegion: tt.azimRegion, GateRegion: tt.gateRegion, MaxSlope: 5}
			mask, err := Detect(v, angles, g, p)
			assert.Nil(t, mask)
			assert.True(t, errors.Is(err, ErrInvalidZoneRegion), "got %v", err)
		})
	}
}

func TestDetectBlockStructure(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	angles := []float64{0.5, 1.5, 2.5, 3.5}

	for _, tc := range []struct{ azims, gates, azimRegion, gateRegion int }{
		{8, 8, 4, 4},
		{12, 10, 3, 5},
		{6, 6, 1, 2},
		{4, 8, 4, 8},
	} {
		g := mustGrid(t, tc.azims, tc.gates)
		v := grid.NewVolume(len(angles), g)
		for i := range v.Data.Elements {
			v.Data.Elements[i] = rng.Float64()*60 - 10
		}
		p := Params{AzimRegion: tc.azimRegion, GateRegion: tc.gateRegion, MaxSlope: 0}
		res, err := NewDetector(p).Detect(Input{Volume: v, Angles: angles, Grid: g})
		require.NoError(t, err)

		azimZones, gateZones := tc.azims/tc.azimRegion, tc.gates/tc.gateRegion
		assert.Equal(t, azimZones, res.AzimZones)
		assert.Equal(t, gateZones, res.GateZones)
		require.Len(t, res.Zones, azimZones*gateZones)

		for _, z := range res.Zones {
			for e := range angles {
				for a := z.Azim * tc.azimRegion; a < (z.Azim+1)*tc.azimRegion; a++ {
					for gate := z.Gate * tc.gateRegion; gate < (z.Gate+1)*tc.gateRegion; gate++ {
						require.Equal(t, z.Flagged, res.Mask.At(e, a, gate),
							"grid %dx%d zone (%d,%d) cell (%d,%d,%d)", tc.azims, tc.gates, z.Azim, z.Gate, e, a, gate)
					}
				}
			}
		}
	}
}

func TestDetectDegenerateAngles(t *testing.T) {
	g := mustGrid(t, 8, 8)
	angles := []float64{1.0, 1.0, 1.0}
	v := risingZoneVolume(g, []float64{0.5, 1.0, 1.5})

	_, err := Detect(v, angles, g, defaultParams())
	assert.True(t, errors.Is(err, ErrDegenerateAngles))

	p := defaultParams()
	p.ExcludeMasked = true
	mask, err := Detect(v, angles, g, p)
	require.NoError(t, err)
	assert.Equal(t, 0, mask.Count())
}

func TestDetectAngleCountMismatch(t *testing.T) {
	g := mustGrid(t, 8, 8)
	v := grid.NewVolume(3, g)

	_, err := Detect(v, []float64{0.5, 1.0}, g, defaultParams())
	assert.Error(t, err)

	other := mustGrid(t, 8, 4)
	_, err = Detect(v, []float64{0.5, 1.0, 1.5}, other, defaultParams())
	var shapeErr *grid.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestDetectExcludeMasked(t *testing.T) {
	g := mustGrid(t, 8, 8)
	angles := []float64{0.5, 1.0, 1.5}
	v := grid.NewVolume(3, g)
	for i := range v.Data.Elements {
		v.Data.Elements[i] = 10
	}
	// A bright top elevation in zone (1,1), all of it flagged invalid.
	for a := 4; a < 8; a++ {
		for gate := 4; gate < 8; gate++ {
			v.Set(100, 2, a, gate)
			v.MaskCell(2, a, gate)
		}
	}
	// Clutter under zone (0,1) top elevation, left out through the exclusion mask.
	clutter := grid.NewMask(3, 8, 8)
	for a := 0; a < 4; a++ {
		for gate := 4; gate < 8; gate++ {
			v.Set(100, 2, a, gate)
			clutter.Set(true, 2, a, gate)
		}
	}

	in := Input{Family: "convol", Volume: v, Angles: angles, Grid: g, Exclude: clutter}

	res, err := NewDetector(defaultParams()).Detect(in)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Flagged(), "raw pooling sees both bright patches")

	p := defaultParams()
	p.ExcludeMasked = true
	res, err = NewDetector(p).Detect(in)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Flagged())
	for _, z := range res.Zones {
		if z.Gate == 1 {
			assert.Equal(t, 32, z.Samples)
		} else {
			assert.Equal(t, 48, z.Samples)
		}
	}
}

func TestDetectExcludeMaskShape(t *testing.T) {
	g := mustGrid(t, 8, 8)
	p := defaultParams()
	p.ExcludeMasked = true
	in := Input{Volume: grid.NewVolume(3, g), Angles: []float64{0.5, 1, 1.5}, Grid: g, Exclude: grid.NewMask(2, 8, 8)}

	_, err := NewDetector(p).Detect(in)
	var shapeErr *grid.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "exclusion mask", shapeErr.Field)
}

func TestDetectWeightPerAngle(t *testing.T) {
	g := mustGrid(t, 4, 4)
	angles := []float64{0, 1, 2}
	v := grid.NewVolume(3, g)
	// Elevations 0 and 1 read 0 dBZ, elevation 2 reads 30 dBZ in a single
	// unmasked cell.
	for a := 0; a < 4; a++ {
		for gate := 0; gate < 4; gate++ {
			v.Set(30, 2, a, gate)
			if a != 0 || gate != 0 {
				v.MaskCell(2, a, gate)
			}
		}
	}
	p := Params{AzimRegion: 4, GateRegion: 4, MaxSlope: 10, ExcludeMasked: true}
	in := Input{Volume: v, Angles: angles, Grid: g}

	zones, err := NewDetector(p).ZoneSlopes(in)
	require.NoError(t, err)
	assert.InDelta(t, 30.0/7.0, zones[0].Slope, 1e-9)

	p.Weighting = WeightPerAngle
	res, err := NewDetector(p).Detect(in)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, res.Zones[0].Slope, 1e-9)
	assert.Equal(t, 1, res.Flagged())
}

func TestDetectHeightAbscissa(t *testing.T) {
	g, err := grid.NewGeometry(8, 8, 1.0, 1000)
	require.NoError(t, err)
	angles := []float64{0.5, 1.0, 1.5}
	v := risingZoneVolume(g, angles)

	p := Params{AzimRegion: 4, GateRegion: 4, MaxSlope: 5, Abscissa: AbscissaHeight}
	zones, err := NewDetector(p).ZoneSlopes(Input{Volume: v, Angles: angles, Grid: g})
	require.NoError(t, err)

	// Zone (0,0) has its middle gate 2 km out; beam height is nearly linear
	// in angle there, so the slope is about 20 dB/deg over 2 km*tan(1 deg).
	perKm := 20.0 / (2.0 * math.Tan(math.Pi/180.0))
	assert.InEpsilon(t, perKm, zones[0].Slope, 1e-3)
	assert.InDelta(t, 0.0, zones[1].Slope, 1e-9)
}

func TestDetectHeightAtRadarIsSkipped(t *testing.T) {
	g := mustGrid(t, 4, 4)
	angles := []float64{0.5, 1.0}
	v := grid.NewVolume(2, g)
	v.Set(60, 1, 0, 0)

	// Gate region 1: zone 0 has its middle at gate 0, zero range.
	p := Params{AzimRegion: 4, GateRegion: 1, MaxSlope: 0, Abscissa: AbscissaHeight}
	res, err := NewDetector(p).Detect(Input{Volume: v, Angles: angles, Grid: g})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Zones[0].Slope))
	assert.False(t, res.Zones[0].Flagged)
}

func TestDetectMetricsAndLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	monitoring.SetZap(zap.New(core))
	t.Cleanup(func() { monitoring.SetZap(nil) })

	g := mustGrid(t, 8, 8)
	angles := []float64{0.5, 1.0, 1.5}
	m := monitoring.NewMetricsForTesting()
	d := NewDetector(defaultParams(), WithMetrics(m), WithClock(clockwork.NewFakeClock()))

	_, err := d.Detect(Input{Family: "convol", Volume: risingZoneVolume(g, angles), Angles: angles, Grid: g})
	require.NoError(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ZonesEvaluated.WithLabelValues("convol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ZonesFlagged.WithLabelValues("convol")))

	entries := logs.FilterMessage("precip filter").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "convol", fields["family"])
	assert.Equal(t, int64(1), fields["flagged"])
	assert.Equal(t, int64(4), fields["zones"])
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.EmptyConfig()
	p := ParamsFromConfig(cfg)
	assert.Equal(t, Params{AzimRegion: 4, GateRegion: 4, MaxSlope: 5.0}, p)

	height := config.AbscissaHeight
	perKm := -5.0
	yes := true
	cfg.Precip = &config.PrecipConfig{Abscissa: &height, MaxDBZPerKm: &perKm, WeightPerAngle: &yes, ExcludeMasked: &yes}
	p = ParamsFromConfig(cfg)
	assert.Equal(t, AbscissaHeight, p.Abscissa)
	assert.Equal(t, -5.0, p.MaxSlope)
	assert.Equal(t, WeightPerAngle, p.Weighting)
	assert.True(t, p.ExcludeMasked)
	assert.Equal(t, "height", p.Abscissa.String())
}
