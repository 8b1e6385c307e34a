package output

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/monitoring"
)

var scanTime = time.Date(2019, 7, 1, 12, 34, 0, 0, time.UTC)

var cmpOpts = []cmp.Option{cmpopts.EquateNaNs(), cmpopts.IgnoreUnexported(sparse.DenseArray{})}

func testGrid(t *testing.T) grid.Geometry {
	t.Helper()
	g, err := grid.NewGeometry(4, 4, 90, 500)
	require.NoError(t, err)
	return g
}

func randomArray(rng *rand.Rand, shape ...int) *sparse.DenseArray {
	a := sparse.ZerosDense(shape...)
	for i := range a.Elements {
		a.Elements[i] = rng.Float64()*50 - 10
	}
	return a
}

func testMeta() Metadata {
	return Metadata{RadarID: "WKR", Name: "King City", Latitude: 43.96, Longitude: -79.57, ScanTime: scanTime}
}

func testVolumes(rng *rand.Rand) Volumes {
	v := Volumes{
		DBZElevs:      []float64{0.5, 1.5, 2.5},
		DBZFiltered:   randomArray(rng, 3, 4, 4),
		DBZUnfiltered: randomArray(rng, 3, 4, 4),
		Joint:         randomArray(rng, 4, 4),
	}
	v.DBZFiltered.Elements[5] = math.NaN()
	v.Joint.Elements[3] = math.NaN()
	return v
}

func testAux(rng *rand.Rand) IrisAux {
	return IrisAux{
		DopElevs:      []float64{0.5, 1.0},
		TotalPower:    randomArray(rng, 2, 4, 4),
		Velocity:      randomArray(rng, 2, 4, 4),
		SpectrumWidth: randomArray(rng, 2, 4, 4),
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "20190701_1234.nc"), Filename(scanTime, "out"))

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "20190701_1734.nc", filepath.Base(Filename(time.Date(2019, 7, 1, 12, 34, 0, 0, est), "")))
}

func TestIrisRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g := testGrid(t)
	vols := testVolumes(rng)
	aux := testAux(rng)
	dir := t.TempDir()

	out := NewIrisOutput(testMeta(), g, vols, aux)
	path, err := out.Write(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20190701_1234.nc"), path)

	got, err := Read(path)
	require.NoError(t, err)

	want := &Dataset{
		RadarID:       "WKR",
		Name:          "King City",
		FileType:      "iris",
		DateTime:      "201907011234",
		Version:       "dev",
		Latitude:      43.96,
		Longitude:     -79.57,
		DBZElevs:      vols.DBZElevs,
		DBZFiltered:   vols.DBZFiltered,
		DBZUnfiltered: vols.DBZUnfiltered,
		Joint:         vols.Joint,
		DopElevs:      aux.DopElevs,
		TotalPower:    aux.TotalPower,
		Velocity:      aux.Velocity,
		SpectrumWidth: aux.SpectrumWidth,
	}
	if diff := cmp.Diff(want, got, cmpOpts...); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	ts, err := got.ScanTime()
	require.NoError(t, err)
	assert.True(t, scanTime.Equal(ts))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be renamed away")
}

func TestCreateMismatchLeavesNoFile(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	g := testGrid(t)
	vols := testVolumes(rng)
	vols.DBZUnfiltered = randomArray(rng, 2, 4, 4)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.nc")

	err := NewIrisOutput(testMeta(), g, vols, testAux(rng)).Create(path)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "dbz_unfiltered", verr.Field)
	var shapeErr *grid.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, []int{3, 4, 4}, shapeErr.Want)
	assert.Equal(t, []int{2, 4, 4}, shapeErr.Got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestValidate(t *testing.T) {
	g := testGrid(t)

	tests := []struct {
		name   string
		mutate func(*Volumes, *IrisAux)
		field  string
	}{
		{"missing filtered", func(v *Volumes, _ *IrisAux) { v.DBZFiltered = nil }, "dbz_filtered"},
		{"missing unfiltered", func(v *Volumes, _ *IrisAux) { v.DBZUnfiltered = nil }, "dbz_unfiltered"},
		{"azims", func(v *Volumes, _ *IrisAux) {
			v.DBZFiltered = sparse.ZerosDense(3, 5, 4)
			v.DBZUnfiltered = sparse.ZerosDense(3, 5, 4)
		}, "dbz_filtered"},
		{"gates", func(v *Volumes, _ *IrisAux) {
			v.DBZFiltered = sparse.ZerosDense(3, 4, 6)
			v.DBZUnfiltered = sparse.ZerosDense(3, 4, 6)
		}, "dbz_filtered"},
		{"not 3D", func(v *Volumes, _ *IrisAux) {
			v.DBZFiltered = sparse.ZerosDense(4, 4)
			v.DBZUnfiltered = sparse.ZerosDense(4, 4)
		}, "dbz_filtered"},
		{"elevation count", func(v *Volumes, _ *IrisAux) { v.DBZElevs = []float64{0.5} }, "dbz_elevs"},
		{"missing joint", func(v *Volumes, _ *IrisAux) { v.Joint = nil }, "dbz_joint"},
		{"joint not 2D", func(v *Volumes, _ *IrisAux) { v.Joint = sparse.ZerosDense(1, 4, 4) }, "dbz_joint"},
		{"joint shape", func(v *Volumes, _ *IrisAux) { v.Joint = sparse.ZerosDense(4, 3) }, "dbz_joint"},
		{"missing dop elevs", func(_ *Volumes, a *IrisAux) { a.DopElevs = nil }, "dop_elevs"},
		{"missing velocity", func(_ *Volumes, a *IrisAux) { a.Velocity = nil }, "velocity"},
		{"sibling mismatch", func(_ *Volumes, a *IrisAux) { a.SpectrumWidth = sparse.ZerosDense(3, 4, 4) }, "spectrum_width"},
		{"aux off grid", func(_ *Volumes, a *IrisAux) {
			a.TotalPower = sparse.ZerosDense(2, 4, 2)
			a.Velocity = sparse.ZerosDense(2, 4, 2)
			a.SpectrumWidth = sparse.ZerosDense(2, 4, 2)
		}, "total_power"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(3))
			vols, aux := testVolumes(rng), testAux(rng)
			tt.mutate(&vols, &aux)

			m := monitoring.NewMetricsForTesting()
			fs := fsutil.NewMemoryFileSystem()
			out := NewIrisOutput(testMeta(), g, vols, aux, WithFileSystem(fs), WithMetrics(m))

			err := out.Create("/out/x.nc")
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.False(t, fs.Exists("/out/x.nc"))
			assert.False(t, fs.Exists("/out/x.nc.tmp"))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures))
		})
	}
}

func TestAppendTargetID(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	g := testGrid(t)
	vols := testVolumes(rng)
	fs := fsutil.NewMemoryFileSystem()
	m := monitoring.NewMetricsForTesting()
	out := NewIrisOutput(testMeta(), g, vols, testAux(rng), WithFileSystem(fs), WithMetrics(m))

	path, err := out.Write("/nc")
	require.NoError(t, err)

	before, err := ReadFS(fs, path)
	require.NoError(t, err)
	assert.Nil(t, before.TargetID)

	ids := make([]int32, 3*4*4)
	for i := range ids {
		ids[i] = int32(i % 4)
	}
	require.NoError(t, out.AppendTargetID(path, ids))

	after, err := ReadFS(fs, path)
	require.NoError(t, err)
	assert.Equal(t, ids, after.TargetID)

	after.TargetID = nil
	if diff := cmp.Diff(before, after, cmpOpts...); diff != "" {
		t.Errorf("append changed existing variables (-before +after):\n%s", diff)
	}

	// The file is extended once, never rewritten.
	assert.Error(t, out.AppendTargetID(path, ids))
	assert.False(t, fs.Exists(path+".tmp"))
}

func TestAppendTargetIDValidates(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	g := testGrid(t)
	fs := fsutil.NewMemoryFileSystem()
	m := monitoring.NewMetricsForTesting()
	out := NewIrisOutput(testMeta(), g, testVolumes(rng), testAux(rng), WithFileSystem(fs), WithMetrics(m))
	path, err := out.Write("/nc")
	require.NoError(t, err)

	err = out.AppendTargetID(path, make([]int32, 10))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "target_id", verr.Field)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures))

	ds, err := ReadFS(fs, path)
	require.NoError(t, err)
	assert.Nil(t, ds.TargetID)

	// Volumes that no longer validate stop the append before the file is read.
	bad := NewIrisOutput(testMeta(), g, Volumes{}, testAux(rng), WithFileSystem(fs))
	err = bad.AppendTargetID(path, make([]int32, 48))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "dbz_filtered", verr.Field)
}

func TestAppendTargetIDShapeDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	g := testGrid(t)
	fs := fsutil.NewMemoryFileSystem()
	path, err := NewIrisOutput(testMeta(), g, testVolumes(rng), testAux(rng), WithFileSystem(fs)).Write("/nc")
	require.NoError(t, err)

	vols := Volumes{
		DBZElevs:      []float64{0.5, 1.5},
		DBZFiltered:   randomArray(rng, 2, 4, 4),
		DBZUnfiltered: randomArray(rng, 2, 4, 4),
		Joint:         randomArray(rng, 4, 4),
	}
	other := NewIrisOutput(testMeta(), g, vols, testAux(rng), WithFileSystem(fs))
	err = other.AppendTargetID(path, make([]int32, 2*16))
	var shapeErr *grid.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestUnimplementedFormats(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := testGrid(t)

	for name, ctor := range map[string]func(Metadata, grid.Geometry, Volumes, ...Option) (Output, error){
		"odim":   NewOdimOutput,
		"nexrad": NewNexradOutput,
	} {
		t.Run(name, func(t *testing.T) {
			out, err := ctor(testMeta(), g, testVolumes(rng))
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, ErrNotImplemented))

			out, err = ctor(Metadata{}, grid.Geometry{}, Volumes{})
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, ErrNotImplemented))
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadFS(fsutil.NewMemoryFileSystem(), "/missing.nc")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
