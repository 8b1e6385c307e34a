package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsForTestingAreIndependent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.ZonesFlagged.WithLabelValues("convol").Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.ZonesFlagged.WithLabelValues("convol")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ZonesFlagged.WithLabelValues("convol")))
}

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.SetsProcessed.Inc()
	m.ZonesEvaluated.WithLabelValues("dopvol").Add(16)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["bugtracker_sets_processed_total"])
	assert.True(t, names["bugtracker_zones_evaluated_total"])
}
