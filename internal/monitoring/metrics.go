package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the masking pipeline.
type Metrics struct {
	ZonesEvaluated     *prometheus.CounterVec // labels: family={convol,dopvol}
	ZonesFlagged       *prometheus.CounterVec // labels: family
	MaskedCells        *prometheus.GaugeVec   // labels: family
	ValidationFailures prometheus.Counter
	SetsProcessed      prometheus.Counter

	DetectDuration prometheus.Histogram
	WriteDuration  prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		ZonesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bugtracker",
			Name:      "zones_evaluated_total",
			Help:      "Azimuth/gate zones run through the slope regression.",
		}, []string{"family"}),
		ZonesFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bugtracker",
			Name:      "zones_flagged_total",
			Help:      "Zones whose slope exceeded the configured maximum.",
		}, []string{"family"}),
		MaskedCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bugtracker",
			Name:      "masked_cells",
			Help:      "Masked cells in the most recently filtered volume.",
		}, []string{"family"}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bugtracker",
			Name:      "output_validation_failures_total",
			Help:      "Output writes rejected before any file was touched.",
		}),
		SetsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bugtracker",
			Name:      "sets_processed_total",
			Help:      "Scan sets that completed the detect, fuse and write sequence.",
		}),
		DetectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bugtracker",
			Name:      "detect_duration_seconds",
			Help:      "Duration of one contamination detection pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bugtracker",
			Name:      "write_duration_seconds",
			Help:      "Duration of writing one output file.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ZonesEvaluated,
		m.ZonesFlagged,
		m.MaskedCells,
		m.ValidationFailures,
		m.SetsProcessed,
		m.DetectDuration,
		m.WriteDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWithRegistry registers the metrics with reg instead of the default registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
