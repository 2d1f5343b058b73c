package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics records catalog query latency and failures.
type CatalogMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_query_duration_seconds",
		Help:    "Duration of catalog queries in seconds.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"query"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_query_failures_total",
		Help: "Failed catalog queries.",
	}, []string{"query"})
	reg.MustRegister(duration, failures)
	return &CatalogMetrics{duration: duration, failures: failures}
}

// Observe records a query duration and, when err is set, a failure.
func (m *CatalogMetrics) Observe(query string, took time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(query)).Observe(took.Seconds())
	if err != nil {
		m.failures.WithLabelValues(normalizeLabel(query)).Inc()
	}
}
