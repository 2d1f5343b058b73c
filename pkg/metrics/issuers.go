package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IssuerStoreMetrics records issuer store operations and degraded-mode state.
type IssuerStoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	degraded   prometheus.Gauge
}

// NewIssuerStoreMetrics registers the issuer store metrics on the provided registerer.
func NewIssuerStoreMetrics(reg prometheus.Registerer) *IssuerStoreMetrics {
	if reg == nil {
		return &IssuerStoreMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issuer_store_operations_total",
		Help: "Issuer store operations by outcome.",
	}, []string{"op", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "issuer_store_operation_duration_seconds",
		Help:    "Duration of issuer store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "backend"})
	degraded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "issuer_store_degraded",
		Help: "1 when the issuer store is running on the in-memory fallback.",
	})
	reg.MustRegister(operations, duration, degraded)
	return &IssuerStoreMetrics{
		operations: operations,
		duration:   duration,
		degraded:   degraded,
	}
}

// Observe records one operation with its outcome.
func (m *IssuerStoreMetrics) Observe(op, backend, result string, took time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(normalizeLabel(op), normalizeLabel(backend)).Observe(took.Seconds())
}

// SetDegraded flips the degraded gauge.
func (m *IssuerStoreMetrics) SetDegraded(degraded bool) {
	if m == nil || m.degraded == nil {
		return
	}
	if degraded {
		m.degraded.Set(1)
		return
	}
	m.degraded.Set(0)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
