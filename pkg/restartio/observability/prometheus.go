package observability

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsRecorder with Prometheus collectors,
// for processes that expose a scrape endpoint instead of an OTel pipeline.
type PrometheusMetrics struct {
	writes    *prometheus.CounterVec
	writeSize *prometheus.HistogramVec
	reads     *prometheus.CounterVec
	readSize  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// sizeBuckets span small header records up to multi-gigabyte state slices.
var sizeBuckets = prometheus.ExponentialBuckets(64, 4, 14)

// NewPrometheusMetrics registers the checkpoint collectors with reg.
// Collectors already registered by an earlier call are reused, so several
// sessions can share one registry.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restartio",
			Subsystem: "write",
			Name:      "total",
			Help:      "Number of dataset writes",
		}, []string{"group"}),
		writeSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "restartio",
			Subsystem: "write",
			Name:      "size_bytes",
			Help:      "Packed size of written datasets in bytes",
			Buckets:   sizeBuckets,
		}, []string{"group"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restartio",
			Subsystem: "read",
			Name:      "total",
			Help:      "Number of dataset reads",
		}, []string{"group"}),
		readSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "restartio",
			Subsystem: "read",
			Name:      "size_bytes",
			Help:      "Size of read datasets in bytes",
			Buckets:   sizeBuckets,
		}, []string{"group"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restartio",
			Name:      "errors_total",
			Help:      "Failed dataset operations by failure kind",
		}, []string{"op", "group", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "restartio",
			Name:      "op_latency_seconds",
			Help:      "Latency of dataset operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "group"}),
	}

	var err error
	m.writes, err = register(reg, m.writes)
	if err != nil {
		return nil, err
	}
	m.writeSize, err = register(reg, m.writeSize)
	if err != nil {
		return nil, err
	}
	m.reads, err = register(reg, m.reads)
	if err != nil {
		return nil, err
	}
	m.readSize, err = register(reg, m.readSize)
	if err != nil {
		return nil, err
	}
	m.errors, err = register(reg, m.errors)
	if err != nil {
		return nil, err
	}
	m.latency, err = register(reg, m.latency)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, or returns the collector already registered
// under the same description.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordWrite records a write attempt.
func (m *PrometheusMetrics) RecordWrite(_ context.Context, group string, sizeBytes int64, duration time.Duration, failureKind string) {
	m.record("write", group, duration, failureKind)
	if failureKind != "" {
		return
	}
	m.writes.WithLabelValues(group).Inc()
	m.writeSize.WithLabelValues(group).Observe(float64(sizeBytes))
}

// RecordRead records a read attempt.
func (m *PrometheusMetrics) RecordRead(_ context.Context, group string, sizeBytes int64, duration time.Duration, failureKind string) {
	m.record("read", group, duration, failureKind)
	if failureKind != "" {
		return
	}
	m.reads.WithLabelValues(group).Inc()
	m.readSize.WithLabelValues(group).Observe(float64(sizeBytes))
}

func (m *PrometheusMetrics) record(op, group string, duration time.Duration, failureKind string) {
	m.latency.WithLabelValues(op, group).Observe(duration.Seconds())
	if failureKind != "" {
		m.errors.WithLabelValues(op, group, failureKind).Inc()
	}
}
