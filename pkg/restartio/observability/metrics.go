package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records checkpoint I/O metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordWrite records a write attempt. failureKind is empty on success.
	RecordWrite(ctx context.Context, group string, sizeBytes int64, duration time.Duration, failureKind string)

	// RecordRead records a read attempt. failureKind is empty on success.
	RecordRead(ctx context.Context, group string, sizeBytes int64, duration time.Duration, failureKind string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	writes    metric.Int64Counter
	writeSize metric.Int64Histogram
	reads     metric.Int64Counter
	readSize  metric.Int64Histogram
	errors    metric.Int64Counter
	latency   metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("restartio")

	writes, err := meter.Int64Counter("restartio.write.count",
		metric.WithDescription("Number of dataset writes"),
	)
	if err != nil {
		return nil, err
	}

	writeSize, err := meter.Int64Histogram("restartio.write.size_bytes",
		metric.WithDescription("Packed size of written datasets in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	reads, err := meter.Int64Counter("restartio.read.count",
		metric.WithDescription("Number of dataset reads"),
	)
	if err != nil {
		return nil, err
	}

	readSize, err := meter.Int64Histogram("restartio.read.size_bytes",
		metric.WithDescription("Size of read datasets in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter("restartio.errors",
		metric.WithDescription("Number of failed operations by failure kind"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("restartio.op.latency_ms",
		metric.WithDescription("Operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		writes:    writes,
		writeSize: writeSize,
		reads:     reads,
		readSize:  readSize,
		errors:    errs,
		latency:   latency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordWrite records a write attempt.
func (m *otelMetrics) RecordWrite(ctx context.Context, group string, sizeBytes int64, duration time.Duration, failureKind string) {
	m.record(ctx, "write", group, duration, failureKind)
	if failureKind != "" {
		return
	}
	m.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("group", group)))
	m.writeSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("group", group)))
}

// RecordRead records a read attempt.
func (m *otelMetrics) RecordRead(ctx context.Context, group string, sizeBytes int64, duration time.Duration, failureKind string) {
	m.record(ctx, "read", group, duration, failureKind)
	if failureKind != "" {
		return
	}
	m.reads.Add(ctx, 1, metric.WithAttributes(attribute.String("group", group)))
	m.readSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("group", group)))
}

// record updates latency and, on failure, the error counter.
func (m *otelMetrics) record(ctx context.Context, op, group string, duration time.Duration, failureKind string) {
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.String("group", group),
	}
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if failureKind != "" {
		attrs = append(attrs, attribute.String("kind", failureKind))
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
