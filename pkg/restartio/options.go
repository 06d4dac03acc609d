package restartio

import (
	"log/slog"

	"github.com/randalmurphal/restartio/pkg/restartio/observability"
	"github.com/randalmurphal/restartio/pkg/restartio/packer"
)

// sessionConfig holds configuration for a file session.
type sessionConfig struct {
	packer    packer.Packer
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	sessionID string
	label     string
}

// defaultSessionConfig returns the default session configuration.
func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		packer:  packer.JSON{},
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// resolve applies opts over the defaults.
func resolve(opts []Option) sessionConfig {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a file session.
type Option func(*sessionConfig)

// WithPacker sets the packer used to encode records.
// Default: packer.JSON{}
func WithPacker(p packer.Packer) Option {
	return func(c *sessionConfig) {
		if p != nil {
			c.packer = p
		}
	}
}

// WithLogger enables structured logging. The logger is enriched with the
// session ID, path and rank.
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}
//
// Example:
//
//	s, err := restartio.Open(path, restartio.OpenCreate, pg,
//	    restartio.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *sessionConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing sets the span manager.
// Default: observability.NoopSpanManager{}
func WithTracing(sm observability.SpanManager) Option {
	return func(c *sessionConfig) {
		if sm != nil {
			c.spans = sm
		}
	}
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(c *sessionConfig) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// withLabel sets the path reported for sessions over a caller-supplied backend.
func withLabel(label string) Option {
	return func(c *sessionConfig) {
		c.label = label
	}
}

// ioConfig holds per-call settings for reads and writes.
type ioConfig struct {
	mode DataSetMode
}

// IOOption configures a single Write or Read.
type IOOption func(*ioConfig)

// WithMode sets the write distribution for one call.
// Default: ProcessSplit
func WithMode(mode DataSetMode) IOOption {
	return func(c *ioConfig) {
		c.mode = mode
	}
}

func newIOConfig(opts []IOOption) ioConfig {
	c := ioConfig{mode: ProcessSplit}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
