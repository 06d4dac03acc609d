package restartio

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/restartio/pkg/restartio/backend"
	"github.com/randalmurphal/restartio/pkg/restartio/config"
	"github.com/randalmurphal/restartio/pkg/restartio/observability"
	"github.com/randalmurphal/restartio/pkg/restartio/packer"
	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"
)

// Backend names accepted by OpenConfig.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// OpenConfig opens a session described by cfg:
//
//	path     file path, or in-memory file name (required)
//	mode     create | append | read (default read)
//	backend  sqlite | badger | memory (default sqlite)
//	packer   json | proto (default json)
//	rank, size, root  process group (default 0, 1, 0)
//	metrics  record metrics (default false)
//	metrics_exporter  otel | prometheus (default otel)
//	tracing  record OTel spans (default false)
//
// opts are applied after the configured settings and override them.
func OpenConfig(cfg config.Config, opts ...Option) (*Serializer, error) {
	path := cfg.String("path", "")
	if path == "" {
		return nil, ErrMissingPath
	}

	mode, err := backend.ParseOpenMode(cfg.String("mode", ""))
	if err != nil {
		return nil, err
	}

	pg, err := procgroup.New(cfg.Int("rank", 0), cfg.Int("size", 1), cfg.Int("root", 0))
	if err != nil {
		return nil, fmt.Errorf("process group: %w", err)
	}

	p, err := packer.ByName(cfg.String("packer", ""))
	if err != nil {
		return nil, err
	}

	all := []Option{WithPacker(p)}
	if cfg.Bool("metrics", false) {
		switch exporter := strings.ToLower(cfg.String("metrics_exporter", "otel")); exporter {
		case "otel":
			all = append(all, WithMetrics(observability.NewMetricsRecorder()))
		case "prometheus":
			m, err := observability.NewPrometheusMetrics(nil)
			if err != nil {
				return nil, fmt.Errorf("prometheus metrics: %w", err)
			}
			all = append(all, WithMetrics(m))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, exporter)
		}
	}
	if cfg.Bool("tracing", false) {
		all = append(all, WithTracing(observability.NewSpanManager()))
	}
	all = append(all, opts...)

	switch name := strings.ToLower(cfg.String("backend", BackendSQLite)); name {
	case BackendSQLite:
		return Open(path, mode, pg, all...)
	case BackendMemory:
		b, err := backend.OpenMemory(path, mode, pg)
		if err != nil {
			return nil, &IOError{Op: "open", Group: path, Err: err}
		}
		return openOn(b, path, mode, pg, all)
	case BackendBadger:
		b, err := backend.OpenBadger(path, mode, pg, resolve(all).logger)
		if err != nil {
			return nil, &IOError{Op: "open", Group: path, Err: err}
		}
		return openOn(b, path, mode, pg, all)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// openOn starts a session over an already-open backend and logs the open.
func openOn(b backend.Backend, path string, mode OpenMode, pg procgroup.Group, opts []Option) (*Serializer, error) {
	s, err := New(b, pg, append([]Option{withLabel(path)}, opts...)...)
	if err != nil {
		b.Close()
		return nil, err
	}
	observability.LogOpen(s.logger, mode.String(), pg.Size())
	return s, nil
}
