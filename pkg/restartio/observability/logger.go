// Package observability provides structured logging, metrics and tracing
// for checkpoint file sessions.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds session context to a logger.
// Returns a new logger with session_id, path, and rank fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, sessionID, "restart.db", 3)
//	enriched.Info("writing") // includes session_id, path, rank
func EnrichLogger(logger *slog.Logger, sessionID, path string, rank int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("path", path),
		slog.Int("rank", rank),
	)
}

// LogOpen logs the start of a file session.
func LogOpen(logger *slog.Logger, mode string, numProcs int) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint file opened",
		slog.String("open_mode", mode),
		slog.Int("num_procs", numProcs),
	)
}

// LogClose logs the end of a file session.
func LogClose(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("checkpoint file close failed",
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("checkpoint file closed")
}

// LogWrite logs a persisted dataset.
func LogWrite(logger *slog.Logger, group, dataset, mode string, sizeBytes uint64) {
	if logger == nil {
		return
	}
	logger.Debug("dataset written",
		slog.String("group", group),
		slog.String("dataset", dataset),
		slog.String("mode", mode),
		slog.Uint64("size_bytes", sizeBytes),
	)
}

// LogWriteError logs a failed write. kind distinguishes encoding from I/O failures.
func LogWriteError(logger *slog.Logger, group, dataset, kind string, err error) {
	if logger == nil {
		return
	}
	logger.Error("dataset write failed",
		slog.String("group", group),
		slog.String("dataset", dataset),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

// LogRead logs a restored dataset.
func LogRead(logger *slog.Logger, group, dataset, mode string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("dataset read",
		slog.String("group", group),
		slog.String("dataset", dataset),
		slog.String("mode", mode),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogReadError logs a failed read.
func LogReadError(logger *slog.Logger, group, dataset, kind string, err error) {
	if logger == nil {
		return
	}
	logger.Error("dataset read failed",
		slog.String("group", group),
		slog.String("dataset", dataset),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

// LogHeader logs the provenance stamped on a file.
func LogHeader(logger *slog.Logger, simulator, version, caseName string, numProcs int) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint header written",
		slog.String("simulator", simulator),
		slog.String("version", version),
		slog.String("case", caseName),
		slog.Int("num_procs", numProcs),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
