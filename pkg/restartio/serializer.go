package restartio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/restartio/pkg/restartio/backend"
	"github.com/randalmurphal/restartio/pkg/restartio/observability"
	"github.com/randalmurphal/restartio/pkg/restartio/packer"
	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"
)

// DataSetMode is the distribution of a dataset across processes.
type DataSetMode = backend.DataSetMode

// Distribution modes.
const (
	ProcessSplit = backend.ProcessSplit
	RootOnly     = backend.RootOnly
)

// OpenMode selects how a session treats an existing file.
type OpenMode = backend.OpenMode

// Open modes.
const (
	OpenRead   = backend.OpenRead
	OpenCreate = backend.OpenCreate
	OpenAppend = backend.OpenAppend
)

// InvalidPackSize marks a pack that failed. It is never a real size.
const InvalidPackSize uint64 = math.MaxUint64

// WriteOutcome reports the packed size of one write.
type WriteOutcome struct {
	// Size is the packed byte length, or InvalidPackSize if packing failed.
	// A write that packed but then failed in the backend keeps its real size.
	Size uint64
}

// Valid reports whether packing succeeded.
func (o WriteOutcome) Valid() bool {
	return o.Size != InvalidPackSize
}

// Serializer reads and writes checkpoint records for one file session.
// It is safe for concurrent use; the backend serializes physical I/O.
type Serializer struct {
	backend   backend.Backend
	packer    packer.Packer
	group     procgroup.Group
	path      string
	sessionID string
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager

	mu       sync.Mutex
	packSize uint64
}

// Open opens the SQLite checkpoint file at path for the process group.
//
// With OpenCreate the designated root starts a new file; other ranks must
// open after it. OpenAppend and OpenRead require an existing file.
func Open(path string, mode OpenMode, pg procgroup.Group, opts ...Option) (*Serializer, error) {
	if pg == nil {
		return nil, ErrNilProcessGroup
	}
	b, err := backend.OpenSQLite(path, mode, pg)
	if err != nil {
		return nil, &IOError{Op: "open", Group: path, Err: err}
	}
	return openOn(b, path, mode, pg, opts)
}

// New returns a Serializer over an already-open backend.
func New(b backend.Backend, pg procgroup.Group, opts ...Option) (*Serializer, error) {
	if b == nil {
		return nil, ErrNilBackend
	}
	if pg == nil {
		return nil, ErrNilProcessGroup
	}

	cfg := resolve(opts)
	if cfg.sessionID == "" {
		cfg.sessionID = uuid.New().String()
	}

	return &Serializer{
		backend:   b,
		packer:    cfg.packer,
		group:     pg,
		path:      cfg.label,
		sessionID: cfg.sessionID,
		logger:    observability.EnrichLogger(cfg.logger, cfg.sessionID, cfg.label, pg.Rank()),
		metrics:   cfg.metrics,
		spans:     cfg.spans,
	}, nil
}

// Close ends the session. All prior writes are durable once it returns.
func (s *Serializer) Close() error {
	err := s.backend.Close()
	observability.LogClose(s.logger, err)
	if err != nil {
		return &IOError{Op: "close", Group: s.path, Err: err}
	}
	return nil
}

// SessionID identifies this session in logs and spans.
func (s *Serializer) SessionID() string { return s.sessionID }

// Path is the file path the session was opened on.
func (s *Serializer) Path() string { return s.path }

// ProcessGroup is the group the session was opened for.
func (s *Serializer) ProcessGroup() procgroup.Group { return s.group }

// Packer is the packer encoding this session's records.
func (s *Serializer) Packer() packer.Packer { return s.packer }

// PackSize returns the size of the most recent pack on this session: the
// byte length if it succeeded, InvalidPackSize if it failed, and 0 before
// any pack. Each write also returns its own WriteOutcome; this accessor is
// for diagnostics that inspect a session after the fact.
func (s *Serializer) PackSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packSize
}

// Write packs state and persists it at (group, dataset).
// The default distribution is ProcessSplit; use WithMode to change it.
//
// If packing fails the outcome carries InvalidPackSize, the error is an
// *EncodingError, and nothing reaches the backend. If the backend fails the
// error is an *IOError and the outcome keeps the real packed size.
func (s *Serializer) Write(ctx context.Context, group, dataset string, state any, opts ...IOOption) (WriteOutcome, error) {
	cfg := newIOConfig(opts)
	return s.write(ctx, observability.SpanWrite, group, dataset, cfg.mode, state)
}

// WriteValues packs values as one composite record and persists it at
// (group, dataset) under mode.
func (s *Serializer) WriteValues(ctx context.Context, group, dataset string, mode DataSetMode, values ...any) (WriteOutcome, error) {
	return s.write(ctx, observability.SpanWrite, group, dataset, mode, values...)
}

// Read fetches the record at (group, dataset) and unpacks it into out.
// The default distribution is ProcessSplit; use WithMode to change it.
//
// Backend failures, including a missing or mode-mismatched dataset, are
// returned as *IOError; decode failures as *EncodingError. out may be
// partially modified on a decode failure.
func (s *Serializer) Read(ctx context.Context, group, dataset string, out any, opts ...IOOption) error {
	cfg := newIOConfig(opts)
	return s.read(ctx, group, dataset, cfg.mode, out)
}

// ReadValues fetches the composite record at (group, dataset) and unpacks
// it into outs, in order.
func (s *Serializer) ReadValues(ctx context.Context, group, dataset string, mode DataSetMode, outs ...any) error {
	return s.read(ctx, group, dataset, mode, outs...)
}

// write runs the pack-then-persist protocol with tracing, metrics and logging.
func (s *Serializer) write(ctx context.Context, span, group, dataset string, mode DataSetMode, values ...any) (WriteOutcome, error) {
	group = backend.NormalizeGroup(group)
	ctx, sp := s.spans.StartOpSpan(ctx, span, s.sessionID, group, dataset)
	done := observability.TimedOperation()

	outcome, err := s.packAndWrite(ctx, group, dataset, mode, values)

	s.spans.EndSpanWithError(sp, err)
	var size int64
	if outcome.Valid() {
		size = int64(outcome.Size)
	}
	s.metrics.RecordWrite(ctx, group, size, done(), failureKind(err))
	if err != nil {
		observability.LogWriteError(s.logger, group, dataset, failureKind(err), err)
		return outcome, err
	}
	observability.LogWrite(s.logger, group, dataset, mode.String(), outcome.Size)
	return outcome, nil
}

func (s *Serializer) packAndWrite(ctx context.Context, group, dataset string, mode DataSetMode, values []any) (WriteOutcome, error) {
	buf, outcome, err := s.pack(values)
	if err != nil {
		return outcome, &EncodingError{Op: "pack", Group: group, Dataset: dataset, Err: err}
	}
	s.spans.AddSpanEvent(ctx, "packed", attribute.Int64("size_bytes", int64(len(buf))))

	if mode == RootOnly && !procgroup.IsRoot(s.group) {
		return outcome, nil
	}
	if err := s.backend.Write(group, dataset, buf, mode); err != nil {
		return outcome, &IOError{Op: "write", Group: group, Dataset: dataset, Err: err}
	}
	return outcome, nil
}

// pack encodes values and records the size, or InvalidPackSize on failure.
// A panicking packer counts as a failed pack.
func (s *Serializer) pack(values []any) (buf []byte, outcome WriteOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("packer panicked: %v", r)
		}

		size := InvalidPackSize
		if err == nil {
			size = uint64(len(buf))
		}
		s.mu.Lock()
		s.packSize = size
		s.mu.Unlock()
		outcome = WriteOutcome{Size: size}
	}()

	buf, err = s.packer.Pack(values...)
	return
}

// read runs the fetch-then-unpack protocol with tracing, metrics and logging.
func (s *Serializer) read(ctx context.Context, group, dataset string, mode DataSetMode, outs ...any) error {
	group = backend.NormalizeGroup(group)
	ctx, sp := s.spans.StartOpSpan(ctx, observability.SpanRead, s.sessionID, group, dataset)
	done := observability.TimedOperation()

	size, err := s.fetchAndUnpack(group, dataset, mode, outs)

	s.spans.EndSpanWithError(sp, err)
	s.metrics.RecordRead(ctx, group, int64(size), done(), failureKind(err))
	if err != nil {
		observability.LogReadError(s.logger, group, dataset, failureKind(err), err)
		return err
	}
	observability.LogRead(s.logger, group, dataset, mode.String(), size)
	return nil
}

func (s *Serializer) fetchAndUnpack(group, dataset string, mode DataSetMode, outs []any) (int, error) {
	buf, err := s.backend.Read(group, dataset, mode)
	if err != nil {
		return 0, &IOError{Op: "read", Group: group, Dataset: dataset, Err: err}
	}
	if err := s.unpack(buf, outs); err != nil {
		return len(buf), &EncodingError{Op: "unpack", Group: group, Dataset: dataset, Err: err}
	}
	return len(buf), nil
}

func (s *Serializer) unpack(buf []byte, outs []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("packer panicked: %v", r)
		}
	}()
	return s.packer.Unpack(buf, outs...)
}
