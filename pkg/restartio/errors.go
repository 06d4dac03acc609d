package restartio

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/restartio/pkg/restartio/backend"
)

// Sentinel errors for failure classes. Every *EncodingError matches
// ErrEncoding and every *IOError matches ErrIO under errors.Is.
var (
	// ErrEncoding indicates the packer failed to encode or decode a record.
	ErrEncoding = errors.New("encoding failure")

	// ErrIO indicates the backend failed to persist, fetch or list data.
	ErrIO = errors.New("i/o failure")
)

// Sentinel errors for session setup and arguments.
var (
	// ErrNilProcessGroup indicates a session was opened without a process group.
	ErrNilProcessGroup = errors.New("process group required")

	// ErrNilBackend indicates New was called without a backend.
	ErrNilBackend = errors.New("backend required")

	// ErrInvalidReportStep indicates a negative report step number.
	ErrInvalidReportStep = errors.New("invalid report step")

	// ErrMissingPath indicates a session config without a path.
	ErrMissingPath = errors.New("checkpoint path required")

	// ErrUnknownBackend indicates a session config naming an unknown backend.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrUnknownExporter indicates a session config naming an unknown metrics exporter.
	ErrUnknownExporter = errors.New("unknown metrics exporter")
)

// Backend sentinels, re-exported so callers need not import backend.
var (
	ErrNotFound     = backend.ErrNotFound
	ErrModeMismatch = backend.ErrModeMismatch
	ErrReadOnly     = backend.ErrReadOnly
	ErrClosed       = backend.ErrClosed
	ErrFileNotFound = backend.ErrFileNotFound
)

// EncodingError wraps a packer failure with the dataset address.
type EncodingError struct {
	// Op is the operation that failed ("pack" or "unpack").
	Op string
	// Group and Dataset address the record being encoded or decoded.
	Group   string
	Dataset string
	// Err is the underlying packer error.
	Err error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, address(e.Group, e.Dataset), e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEncoding.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// IOError wraps a backend failure with the dataset address.
type IOError struct {
	// Op is the operation that failed ("write", "read" or "list").
	Op string
	// Group and Dataset address the data; Dataset is empty for "list".
	Group   string
	Dataset string
	// Err is the underlying backend error.
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, address(e.Group, e.Dataset), e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func address(group, dataset string) string {
	if dataset == "" {
		return group
	}
	if group == "/" {
		return "/" + dataset
	}
	return group + "/" + dataset
}

// Kind classifies a failure so callers can choose between aborting and
// falling back to another checkpoint.
type Kind int

const (
	// KindNone means no error.
	KindNone Kind = iota

	// KindEncoding means the packer rejected the data: a programming or
	// version mismatch. Retrying the same data will not help.
	KindEncoding

	// KindIO means the backend failed: disk, permissions, a missing
	// dataset, or a closed session.
	KindIO

	// KindUnknown means the error did not come from this package.
	KindUnknown
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEncoding:
		return "encoding"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Classify determines which failure class err belongs to.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var encErr *EncodingError
	if errors.As(err, &encErr) {
		return KindEncoding
	}

	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return KindIO
	}

	return KindUnknown
}

// failureKind is the metrics and log label for err; empty on success.
func failureKind(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).String()
}
