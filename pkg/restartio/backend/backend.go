// Package backend provides persistent group/dataset storage for checkpoint
// files.
//
// A file is a hierarchy of groups addressed by slash paths ("/",
// "/report_step"), each holding named datasets of opaque bytes. Every
// dataset is written under one of two distributions: root-only, where a
// single designated process owns the one physical copy, and process-split,
// where each rank stores its own slice under the same name.
package backend

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Backend persists datasets for one open file session.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Write stores data at (group, dataset) under mode.
	// Root-only writes from a rank other than the designated root are
	// accepted and discarded. The write is all-or-nothing.
	Write(group, dataset string, data []byte, mode DataSetMode) error

	// Read fetches the bytes at (group, dataset) under mode.
	// Returns ErrNotFound if nothing is stored for the caller and
	// ErrModeMismatch if the dataset was written under the other mode.
	Read(group, dataset string, mode DataSetMode) ([]byte, error)

	// List returns the sorted names of datasets and subgroups directly
	// inside group. A missing group lists as empty, not as an error.
	List(group string) ([]string, error)

	// Close ends the session. All prior writes are durable afterwards.
	Close() error
}

// DataSetMode is the distribution of a dataset across processes.
type DataSetMode int

const (
	// ProcessSplit stores one slice per rank under the same name.
	ProcessSplit DataSetMode = iota

	// RootOnly stores a single copy, written by the designated root.
	RootOnly
)

// String returns the mode name.
func (m DataSetMode) String() string {
	switch m {
	case ProcessSplit:
		return "process_split"
	case RootOnly:
		return "root_only"
	default:
		return "unknown"
	}
}

func (m DataSetMode) valid() bool {
	return m == ProcessSplit || m == RootOnly
}

// OpenMode selects how a file session treats existing contents.
type OpenMode int

const (
	// OpenRead opens an existing file; writes are rejected.
	OpenRead OpenMode = iota

	// OpenCreate starts a new file, discarding any existing contents.
	OpenCreate

	// OpenAppend opens an existing file for reading and writing.
	OpenAppend
)

// String returns the mode name as accepted by ParseOpenMode.
func (m OpenMode) String() string {
	switch m {
	case OpenRead:
		return "read"
	case OpenCreate:
		return "create"
	case OpenAppend:
		return "append"
	default:
		return "unknown"
	}
}

// ParseOpenMode parses "read", "create" or "append".
func ParseOpenMode(s string) (OpenMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "read", "readonly", "read_only":
		return OpenRead, nil
	case "create":
		return OpenCreate, nil
	case "append":
		return OpenAppend, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOpenMode, s)
	}
}

// Sentinel errors for backend operations.
var (
	// ErrNotFound indicates no dataset is stored at the address for the caller.
	ErrNotFound = errors.New("dataset not found")

	// ErrModeMismatch indicates the dataset exists under the other distribution mode.
	ErrModeMismatch = errors.New("dataset distribution mode mismatch")

	// ErrReadOnly indicates a write against a file opened with OpenRead.
	ErrReadOnly = errors.New("file opened read-only")

	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("file session closed")

	// ErrFileNotFound indicates OpenRead or OpenAppend on a missing file.
	ErrFileNotFound = errors.New("checkpoint file not found")

	// ErrInvalidPath indicates an empty or malformed dataset name.
	ErrInvalidPath = errors.New("invalid dataset path")

	// ErrInvalidMode indicates an unknown DataSetMode.
	ErrInvalidMode = errors.New("invalid dataset mode")

	// ErrInvalidOpenMode indicates an unknown OpenMode.
	ErrInvalidOpenMode = errors.New("invalid open mode")
)

// rootRank is the rank slot used to store root-only datasets.
const rootRank = -1

// NormalizeGroup cleans a group path to a leading slash and no trailing
// slash. The root group is "/".
func NormalizeGroup(group string) string {
	return path.Clean("/" + group)
}

// checkAddress validates a dataset name and mode and returns the
// normalized group.
func checkAddress(group, dataset string, mode DataSetMode) (string, error) {
	if dataset == "" || strings.Contains(dataset, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, dataset)
	}
	if !mode.valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	return NormalizeGroup(group), nil
}

// childOf returns the first path component of g below parent, if g is a
// strict descendant of parent.
func childOf(parent, g string) (string, bool) {
	prefix := parent
	if prefix != "/" {
		prefix += "/"
	}
	if g == parent || !strings.HasPrefix(g, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(g, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}

// sortedNames returns the keys of set in ascending order.
func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
