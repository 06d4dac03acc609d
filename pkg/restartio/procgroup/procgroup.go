// Package procgroup describes the set of cooperating processes that share a
// checkpoint file.
//
// The package does not communicate between processes. It only carries the
// calling process's rank, the size of the set, and which rank is designated
// to perform root-only writes.
package procgroup

import (
	"errors"
	"fmt"
)

// Group identifies the calling process within a cooperating set.
type Group interface {
	// Rank is the calling process's index in [0, Size).
	Rank() int

	// Size is the number of cooperating processes.
	Size() int

	// Root is the rank that performs root-only writes.
	Root() int
}

// Sentinel errors for group construction.
var (
	ErrInvalidSize = errors.New("process group size must be positive")
	ErrInvalidRank = errors.New("process rank out of range")
	ErrInvalidRoot = errors.New("root rank out of range")
)

// Static is a fixed Group value.
type Static struct {
	rank int
	size int
	root int
}

// Compile-time interface check.
var _ Group = Static{}

// New returns a Group for rank within a set of size processes, with root as
// the designated writer for root-only data.
func New(rank, size, root int) (Static, error) {
	if size <= 0 {
		return Static{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if rank < 0 || rank >= size {
		return Static{}, fmt.Errorf("%w: rank %d, size %d", ErrInvalidRank, rank, size)
	}
	if root < 0 || root >= size {
		return Static{}, fmt.Errorf("%w: root %d, size %d", ErrInvalidRoot, root, size)
	}
	return Static{rank: rank, size: size, root: root}, nil
}

// Local returns the single-process group: rank 0 of 1.
func Local() Static {
	return Static{rank: 0, size: 1, root: 0}
}

// Rank implements Group.
func (s Static) Rank() int { return s.rank }

// Size implements Group.
func (s Static) Size() int { return s.size }

// Root implements Group.
func (s Static) Root() int { return s.root }

// String formats the group as rank/size.
func (s Static) String() string {
	return fmt.Sprintf("%d/%d", s.rank, s.size)
}

// IsRoot reports whether the calling process is the designated root.
func IsRoot(g Group) bool {
	return g.Rank() == g.Root()
}
