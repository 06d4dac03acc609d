package backend

import (
	"sync"

	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"
)

// Memory is an in-memory backend for testing.
// Data is lost when the process exits.
//
// Files opened with OpenMemory under the same name share their contents,
// so several ranks in one test process can cooperate on one file.
type Memory struct {
	file     *memFile
	group    procgroup.Group
	readOnly bool

	mu     sync.RWMutex
	closed bool
}

// memFile is the shared contents behind one or more Memory handles.
type memFile struct {
	mu     sync.RWMutex
	groups map[string]map[string]*memDataset // group -> dataset -> data
}

// memDataset holds one dataset in either distribution.
type memDataset struct {
	mode   DataSetMode
	root   []byte
	slices map[int][]byte
}

var (
	memFilesMu sync.Mutex
	memFiles   = make(map[string]*memFile)
)

func newMemFile() *memFile {
	return &memFile{groups: make(map[string]map[string]*memDataset)}
}

// NewMemory returns a fresh, unnamed in-memory file for g.
func NewMemory(g procgroup.Group) *Memory {
	return &Memory{file: newMemFile(), group: g}
}

// OpenMemory opens the named in-memory file.
//
// OpenCreate on the root rank discards existing contents in place, so
// ranks that attached earlier see the emptied file; other ranks attach to
// the file as it is. OpenAppend and OpenRead require the
// file to exist.
func OpenMemory(name string, mode OpenMode, g procgroup.Group) (*Memory, error) {
	memFilesMu.Lock()
	defer memFilesMu.Unlock()

	f, ok := memFiles[name]
	switch mode {
	case OpenCreate:
		switch {
		case !ok:
			f = newMemFile()
			memFiles[name] = f
		case procgroup.IsRoot(g):
			f.mu.Lock()
			f.groups = make(map[string]map[string]*memDataset)
			f.mu.Unlock()
		}
	case OpenAppend, OpenRead:
		if !ok {
			return nil, ErrFileNotFound
		}
	default:
		return nil, ErrInvalidOpenMode
	}

	return &Memory{file: f, group: g, readOnly: mode == OpenRead}, nil
}

// RemoveMemory forgets the named in-memory file.
// Handles already open keep working on the old contents.
func RemoveMemory(name string) {
	memFilesMu.Lock()
	defer memFilesMu.Unlock()
	delete(memFiles, name)
}

// Write implements Backend.
func (m *Memory) Write(group, dataset string, data []byte, mode DataSetMode) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}

	group, err := checkAddress(group, dataset, mode)
	if err != nil {
		return err
	}
	if mode == RootOnly && !procgroup.IsRoot(m.group) {
		return nil
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	f := m.file
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.groups[group] == nil {
		f.groups[group] = make(map[string]*memDataset)
	}
	ds, ok := f.groups[group][dataset]
	if ok && ds.mode != mode {
		return ErrModeMismatch
	}
	if !ok {
		ds = &memDataset{mode: mode}
		f.groups[group][dataset] = ds
	}

	if mode == RootOnly {
		ds.root = stored
		return nil
	}
	if ds.slices == nil {
		ds.slices = make(map[int][]byte)
	}
	ds.slices[m.group.Rank()] = stored
	return nil
}

// Read implements Backend.
func (m *Memory) Read(group, dataset string, mode DataSetMode) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	group, err := checkAddress(group, dataset, mode)
	if err != nil {
		return nil, err
	}

	f := m.file
	f.mu.RLock()
	defer f.mu.RUnlock()

	ds, ok := f.groups[group][dataset]
	if !ok {
		return nil, ErrNotFound
	}
	if ds.mode != mode {
		return nil, ErrModeMismatch
	}

	stored := ds.root
	if mode == ProcessSplit {
		stored, ok = ds.slices[m.group.Rank()]
		if !ok {
			return nil, ErrNotFound
		}
	}

	// Return a copy to prevent modification
	result := make([]byte, len(stored))
	copy(result, stored)
	return result, nil
}

// List implements Backend.
func (m *Memory) List(group string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	group = NormalizeGroup(group)

	f := m.file
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make(map[string]struct{})
	for name := range f.groups[group] {
		names[name] = struct{}{}
	}
	for g, datasets := range f.groups {
		if len(datasets) == 0 {
			continue
		}
		if child, ok := childOf(group, g); ok {
			names[child] = struct{}{}
		}
	}
	return sortedNames(names), nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Len returns the number of stored dataset slices across all groups,
// counting each root-only dataset once. Useful for testing.
func (m *Memory) Len() int {
	f := m.file
	f.mu.RLock()
	defer f.mu.RUnlock()

	count := 0
	for _, datasets := range f.groups {
		for _, ds := range datasets {
			if ds.mode == RootOnly {
				count++
				continue
			}
			count += len(ds.slices)
		}
	}
	return count
}
