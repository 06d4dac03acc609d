package restartio_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/randalmurphal/restartio/pkg/restartio"
	"github.com/randalmurphal/restartio/pkg/restartio/backend"
	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"
	"github.com/stretchr/testify/require"
)

// wellState is a typical piece of simulator state.
type wellState struct {
	Name     string    `json:"name"`
	Step     int       `json:"step"`
	Pressure []float64 `json:"pressure"`
	Shut     bool      `json:"shut"`
}

func sampleState() wellState {
	return wellState{
		Name:     "PROD-1",
		Step:     12,
		Pressure: []float64{250.5, 1.0 / 3.0, -0.0001},
	}
}

var errPackBroken = errors.New("packer broken")

// failingPacker fails or panics on demand.
type failingPacker struct {
	packErr     error
	unpackErr   error
	panicOnPack bool
}

func (p failingPacker) Pack(values ...any) ([]byte, error) {
	if p.panicOnPack {
		panic("pack exploded")
	}
	if p.packErr != nil {
		return nil, p.packErr
	}
	return []byte("packed"), nil
}

func (p failingPacker) Unpack(data []byte, outs ...any) error {
	return p.unpackErr
}

func (p failingPacker) Name() string { return "failing" }

// recordingBackend wraps a backend and records every Write it receives.
type recordingBackend struct {
	backend.Backend

	mu       sync.Mutex
	writes   []string
	writeErr error
	listErr  error
}

func (r *recordingBackend) Write(group, dataset string, data []byte, mode backend.DataSetMode) error {
	r.mu.Lock()
	r.writes = append(r.writes, group+"|"+dataset)
	err := r.writeErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Backend.Write(group, dataset, data, mode)
}

func (r *recordingBackend) List(group string) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.Backend.List(group)
}

func (r *recordingBackend) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func newRecording(pg procgroup.Group) *recordingBackend {
	return &recordingBackend{Backend: backend.NewMemory(pg)}
}

// newMemorySession returns a single-process session over a fresh memory file.
func newMemorySession(t *testing.T, opts ...restartio.Option) *restartio.Serializer {
	t.Helper()
	pg := procgroup.Local()
	s, err := restartio.New(backend.NewMemory(pg), pg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// mustGroup builds a process group or fails the test.
func mustGroup(t *testing.T, rank, size, root int) procgroup.Static {
	t.Helper()
	pg, err := procgroup.New(rank, size, root)
	require.NoError(t, err)
	return pg
}
