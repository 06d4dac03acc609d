package backend_test

import (
	"testing"

	"github.com/randalmurphal/restartio/pkg/restartio/backend"
	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranks(t *testing.T, size, root int) []procgroup.Group {
	t.Helper()
	groups := make([]procgroup.Group, size)
	for i := range groups {
		g, err := procgroup.New(i, size, root)
		require.NoError(t, err)
		groups[i] = g
	}
	return groups
}

func TestMemory_ProcessSplitSlices(t *testing.T) {
	name := t.Name()
	defer backend.RemoveMemory(name)
	pgs := ranks(t, 3, 0)

	handles := make([]*backend.Memory, len(pgs))
	for i, pg := range pgs {
		h, err := backend.OpenMemory(name, backend.OpenCreate, pg)
		require.NoError(t, err)
		defer h.Close()
		handles[i] = h
	}

	for i, h := range handles {
		require.NoError(t, h.Write("/report_step", "5", []byte{byte('a' + i)}, backend.ProcessSplit))
	}

	for i, h := range handles {
		data, err := h.Read("/report_step", "5", backend.ProcessSplit)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte('a' + i)}, data)
	}
	assert.Equal(t, 3, handles[0].Len())

	names, err := handles[2].List("/report_step")
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, names)
}

func TestMemory_RootOnlySingleWrite(t *testing.T) {
	name := t.Name()
	defer backend.RemoveMemory(name)
	pgs := ranks(t, 4, 2)

	handles := make([]*backend.Memory, len(pgs))
	for i, pg := range pgs {
		h, err := backend.OpenMemory(name, backend.OpenCreate, pg)
		require.NoError(t, err)
		handles[i] = h
	}

	// Non-root writes are accepted but have no effect
	require.NoError(t, handles[0].Write("/", "simulator_info", []byte("from-0"), backend.RootOnly))
	_, err := handles[0].Read("/", "simulator_info", backend.RootOnly)
	assert.ErrorIs(t, err, backend.ErrNotFound)

	require.NoError(t, handles[2].Write("/", "simulator_info", []byte("from-root"), backend.RootOnly))
	for _, h := range handles {
		data, err := h.Read("/", "simulator_info", backend.RootOnly)
		require.NoError(t, err)
		assert.Equal(t, []byte("from-root"), data)
	}
	assert.Equal(t, 1, handles[0].Len())
}

func TestMemory_RootCreateAfterPeersAttach(t *testing.T) {
	name := t.Name()
	defer backend.RemoveMemory(name)
	pgs := ranks(t, 2, 1)

	stale, err := backend.OpenMemory(name, backend.OpenCreate, pgs[0])
	require.NoError(t, err)
	require.NoError(t, stale.Write("/old", "x", []byte("old"), backend.ProcessSplit))

	peer, err := backend.OpenMemory(name, backend.OpenCreate, pgs[0])
	require.NoError(t, err)
	root, err := backend.OpenMemory(name, backend.OpenCreate, pgs[1])
	require.NoError(t, err)

	// The root's create empties the file every earlier handle is attached to
	_, err = peer.Read("/old", "x", backend.ProcessSplit)
	assert.ErrorIs(t, err, backend.ErrNotFound)

	require.NoError(t, root.Write("/", "simulator_info", []byte("hdr"), backend.RootOnly))
	require.NoError(t, peer.Write("/state", "cells", []byte("p0"), backend.ProcessSplit))

	data, err := peer.Read("/", "simulator_info", backend.RootOnly)
	require.NoError(t, err)
	assert.Equal(t, []byte("hdr"), data)
	assert.Equal(t, 2, root.Len())
}

func TestMemory_MissingRankSlice(t *testing.T) {
	name := t.Name()
	defer backend.RemoveMemory(name)
	pgs := ranks(t, 2, 0)

	h0, err := backend.OpenMemory(name, backend.OpenCreate, pgs[0])
	require.NoError(t, err)
	h1, err := backend.OpenMemory(name, backend.OpenCreate, pgs[1])
	require.NoError(t, err)

	require.NoError(t, h0.Write("/state", "cells", []byte("x"), backend.ProcessSplit))

	_, err = h1.Read("/state", "cells", backend.ProcessSplit)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestMemory_OpenModes(t *testing.T) {
	name := t.Name()
	defer backend.RemoveMemory(name)
	pg := procgroup.Local()

	_, err := backend.OpenMemory(name, backend.OpenAppend, pg)
	assert.ErrorIs(t, err, backend.ErrFileNotFound)
	_, err = backend.OpenMemory(name, backend.OpenRead, pg)
	assert.ErrorIs(t, err, backend.ErrFileNotFound)

	w, err := backend.OpenMemory(name, backend.OpenCreate, pg)
	require.NoError(t, err)
	require.NoError(t, w.Write("/report_step", "1", []byte("one"), backend.ProcessSplit))
	require.NoError(t, w.Close())

	a, err := backend.OpenMemory(name, backend.OpenAppend, pg)
	require.NoError(t, err)
	require.NoError(t, a.Write("/report_step", "2", []byte("two"), backend.ProcessSplit))
	names, err := a.List("/report_step")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, names)
	require.NoError(t, a.Close())

	r, err := backend.OpenMemory(name, backend.OpenRead, pg)
	require.NoError(t, err)
	defer r.Close()
	assert.ErrorIs(t, r.Write("/report_step", "3", []byte("three"), backend.ProcessSplit), backend.ErrReadOnly)
	data, err := r.Read("/report_step", "2", backend.ProcessSplit)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	// Create on the root discards previous contents
	c, err := backend.OpenMemory(name, backend.OpenCreate, pg)
	require.NoError(t, err)
	defer c.Close()
	names, err = c.List("/report_step")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemory_CopiesData(t *testing.T) {
	b := backend.NewMemory(procgroup.Local())
	defer b.Close()

	data := []byte("original")
	require.NoError(t, b.Write("/", "d", data, backend.RootOnly))
	data[0] = 'X'

	loaded, err := b.Read("/", "d", backend.RootOnly)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), loaded)

	loaded[0] = 'Y'
	again, err := b.Read("/", "d", backend.RootOnly)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
