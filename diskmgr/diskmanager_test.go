package diskmgr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"coredb/page"
)

func TestAllocateResidueClass(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "residue1.db"), 1, 3)
	require.NoError(t, err)
	defer m.Close()

	a := m.AllocatePage()
	b := m.AllocatePage()
	c := m.AllocatePage()

	require.EqualValues(t, 1, a)
	require.EqualValues(t, 4, b)
	require.EqualValues(t, 7, c)
	for _, id := range []page.ID{a, b, c} {
		require.EqualValues(t, 1, int64(id)%3)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "db.db"), 0, 1)
	require.NoError(t, err)
	defer m.Close()

	id := m.AllocatePage()
	buf := make([]byte, page.Size)
	buf[0] = 42

	require.NoError(t, m.WritePage(id, buf))

	out := make([]byte, page.Size)
	require.NoError(t, m.ReadPage(id, out))
	require.Equal(t, byte(42), out[0])
}

func TestReadNeverWrittenPageIsZeroed(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "db.db"), 0, 1)
	require.NoError(t, err)
	defer m.Close()

	id := m.AllocatePage()
	out := make([]byte, page.Size)
	require.NoError(t, m.ReadPage(id, out))
	for _, b := range out {
		require.Equal(t, byte(0), b)
	}
}

func TestReopenResumesAllocationCounter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.db")

	m, err := Open(path, 0, 1)
	require.NoError(t, err)
	id := m.AllocatePage()
	require.NoError(t, m.WritePage(id, make([]byte, page.Size)))
	require.NoError(t, m.Close())

	m2, err := Open(path, 0, 1)
	require.NoError(t, err)
	defer m2.Close()

	next := m2.AllocatePage()
	require.Greater(t, int64(next), int64(id))
}
