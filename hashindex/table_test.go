package hashindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"coredb/bufferpool"
	"coredb/diskmgr"
)

func newTestPool(t *testing.T, poolSize int) *bufferpool.Instance {
	t.Helper()
	dm, err := diskmgr.Open(filepath.Join(t.TempDir(), "hash.db"), 0, 1)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return bufferpool.NewInstance(poolSize, dm, nil)
}

// identityHash treats a uint64 key as its own hash. Under it, two keys
// collide in the same directory slot whenever they agree on their low
// bits, e.g. 2 and 4 both route to slot 0 at global depth 1.
func identityHash(k uint64) uint64 { return k }

func TestInsertTriggersSplitWhenBucketFills(t *testing.T) {
	pool := newTestPool(t, 32)
	tbl, ok := New[uint64, uint64](pool, 2, Uint64Codec(), Uint64Codec(), identityHash, nil)
	require.True(t, ok)

	// 2 and 4 both hash to directory slot 0 at global depth 1, filling its
	// capacity-2 bucket exactly; 6 also wants slot 0 and forces a split.
	require.True(t, tbl.Insert(2, 20))
	require.True(t, tbl.Insert(4, 40))
	require.True(t, tbl.Insert(6, 60))

	dirPg, dir := tbl.fetchDir()
	require.EqualValues(t, 2, dir.GlobalDepth())
	pool.UnpinPage(dirPg.ID, false)

	require.Equal(t, []uint64{20}, tbl.GetValue(2))
	require.Equal(t, []uint64{40}, tbl.GetValue(4))
	require.Equal(t, []uint64{60}, tbl.GetValue(6))
}

func TestInsertDuplicateRejected(t *testing.T) {
	pool := newTestPool(t, 32)
	tbl, ok := New[uint64, uint64](pool, 4, Uint64Codec(), Uint64Codec(), identityHash, nil)
	require.True(t, ok)

	require.True(t, tbl.Insert(1, 10))
	require.False(t, tbl.Insert(1, 10))
	require.Equal(t, []uint64{10}, tbl.GetValue(1))
}

func TestDirectoryDoublesThenHalvesOnMerge(t *testing.T) {
	pool := newTestPool(t, 32)
	tbl, ok := New[uint64, uint64](pool, 2, Uint64Codec(), Uint64Codec(), identityHash, nil)
	require.True(t, ok)

	require.True(t, tbl.Insert(2, 20))
	require.True(t, tbl.Insert(4, 40))
	require.True(t, tbl.Insert(6, 60))

	dirPg, dir := tbl.fetchDir()
	require.EqualValues(t, 2, dir.GlobalDepth())
	pool.UnpinPage(dirPg.ID, false)

	// Undo the split by removing every key that landed in the grown slot.
	require.True(t, tbl.Remove(6, 60))
	require.True(t, tbl.Remove(2, 20))

	dirPg, dir = tbl.fetchDir()
	require.EqualValues(t, 1, dir.GlobalDepth())
	require.EqualValues(t, 2, dir.Size())
	pool.UnpinPage(dirPg.ID, false)

	require.Equal(t, []uint64{40}, tbl.GetValue(4))
}

func TestGetValueMissingKeyReturnsEmpty(t *testing.T) {
	pool := newTestPool(t, 32)
	tbl, ok := New[uint64, uint64](pool, 4, Uint64Codec(), Uint64Codec(), identityHash, nil)
	require.True(t, ok)

	require.Empty(t, tbl.GetValue(99))
}
