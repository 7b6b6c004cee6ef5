package executor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"coredb/bufferpool"
	"coredb/diskmgr"
	"coredb/page"
)

func newTestPool(t *testing.T, poolSize int) *bufferpool.Instance {
	t.Helper()
	dm, err := diskmgr.Open(filepath.Join(t.TempDir(), "heap.db"), 0, 1)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return bufferpool.NewInstance(poolSize, dm, nil)
}

func TestInsertGetDeleteRoundTrip(t *testing.T) {
	pool := newTestPool(t, 16)
	heap, ok := NewTableHeap(pool, nil)
	require.True(t, ok)

	rid, ok := heap.InsertRow([]byte("hello"))
	require.True(t, ok)

	row, ok := heap.GetRow(rid)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), row)

	require.True(t, heap.DeleteRow(rid))
	_, ok = heap.GetRow(rid)
	require.False(t, ok)
}

func TestUpdateRowInPlaceWhenItFits(t *testing.T) {
	pool := newTestPool(t, 16)
	heap, ok := NewTableHeap(pool, nil)
	require.True(t, ok)

	rid, ok := heap.InsertRow([]byte("abcdefgh"))
	require.True(t, ok)

	newRID, ok := heap.UpdateRow(rid, []byte("xyz"))
	require.True(t, ok)
	require.Equal(t, rid, newRID)

	row, ok := heap.GetRow(rid)
	require.True(t, ok)
	require.Equal(t, []byte("xyz"), row)
}

func TestUpdateRowReinsertsWhenTooLarge(t *testing.T) {
	pool := newTestPool(t, 16)
	heap, ok := NewTableHeap(pool, nil)
	require.True(t, ok)

	rid, ok := heap.InsertRow([]byte("ab"))
	require.True(t, ok)

	bigger := []byte("this row is much longer than the original slot")
	newRID, ok := heap.UpdateRow(rid, bigger)
	require.True(t, ok)
	require.NotEqual(t, rid, newRID)

	_, ok = heap.GetRow(rid)
	require.False(t, ok, "old slot should now be a tombstone")

	row, ok := heap.GetRow(newRID)
	require.True(t, ok)
	require.Equal(t, bigger, row)
}

func TestInsertGrowsToNewPageWhenFull(t *testing.T) {
	pool := newTestPool(t, 16)
	heap, ok := NewTableHeap(pool, nil)
	require.True(t, ok)

	bigRow := make([]byte, page.Size/3)
	var last page.RID
	for i := 0; i < 4; i++ {
		rid, ok := heap.InsertRow(bigRow)
		require.True(t, ok)
		last = rid
	}
	require.Greater(t, len(heap.pageIDs), 1, "four large rows should have forced at least one new page")

	row, ok := heap.GetRow(last)
	require.True(t, ok)
	require.Equal(t, bigRow, row)
}

func TestIteratorSkipsTombstones(t *testing.T) {
	pool := newTestPool(t, 16)
	heap, ok := NewTableHeap(pool, nil)
	require.True(t, ok)

	var rids []page.RID
	for i := 0; i < 5; i++ {
		rid, ok := heap.InsertRow([]byte{byte(i)})
		require.True(t, ok)
		rids = append(rids, rid)
	}
	require.True(t, heap.DeleteRow(rids[2]))

	it := heap.Iterator()
	var seen [][]byte
	for {
		row, _, ok := it.Next()
		if !ok {
			break
		}
		seen = append(seen, row)
	}
	require.Len(t, seen, 4)
	require.NotContains(t, seen, []byte{2})
}
