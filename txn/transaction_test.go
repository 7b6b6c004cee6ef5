package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"coredb/page"
)

func TestBeginAssignsIncreasingIDs(t *testing.T) {
	m := NewManager()
	t1 := m.Begin(RepeatableRead)
	t2 := m.Begin(RepeatableRead)
	require.Less(t, t1.ID, t2.ID)
	require.Equal(t, Growing, t1.State())
}

func TestEnterShrinkingOnlyFromGrowing(t *testing.T) {
	m := NewManager()
	t1 := m.Begin(RepeatableRead)
	t1.EnterShrinking()
	require.Equal(t, Shrinking, t1.State())

	t1.SetState(Committed)
	t1.EnterShrinking()
	require.Equal(t, Committed, t1.State())
}

func TestLockSetBookkeeping(t *testing.T) {
	m := NewManager()
	t1 := m.Begin(ReadCommitted)
	rid := page.RID{PageID: 1, Slot: 0}

	t1.AddShared(rid)
	require.True(t, t1.HoldsShared(rid))

	t1.UpgradeToExclusive(rid)
	require.False(t, t1.HoldsShared(rid))
	require.True(t, t1.HoldsExclusive(rid))

	t1.RemoveExclusive(rid)
	require.False(t, t1.HoldsExclusive(rid))
}

func TestAbortIsVisibleThroughManager(t *testing.T) {
	m := NewManager()
	t1 := m.Begin(RepeatableRead)
	m.Abort(t1)

	fetched := m.GetTransaction(t1.ID)
	require.Same(t, t1, fetched)
	require.Equal(t, Aborted, fetched.State())
}

func TestCommitFailsAfterAbort(t *testing.T) {
	m := NewManager()
	t1 := m.Begin(RepeatableRead)
	m.Abort(t1)
	require.False(t, m.Commit(t1))
}

func TestWriteRecordsPreserveOrder(t *testing.T) {
	m := NewManager()
	t1 := m.Begin(RepeatableRead)
	rid := page.RID{PageID: 1, Slot: 0}

	t1.RecordWrite(WriteRecord{Kind: WriteInsert, RID: rid, New: []byte("a")})
	t1.RecordWrite(WriteRecord{Kind: WriteUpdate, RID: rid, Old: []byte("a"), New: []byte("b")})

	recs := t1.WriteRecords()
	require.Len(t, recs, 2)
	require.Equal(t, WriteInsert, recs[0].Kind)
	require.Equal(t, WriteUpdate, recs[1].Kind)
}
