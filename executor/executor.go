package executor

import (
	"coredb/page"
	"coredb/txn"
)

// Executor is the iterator protocol every node in an execution tree
// implements: Init resets iteration state, Next produces the next
// (row, rid) pair or ok=false at end-of-stream.
type Executor interface {
	Init()
	Next() (row []byte, rid page.RID, ok bool)
}

// TableAccessor is the consumed surface of a table heap, narrowed so
// executors are testable without a catalog: catalog lookup and SQL
// planning sit above this layer and are out of scope here.
type TableAccessor interface {
	InsertRow(row []byte) (page.RID, bool)
	GetRow(rid page.RID) ([]byte, bool)
	UpdateRow(rid page.RID, row []byte) (page.RID, bool)
	DeleteRow(rid page.RID) bool
	Iterator() *HeapIterator
}

// LockService is the consumed surface of the lock manager.
type LockService interface {
	LockShared(t *txn.Transaction, rid page.RID) bool
	LockExclusive(t *txn.Transaction, rid page.RID) bool
	LockUpgrade(t *txn.Transaction, rid page.RID) bool
	Unlock(t *txn.Transaction, rid page.RID) bool
}

// acquireExclusive gets t an exclusive lock on rid, upgrading an existing
// shared lock instead of requesting fresh when one is already held.
func acquireExclusive(locks LockService, t *txn.Transaction, rid page.RID) bool {
	if t.HoldsExclusive(rid) {
		return true
	}
	if t.HoldsShared(rid) {
		return locks.LockUpgrade(t, rid)
	}
	return locks.LockExclusive(t, rid)
}

// releaseIfEarly drops rid's lock when isolation allows early release
// (anything but REPEATABLE_READ), used for best-effort cleanup when a
// mutation executor fails partway through a row.
func releaseIfEarly(locks LockService, t *txn.Transaction, rid page.RID) {
	if t.Isolation != txn.RepeatableRead {
		locks.Unlock(t, rid)
	}
}
