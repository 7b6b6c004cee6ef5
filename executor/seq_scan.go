package executor

import (
	"coredb/page"
	"coredb/txn"
)

// SeqScanExecutor walks a table heap's rows in slot order. Under
// REPEATABLE_READ and READ_COMMITTED it takes a shared lock on each
// produced rid before yielding; under READ_COMMITTED it releases that
// lock immediately after yielding (within the same Next call, since there
// is no separate post-yield hook); under READ_UNCOMMITTED it takes no
// lock at all.
type SeqScanExecutor struct {
	table TableAccessor
	txn   *txn.Transaction
	locks LockService

	it *HeapIterator
}

func NewSeqScanExecutor(table TableAccessor, t *txn.Transaction, locks LockService) *SeqScanExecutor {
	return &SeqScanExecutor{table: table, txn: t, locks: locks}
}

func (e *SeqScanExecutor) Init() {
	e.it = e.table.Iterator()
}

func (e *SeqScanExecutor) Next() (row []byte, rid page.RID, ok bool) {
	row, rid, ok = e.it.Next()
	if !ok {
		return nil, page.RID{}, false
	}

	if e.txn.Isolation == txn.ReadUncommitted {
		return row, rid, true
	}

	if !e.locks.LockShared(e.txn, rid) {
		return nil, page.RID{}, false
	}
	if e.txn.Isolation == txn.ReadCommitted {
		e.locks.Unlock(e.txn, rid)
	}
	return row, rid, true
}
