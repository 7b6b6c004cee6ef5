package executor

import (
	"coredb/page"
	"coredb/txn"
)

// DeleteExecutor tombstones each row its child produces, exclusive-locking
// the target rid first exactly like UpdateExecutor.
type DeleteExecutor struct {
	child Executor
	table TableAccessor
	txn   *txn.Transaction
	locks LockService
}

func NewDeleteExecutor(child Executor, table TableAccessor, t *txn.Transaction, locks LockService) *DeleteExecutor {
	return &DeleteExecutor{child: child, table: table, txn: t, locks: locks}
}

func (e *DeleteExecutor) Init() {
	e.child.Init()
}

func (e *DeleteExecutor) Next() (row []byte, rid page.RID, ok bool) {
	oldRow, rid, ok := e.child.Next()
	if !ok {
		return nil, page.RID{}, false
	}

	if !acquireExclusive(e.locks, e.txn, rid) {
		releaseIfEarly(e.locks, e.txn, rid)
		return nil, page.RID{}, false
	}

	if !e.table.DeleteRow(rid) {
		releaseIfEarly(e.locks, e.txn, rid)
		return nil, page.RID{}, false
	}

	e.txn.RecordWrite(txn.WriteRecord{Kind: txn.WriteDelete, RID: rid, Old: oldRow})
	return oldRow, rid, true
}
