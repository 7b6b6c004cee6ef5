package executor

import (
	"coredb/page"
	"coredb/txn"
)

// UpdateExecutor applies transform to each row its child produces,
// exclusive-locking the target rid first (upgrading from shared if the
// transaction already holds one). Any failure to acquire the lock or to
// apply the mutation triggers a best-effort unlock under isolation levels
// that allow early release and ends the stream.
type UpdateExecutor struct {
	child     Executor
	table     TableAccessor
	txn       *txn.Transaction
	locks     LockService
	transform func(old []byte) []byte
}

func NewUpdateExecutor(child Executor, table TableAccessor, t *txn.Transaction, locks LockService, transform func([]byte) []byte) *UpdateExecutor {
	return &UpdateExecutor{child: child, table: table, txn: t, locks: locks, transform: transform}
}

func (e *UpdateExecutor) Init() {
	e.child.Init()
}

func (e *UpdateExecutor) Next() (row []byte, rid page.RID, ok bool) {
	oldRow, rid, ok := e.child.Next()
	if !ok {
		return nil, page.RID{}, false
	}

	if !acquireExclusive(e.locks, e.txn, rid) {
		releaseIfEarly(e.locks, e.txn, rid)
		return nil, page.RID{}, false
	}

	newRow := e.transform(oldRow)
	newRID, updated := e.table.UpdateRow(rid, newRow)
	if !updated {
		releaseIfEarly(e.locks, e.txn, rid)
		return nil, page.RID{}, false
	}

	e.txn.RecordWrite(txn.WriteRecord{Kind: txn.WriteUpdate, RID: newRID, Old: oldRow, New: newRow})
	return newRow, newRID, true
}
