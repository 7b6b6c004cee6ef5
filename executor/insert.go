package executor

import (
	"coredb/page"
	"coredb/txn"
)

// InsertExecutor appends rows to a table, one per Next call. Next handles
// exactly one row and returns rather than recursing into itself to chase
// the next row inline, so the caller's own iteration drives progress and
// stack depth never grows with row count.
type InsertExecutor struct {
	table TableAccessor
	txn   *txn.Transaction
	locks LockService
	rows  [][]byte

	idx int
}

func NewInsertExecutor(table TableAccessor, t *txn.Transaction, locks LockService, rows [][]byte) *InsertExecutor {
	return &InsertExecutor{table: table, txn: t, locks: locks, rows: rows}
}

func (e *InsertExecutor) Init() {
	e.idx = 0
}

func (e *InsertExecutor) Next() (row []byte, rid page.RID, ok bool) {
	if e.idx >= len(e.rows) {
		return nil, page.RID{}, false
	}
	row = e.rows[e.idx]
	e.idx++

	newRID, inserted := e.table.InsertRow(row)
	if !inserted {
		return nil, page.RID{}, false
	}
	if !e.locks.LockExclusive(e.txn, newRID) {
		return nil, page.RID{}, false
	}

	e.txn.RecordWrite(txn.WriteRecord{Kind: txn.WriteInsert, RID: newRID, New: row})
	return row, newRID, true
}
