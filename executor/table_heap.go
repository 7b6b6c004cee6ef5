// Package executor implements the table heap and the executor iterator
// protocol (SeqScan/Insert/Update/Delete) on top of a buffer pool instance
// and the lock manager. The table heap follows the classic slotted heap
// file shape (InsertRecord/GetRecord/UpdateRecord/DeleteRecord over a
// chain of pages) generalized to a standalone multi-page table heap that
// owns its own page list in memory rather than a single-file,
// catalog-driven one.
package executor

import (
	"sync"

	"go.uber.org/zap"

	"coredb/logging"
	"coredb/page"
)

// Pool is the subset of *bufferpool.Instance the table heap needs.
type Pool interface {
	NewPage() (*page.Page, bool)
	FetchPage(id page.ID) (*page.Page, bool)
	UnpinPage(id page.ID, isDirty bool) bool
}

// TableHeap is a sequence of heap pages holding one table's rows. It
// carries no file/catalog identity of its own: it owns a page list in
// memory, fine for this core's scope where a catalog shim is the only
// consumer (see TableAccessor).
type TableHeap struct {
	pool Pool
	log  *zap.SugaredLogger

	mu      sync.Mutex
	pageIDs []page.ID
}

// NewTableHeap allocates the first heap page and returns a TableHeap over
// it, or ok=false if the pool has no free frame.
func NewTableHeap(pool Pool, log *zap.SugaredLogger) (*TableHeap, bool) {
	log = logging.OrNop(log)
	pg, ok := pool.NewPage()
	if !ok {
		return nil, false
	}
	pg.Lock()
	page.InitHeapPage(pg)
	pg.Unlock()
	pool.UnpinPage(pg.ID, true)

	return &TableHeap{
		pool:    pool,
		log:     log,
		pageIDs: []page.ID{pg.ID},
	}, true
}

// InsertRow appends row to the heap's last page, allocating a new page if
// that page has no room; earlier pages are not searched for space. ok is
// false if the pool is exhausted or row does not fit an empty page.
func (h *TableHeap) InsertRow(row []byte) (rid page.RID, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	lastID := h.pageIDs[len(h.pageIDs)-1]
	pg, fetched := h.pool.FetchPage(lastID)
	if !fetched {
		return page.RID{}, false
	}
	pg.Lock()
	heap := page.NewHeap(pg)
	slot, inserted := heap.InsertRecord(row)
	pg.Unlock()
	h.pool.UnpinPage(pg.ID, inserted)

	if inserted {
		return page.RID{PageID: lastID, Slot: slot}, true
	}

	// Last page is full: grow the heap with a fresh page and retry there.
	newPg, ok := h.pool.NewPage()
	if !ok {
		return page.RID{}, false
	}
	newPg.Lock()
	page.InitHeapPage(newPg)
	newHeap := page.NewHeap(newPg)
	slot, inserted = newHeap.InsertRecord(row)
	newPg.Unlock()
	h.pool.UnpinPage(newPg.ID, true)

	if !inserted {
		h.log.Errorw("table heap: row too large for an empty page", "rowLen", len(row))
		return page.RID{}, false
	}
	h.pageIDs = append(h.pageIDs, newPg.ID)
	return page.RID{PageID: newPg.ID, Slot: slot}, true
}

// GetRow returns the row at rid, or ok=false if its slot is tombstoned or
// out of range.
func (h *TableHeap) GetRow(rid page.RID) (row []byte, ok bool) {
	pg, fetched := h.pool.FetchPage(rid.PageID)
	if !fetched {
		return nil, false
	}
	pg.RLock()
	heap := page.NewHeap(pg)
	row, ok = heap.GetRecord(rid.Slot)
	pg.RUnlock()
	h.pool.UnpinPage(pg.ID, false)
	return row, ok
}

// UpdateRow overwrites rid's row in place if row fits the original slot;
// otherwise it tombstones rid and re-inserts row as a new row, returning
// the new RID. Tables never move a live row within a page once it no
// longer fits, matching the classic heap-file delete-then-reinsert
// semantics the write-record log relies on.
func (h *TableHeap) UpdateRow(rid page.RID, row []byte) (newRID page.RID, ok bool) {
	pg, fetched := h.pool.FetchPage(rid.PageID)
	if !fetched {
		return page.RID{}, false
	}
	pg.Lock()
	heap := page.NewHeap(pg)
	updated := heap.UpdateRecordInPlace(rid.Slot, row)
	_, live := heap.GetRecord(rid.Slot)
	pg.Unlock()

	if updated {
		h.pool.UnpinPage(pg.ID, true)
		return rid, true
	}
	if !live {
		h.pool.UnpinPage(pg.ID, false)
		return page.RID{}, false
	}

	// Didn't fit: insert fresh while the old slot is still live, so the
	// insert cannot reuse it, then tombstone the old slot.
	newRID, ok = h.InsertRow(row)
	if !ok {
		h.pool.UnpinPage(pg.ID, false)
		return page.RID{}, false
	}
	pg.Lock()
	heap.DeleteRecord(rid.Slot)
	pg.Unlock()
	h.pool.UnpinPage(pg.ID, true)
	return newRID, true
}

// DeleteRow tombstones rid. It does not compact the page.
func (h *TableHeap) DeleteRow(rid page.RID) bool {
	pg, fetched := h.pool.FetchPage(rid.PageID)
	if !fetched {
		return false
	}
	pg.Lock()
	heap := page.NewHeap(pg)
	deleted := heap.DeleteRecord(rid.Slot)
	pg.Unlock()
	h.pool.UnpinPage(pg.ID, deleted)
	return deleted
}

// Iterator returns a fresh HeapIterator positioned before the first row.
func (h *TableHeap) Iterator() *HeapIterator {
	h.mu.Lock()
	pageIDs := make([]page.ID, len(h.pageIDs))
	copy(pageIDs, h.pageIDs)
	h.mu.Unlock()
	return &HeapIterator{pool: h.pool, pageIDs: pageIDs, pageIdx: -1}
}

// HeapIterator yields (row, rid) pairs in page/slot order, skipping
// tombstones.
type HeapIterator struct {
	pool    Pool
	pageIDs []page.ID

	pageIdx  int
	slot     uint32
	slotMax  uint32
	curID    page.ID
	hasCur   bool
}

// Next advances the iterator, returning ok=false once every page is
// exhausted.
func (it *HeapIterator) Next() (row []byte, rid page.RID, ok bool) {
	for {
		if !it.hasCur {
			it.pageIdx++
			if it.pageIdx >= len(it.pageIDs) {
				return nil, page.RID{}, false
			}
			it.curID = it.pageIDs[it.pageIdx]
			pg, fetched := it.pool.FetchPage(it.curID)
			if !fetched {
				return nil, page.RID{}, false
			}
			pg.RLock()
			heap := page.NewHeap(pg)
			it.slotMax = uint32(heap.SlotCount())
			pg.RUnlock()
			it.pool.UnpinPage(pg.ID, false)
			it.slot = 0
			it.hasCur = true
		}

		if it.slot >= it.slotMax {
			it.hasCur = false
			continue
		}

		pg, fetched := it.pool.FetchPage(it.curID)
		if !fetched {
			return nil, page.RID{}, false
		}
		pg.RLock()
		heap := page.NewHeap(pg)
		row, ok = heap.GetRecord(it.slot)
		pg.RUnlock()
		it.pool.UnpinPage(pg.ID, false)

		slot := it.slot
		it.slot++
		if ok {
			return row, page.RID{PageID: it.curID, Slot: slot}, true
		}
		// Tombstoned slot: keep scanning within this page, no recursion.
	}
}
