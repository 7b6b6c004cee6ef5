// Package bufferpool implements a fixed-capacity frame cache: one
// BufferPoolInstance per shard, and a ParallelBufferPool routing by
// page-id residue class across N instances.
// Exposes the classic buffer pool method set — FetchPage/NewPage/
// UnpinPage/FlushPage/FlushAllPages/DeletePage — under a single
// instance-wide mutex, with a "flush victim if dirty before reuse"
// eviction order, restructured around a fixed frame array + free list +
// separate LRU replacer rather than an unbounded map-only cache, so
// capacity is enforced by a real bounded frame array with an O(1)
// replacer.
package bufferpool

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"coredb/diskmgr"
	"coredb/logging"
	"coredb/page"
	"coredb/replacer"
)

var (
	// ErrPageNotFound is logged by UnpinPage/FlushPage (which return false)
	// for a page id not currently resident in the pool.
	ErrPageNotFound = errors.New("bufferpool: page not resident")
	// ErrPagePinned is logged by DeletePage (which returns false) for a
	// resident page with a nonzero pin count.
	ErrPagePinned = errors.New("bufferpool: page is pinned")
	// ErrBufferPoolFull marks a NewPage/FetchPage failure because every
	// frame is pinned.
	ErrBufferPoolFull = errors.New("bufferpool: all frames pinned")
)

// Instance is one fixed-capacity buffer pool shard.
type Instance struct {
	mu sync.Mutex

	frames    []*page.Page
	pageTable map[page.ID]int // page id -> frame index
	freeList  []int           // frame indices never yet used or reclaimed

	replacer *replacer.LRU
	disk     *diskmgr.Manager
	metrics  PoolMetrics
	log      *zap.SugaredLogger
}

// NewInstance builds an Instance with poolSize frames backed by disk.
func NewInstance(poolSize int, disk *diskmgr.Manager, log *zap.SugaredLogger) *Instance {
	log = logging.OrNop(log)
	frames := make([]*page.Page, poolSize)
	freeList := make([]int, poolSize)
	for i := range frames {
		frames[i] = page.New(page.InvalidID)
		freeList[i] = i
	}
	return &Instance{
		frames:    frames,
		pageTable: make(map[page.ID]int, poolSize),
		freeList:  freeList,
		replacer:  replacer.New(),
		disk:      disk,
		metrics:   newRistrettoMetrics(log),
		log:       log,
	}
}

// acquireFrame returns a frame ready to hold a new page, preferring the
// free list before asking the replacer for a victim. Callers must hold mu.
func (bp *Instance) acquireFrame() (frameID int, ok bool) {
	if n := len(bp.freeList); n > 0 {
		frameID = bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return frameID, true
	}

	frameID, ok = bp.replacer.Victim()
	if !ok {
		return 0, false
	}

	victim := bp.frames[frameID]
	victim.Lock()
	if victim.ID != page.InvalidID {
		if victim.IsDirty {
			if err := bp.disk.WritePage(victim.ID, victim.Data); err != nil {
				bp.log.Errorw("failed to flush dirty victim page", "pageID", victim.ID, "error", err)
			}
		}
		delete(bp.pageTable, victim.ID)
	}
	victim.Unlock()
	return frameID, true
}

// NewPage allocates a fresh page id, gives it a frame, flushes it through
// to disk immediately so the id is durable, pins it (PinCount=1), and
// returns it. ok is false only when every frame is pinned.
func (bp *Instance) NewPage() (pg *page.Page, ok bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.acquireFrame()
	if !ok {
		bp.log.Debugw("NewPage failed", "error", ErrBufferPoolFull)
		return nil, false
	}

	id := bp.disk.AllocatePage()
	pg = bp.frames[frameID]
	pg.Lock()
	pg.Reset()
	pg.ID = id
	pg.PinCount = 1
	pg.Unlock()

	if err := bp.disk.WritePage(id, pg.Data); err != nil {
		bp.log.Errorw("failed to durably write new page", "pageID", id, "error", err)
	}

	bp.pageTable[id] = frameID
	bp.replacer.Pin(frameID)
	bp.log.Debugw("new page", "pageID", id, "frame", frameID)
	return pg, true
}

// FetchPage returns the page for id, incrementing its pin count. If the
// page is not resident it is read from disk into a fresh frame. ok is
// false when every frame is pinned or the disk read fails.
func (bp *Instance) FetchPage(id page.ID) (pg *page.Page, ok bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameID, resident := bp.pageTable[id]; resident {
		pg = bp.frames[frameID]
		pg.Lock()
		pg.PinCount++
		pg.Unlock()
		bp.replacer.Pin(frameID)
		bp.metrics.Touch(id)
		bp.log.Debugw("buffer pool hit", "pageID", id, "frame", frameID)
		return pg, true
	}

	frameID, ok := bp.acquireFrame()
	if !ok {
		bp.log.Debugw("FetchPage failed", "pageID", id, "error", ErrBufferPoolFull)
		return nil, false
	}

	pg = bp.frames[frameID]
	pg.Lock()
	pg.Reset()
	pg.ID = id
	if err := bp.disk.ReadPage(id, pg.Data); err != nil {
		pg.Unlock()
		bp.log.Errorw("failed to read page from disk", "pageID", id, "error", err)
		bp.freeList = append(bp.freeList, frameID)
		return nil, false
	}
	pg.PinCount = 1
	pg.Unlock()

	bp.pageTable[id] = frameID
	bp.replacer.Pin(frameID)
	bp.metrics.Touch(id)
	bp.log.Debugw("buffer pool miss, loaded from disk", "pageID", id, "frame", frameID)
	return pg, true
}

// UnpinPage decrements id's pin count, marking it dirty if isDirty is
// true (the dirty bit is never cleared here). When the pin count reaches
// zero the frame becomes eligible for eviction.
func (bp *Instance) UnpinPage(id page.ID, isDirty bool) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, resident := bp.pageTable[id]
	if !resident {
		bp.log.Debugw("unpin failed", "pageID", id, "error", ErrPageNotFound)
		return false
	}

	pg := bp.frames[frameID]
	pg.Lock()
	if pg.PinCount == 0 {
		pg.Unlock()
		bp.log.Debugw("unpin failed: already at pin count 0", "pageID", id)
		return false
	}
	pg.PinCount--
	if isDirty {
		pg.IsDirty = true
	}
	reachedZero := pg.PinCount == 0
	pg.Unlock()

	if reachedZero {
		bp.replacer.Unpin(frameID)
	}
	return true
}

// FlushPage writes id to disk and clears its dirty bit, regardless of the
// bit's previous value. It does not alter the pin count.
func (bp *Instance) FlushPage(id page.ID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(id)
}

func (bp *Instance) flushLocked(id page.ID) bool {
	frameID, resident := bp.pageTable[id]
	if !resident {
		bp.log.Debugw("flush failed", "pageID", id, "error", ErrPageNotFound)
		return false
	}
	pg := bp.frames[frameID]
	pg.Lock()
	defer pg.Unlock()
	if err := bp.disk.WritePage(id, pg.Data); err != nil {
		bp.log.Errorw("failed to flush page", "pageID", id, "error", err)
		return false
	}
	pg.IsDirty = false
	return true
}

// FlushAllPages writes every resident page to disk.
func (bp *Instance) FlushAllPages() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for id := range bp.pageTable {
		bp.flushLocked(id)
	}
}

// DeletePage removes id from the pool. It returns true if the page was
// already absent; false if it is pinned; otherwise it resets the frame,
// returns it to the free list, and deallocates the id on disk.
func (bp *Instance) DeletePage(id page.ID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, resident := bp.pageTable[id]
	if !resident {
		return true
	}

	pg := bp.frames[frameID]
	pg.Lock()
	if pg.PinCount > 0 {
		pg.Unlock()
		bp.log.Debugw("delete failed", "pageID", id, "error", ErrPagePinned)
		return false
	}
	pg.Reset()
	pg.Unlock()

	delete(bp.pageTable, id)
	bp.replacer.Pin(frameID) // ensure it's not left tracked as a victim
	bp.freeList = append(bp.freeList, frameID)
	bp.disk.DeallocatePage(id)
	bp.log.Debugw("deleted page", "pageID", id, "frame", frameID)
	return true
}

// Stats reports the instance's current occupancy and hit ratio.
func (bp *Instance) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	s := Stats{
		TotalPages: len(bp.pageTable),
		Capacity:   len(bp.frames),
		HitRate:    bp.metrics.Ratio(),
	}
	for _, frameID := range bp.pageTable {
		pg := bp.frames[frameID]
		pg.RLock()
		if pg.PinCount > 0 {
			s.PinnedPages++
		}
		if pg.IsDirty {
			s.DirtyPages++
		}
		pg.RUnlock()
	}
	return s
}

// Size returns the number of resident pages.
func (bp *Instance) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pageTable)
}

// Capacity returns the fixed frame count.
func (bp *Instance) Capacity() int {
	return len(bp.frames)
}
