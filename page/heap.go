package page

import "encoding/binary"

// Heap page wire layout: a slotted page trimmed to this engine's scope —
// no LSN/WAL bookkeeping (recovery is out of scope), no multi-file
// fields (one Page.ID already names a page uniquely).
//
//	offset  size  field
//	0       8     reserved  — unused, kept for header-size parity with a
//	                          record LSN field; recovery is out of scope
//	8       2     RecordEndPtr     uint16 — first free byte after last record
//	10      2     SlotRegionStart  uint16 — first byte of the slot directory
//	12      2     NumRows          uint16 — live records
//	14      2     NumTombstones    uint16
//	16      2     SlotCount        uint16 — live + tombstoned slots
//	──────────────────────────────────────
//	18            HeapHeaderSize
//
// Records grow forward from HeapHeaderSize; the slot directory grows
// backward from Size. A slot is {Offset uint16, Length uint16}; Length==0
// marks a tombstone.
const (
	HeapHeaderSize = 18

	heapOffRecordEndPtr    = 8
	heapOffSlotRegionStart = 10
	heapOffNumRows         = 12
	heapOffNumTombstones   = 14
	heapOffSlotCount       = 16

	HeapSlotSize = 4
)

// Heap is a thin accessor over a *Page holding heap page content.
type Heap struct {
	pg *Page
}

func NewHeap(pg *Page) *Heap { return &Heap{pg: pg} }

// InitHeapPage stamps a fresh heap page header.
func InitHeapPage(pg *Page) *Heap {
	h := &Heap{pg: pg}
	h.setRecordEndPtr(HeapHeaderSize)
	h.setSlotRegionStart(Size)
	h.setNumRows(0)
	h.setNumTombstones(0)
	h.setSlotCount(0)
	return h
}

func (h *Heap) RecordEndPtr() uint16    { return binary.LittleEndian.Uint16(h.pg.Data[heapOffRecordEndPtr:]) }
func (h *Heap) SlotRegionStart() uint16 { return binary.LittleEndian.Uint16(h.pg.Data[heapOffSlotRegionStart:]) }
func (h *Heap) NumRows() uint16         { return binary.LittleEndian.Uint16(h.pg.Data[heapOffNumRows:]) }
func (h *Heap) NumTombstones() uint16   { return binary.LittleEndian.Uint16(h.pg.Data[heapOffNumTombstones:]) }
func (h *Heap) SlotCount() uint16       { return binary.LittleEndian.Uint16(h.pg.Data[heapOffSlotCount:]) }

func (h *Heap) setRecordEndPtr(v uint16)    { binary.LittleEndian.PutUint16(h.pg.Data[heapOffRecordEndPtr:], v) }
func (h *Heap) setSlotRegionStart(v uint16) { binary.LittleEndian.PutUint16(h.pg.Data[heapOffSlotRegionStart:], v) }
func (h *Heap) setNumRows(v uint16)         { binary.LittleEndian.PutUint16(h.pg.Data[heapOffNumRows:], v) }
func (h *Heap) setNumTombstones(v uint16)   { binary.LittleEndian.PutUint16(h.pg.Data[heapOffNumTombstones:], v) }
func (h *Heap) setSlotCount(v uint16)       { binary.LittleEndian.PutUint16(h.pg.Data[heapOffSlotCount:], v) }

func (h *Heap) slotOffset(slot uint32) int {
	return Size - (int(slot)+1)*HeapSlotSize
}

func (h *Heap) slotAt(slot uint32) (offset, length uint16) {
	off := h.slotOffset(slot)
	return binary.LittleEndian.Uint16(h.pg.Data[off:]), binary.LittleEndian.Uint16(h.pg.Data[off+2:])
}

func (h *Heap) setSlot(slot uint32, offset, length uint16) {
	off := h.slotOffset(slot)
	binary.LittleEndian.PutUint16(h.pg.Data[off:], offset)
	binary.LittleEndian.PutUint16(h.pg.Data[off+2:], length)
}

// FreeSpace is the gap between the record region and the slot directory.
func (h *Heap) FreeSpace() int {
	return int(h.SlotRegionStart()) - int(h.RecordEndPtr())
}

// fits reports whether a new record of recLen, plus possibly one new slot
// entry, fits in the current free space.
func (h *Heap) fits(recLen int, needNewSlot bool) bool {
	need := recLen
	if needNewSlot {
		need += HeapSlotSize
	}
	return h.FreeSpace() >= need
}

// findTombstoneSlot returns the slot number of the first tombstoned slot
// (Length==0), or -1. This implementation never
// reuses tombstoned slots' record bytes (classic heap files do not compact
// in place); it only reuses the *slot entry* itself when appending a brand
// new record at RecordEndPtr, to bound SlotCount growth.
func (h *Heap) findTombstoneSlot() int {
	count := h.SlotCount()
	for s := uint16(0); s < count; s++ {
		_, length := h.slotAt(uint32(s))
		if length == 0 {
			return int(s)
		}
	}
	return -1
}

// InsertRecord appends rec as a new record and returns its slot number, or
// ok=false if the page has no room.
func (h *Heap) InsertRecord(rec []byte) (slot uint32, ok bool) {
	reuse := h.findTombstoneSlot()
	if !h.fits(len(rec), reuse == -1) {
		return 0, false
	}

	recOff := h.RecordEndPtr()
	copy(h.pg.Data[recOff:], rec)
	h.setRecordEndPtr(recOff + uint16(len(rec)))

	if reuse >= 0 {
		h.setSlot(uint32(reuse), recOff, uint16(len(rec)))
		h.setNumTombstones(h.NumTombstones() - 1)
		h.setNumRows(h.NumRows() + 1)
		return uint32(reuse), true
	}

	slotNum := uint32(h.SlotCount())
	h.setSlot(slotNum, recOff, uint16(len(rec)))
	h.setSlotRegionStart(h.SlotRegionStart() - HeapSlotSize)
	h.setSlotCount(h.SlotCount() + 1)
	h.setNumRows(h.NumRows() + 1)
	return slotNum, true
}

// GetRecord returns the bytes at slot, or ok=false if slot is out of
// range or tombstoned.
func (h *Heap) GetRecord(slot uint32) (rec []byte, ok bool) {
	if slot >= uint32(h.SlotCount()) {
		return nil, false
	}
	offset, length := h.slotAt(slot)
	if length == 0 {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, h.pg.Data[offset:offset+length])
	return out, true
}

// UpdateRecordInPlace overwrites slot's bytes if newRec is no longer than
// the slot's current length, returning ok=false otherwise (caller must
// tombstone and re-insert in that case).
func (h *Heap) UpdateRecordInPlace(slot uint32, newRec []byte) bool {
	if slot >= uint32(h.SlotCount()) {
		return false
	}
	offset, length := h.slotAt(slot)
	if length == 0 || len(newRec) > int(length) {
		return false
	}
	copy(h.pg.Data[offset:offset+uint16(len(newRec))], newRec)
	h.setSlot(slot, offset, uint16(len(newRec)))
	return true
}

// DeleteRecord tombstones slot (Length becomes 0), without compaction.
func (h *Heap) DeleteRecord(slot uint32) bool {
	if slot >= uint32(h.SlotCount()) {
		return false
	}
	offset, length := h.slotAt(slot)
	if length == 0 {
		return false
	}
	h.setSlot(slot, offset, 0)
	h.setNumRows(h.NumRows() - 1)
	h.setNumTombstones(h.NumTombstones() + 1)
	return true
}
