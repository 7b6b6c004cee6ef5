package page

import "encoding/binary"

// Directory page wire layout:
//
//	offset  size  field
//	0       8     PageID   int64
//	8       4     GlobalDepth uint32
//	12      ...   512 slots of {LocalDepth uint8, BucketPageID int32}
//
// MaxGlobalDepth caps the directory at 1<<9 = 512 slots.
const (
	MaxGlobalDepth = 9
	MaxSlots       = 1 << MaxGlobalDepth

	dirOffPageID      = 0
	dirOffGlobalDepth = 8
	dirOffSlots       = 12

	dirSlotSize          = 5 // 1 byte local depth + 4 byte bucket page id
	dirLocalDepthOffset  = 0
	dirBucketPageIDOffOf = 1
)

// Directory is a thin accessor over a *Page holding directory page content.
// It never copies; every accessor reads/writes Page.Data directly, so
// callers must hold the page's latch (write latch for mutators) exactly
// like the bucket and heap accessors below.
type Directory struct {
	pg *Page
}

// NewDirectory wraps pg for directory-page access. pg.Data must be at
// least dirOffSlots + MaxSlots*dirSlotSize bytes (i.e. a full Size page).
func NewDirectory(pg *Page) *Directory {
	return &Directory{pg: pg}
}

// InitDirectory stamps a fresh directory page: global depth 1, two
// single-entry buckets at local depth 1.
func InitDirectory(pg *Page, bucket0, bucket1 ID) *Directory {
	d := &Directory{pg: pg}
	d.StampPageID(pg.ID)
	d.SetGlobalDepth(1)
	d.setSlot(0, 1, bucket0)
	d.setSlot(1, 1, bucket1)
	return d
}

// StampPageID writes the page's own id into the header. Informational
// only: callers always know a page's id from Page.ID once it is pinned,
// but a freshly-read page records its own identity for diagnostic dumps.
func (d *Directory) StampPageID(id ID) {
	binary.LittleEndian.PutUint64(d.pg.Data[dirOffPageID:], uint64(id))
}

func (d *Directory) StampedPageID() ID {
	return ID(binary.LittleEndian.Uint64(d.pg.Data[dirOffPageID:]))
}

func (d *Directory) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.pg.Data[dirOffGlobalDepth:])
}

func (d *Directory) SetGlobalDepth(depth uint32) {
	binary.LittleEndian.PutUint32(d.pg.Data[dirOffGlobalDepth:], depth)
}

// Size returns 2^GlobalDepth, the number of live directory slots.
func (d *Directory) Size() uint32 {
	return 1 << d.GlobalDepth()
}

func (d *Directory) slotOffset(i uint32) int {
	return dirOffSlots + int(i)*dirSlotSize
}

func (d *Directory) LocalDepth(i uint32) uint8 {
	off := d.slotOffset(i)
	return d.pg.Data[off+dirLocalDepthOffset]
}

func (d *Directory) SetLocalDepth(i uint32, depth uint8) {
	off := d.slotOffset(i)
	d.pg.Data[off+dirLocalDepthOffset] = depth
}

func (d *Directory) BucketPageID(i uint32) ID {
	off := d.slotOffset(i)
	return ID(int32(binary.LittleEndian.Uint32(d.pg.Data[off+dirBucketPageIDOffOf:])))
}

func (d *Directory) SetBucketPageID(i uint32, id ID) {
	off := d.slotOffset(i)
	binary.LittleEndian.PutUint32(d.pg.Data[off+dirBucketPageIDOffOf:], uint32(int32(id)))
}

func (d *Directory) setSlot(i uint32, depth uint8, id ID) {
	d.SetLocalDepth(i, depth)
	d.SetBucketPageID(i, id)
}

// IncrGlobalDepth doubles the directory: every new slot i in the upper half
// inherits the local depth and bucket page id of its low-half counterpart
// i - (1<<oldDepth).
func (d *Directory) IncrGlobalDepth() {
	oldDepth := d.GlobalDepth()
	oldSize := uint32(1) << oldDepth
	d.SetGlobalDepth(oldDepth + 1)
	for i := uint32(0); i < oldSize; i++ {
		d.setSlot(oldSize+i, d.LocalDepth(i), d.BucketPageID(i))
	}
}

// DecrGlobalDepth halves the directory. Caller must have already verified
// every slot's local depth is below the current global depth.
func (d *Directory) DecrGlobalDepth() {
	d.SetGlobalDepth(d.GlobalDepth() - 1)
}

// CanShrink reports whether every live slot's local depth is strictly
// below the current global depth, the precondition for DecrGlobalDepth
// in the merge algorithm.
func (d *Directory) CanShrink() bool {
	size := d.Size()
	depth := d.GlobalDepth()
	for i := uint32(0); i < size; i++ {
		if d.LocalDepth(i) >= uint8(depth) {
			return false
		}
	}
	return true
}
