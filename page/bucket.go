package page

import "encoding/binary"

// Bucket page wire layout: occupied bitmap, then readable bitmap, then
// Capacity (key,value) pairs. Keys and values are fixed at 8 bytes each
// (uint64) here — the hash table layer (package hashindex) serializes
// arbitrary comparable key/value types to uint64 before touching a bucket
// page, monomorphizing via generics at that layer instead of here.
//
// Bit i of a bitmap lives in byte i/8 at position i%8.
const (
	bucketEntrySize = 16 // 8 byte key + 8 byte value

	// MaxBucketCapacity is the largest Capacity for which
	// ceil(C/8)*2 + C*bucketEntrySize <= Size, i.e. the production-sized
	// bucket. Tests may construct smaller buckets (e.g. Capacity=2) to
	// exercise splits/merges cheaply.
	MaxBucketCapacity = 252
)

func bitmapBytes(capacity int) int {
	return (capacity + 7) / 8
}

// Bucket is a thin accessor over a *Page holding bucket page content for a
// table configured with a fixed Capacity.
type Bucket struct {
	pg       *Page
	Capacity int
}

// NewBucket wraps pg for bucket access with the given capacity. The
// capacity must satisfy ceil(capacity/8)*2 + capacity*16 <= Size.
func NewBucket(pg *Page, capacity int) *Bucket {
	return &Bucket{pg: pg, Capacity: capacity}
}

func (b *Bucket) occupiedOffset() int { return 0 }
func (b *Bucket) readableOffset() int { return bitmapBytes(b.Capacity) }
func (b *Bucket) entriesOffset() int  { return 2 * bitmapBytes(b.Capacity) }

func (b *Bucket) entryOffset(i int) int {
	return b.entriesOffset() + i*bucketEntrySize
}

func bitGet(data []byte, base, i int) bool {
	return data[base+i/8]&(1<<uint(i%8)) != 0
}

func bitSet(data []byte, base, i int, v bool) {
	byteOff := base + i/8
	mask := byte(1 << uint(i%8))
	if v {
		data[byteOff] |= mask
	} else {
		data[byteOff] &^= mask
	}
}

// IsOccupied reports whether slot i has ever held an entry (LIVE or
// VACATED).
func (b *Bucket) IsOccupied(i int) bool {
	return bitGet(b.pg.Data, b.occupiedOffset(), i)
}

func (b *Bucket) setOccupied(i int, v bool) {
	bitSet(b.pg.Data, b.occupiedOffset(), i, v)
}

// IsReadable reports whether slot i is LIVE.
func (b *Bucket) IsReadable(i int) bool {
	return bitGet(b.pg.Data, b.readableOffset(), i)
}

func (b *Bucket) setReadable(i int, v bool) {
	bitSet(b.pg.Data, b.readableOffset(), i, v)
}

func (b *Bucket) KeyAt(i int) uint64 {
	off := b.entryOffset(i)
	return binary.LittleEndian.Uint64(b.pg.Data[off:])
}

func (b *Bucket) ValueAt(i int) uint64 {
	off := b.entryOffset(i) + 8
	return binary.LittleEndian.Uint64(b.pg.Data[off:])
}

func (b *Bucket) setEntry(i int, key, value uint64) {
	off := b.entryOffset(i)
	binary.LittleEndian.PutUint64(b.pg.Data[off:], key)
	binary.LittleEndian.PutUint64(b.pg.Data[off+8:], value)
}

// Insert places (key,value) at the first EMPTY-or-VACATED slot, rejecting
// an exact (key,value) duplicate. Returns (inserted, duplicate).
func (b *Bucket) Insert(key, value uint64) (inserted bool, duplicate bool) {
	firstFree := -1
	for i := 0; i < b.Capacity; i++ {
		if b.IsReadable(i) {
			if b.KeyAt(i) == key && b.ValueAt(i) == value {
				return false, true
			}
			continue
		}
		if firstFree == -1 {
			firstFree = i
		}
	}
	if firstFree == -1 {
		return false, false
	}
	b.setEntry(firstFree, key, value)
	b.setOccupied(firstFree, true)
	b.setReadable(firstFree, true)
	return true, false
}

// GetValue appends to result every LIVE slot whose key matches and reports
// whether it found at least one. It scans the full array rather than
// stopping at the first non-occupied slot, which is required for
// correctness once Remove has produced VACATED holes.
func (b *Bucket) GetValue(key uint64, result *[]uint64) bool {
	found := false
	for i := 0; i < b.Capacity; i++ {
		if b.IsReadable(i) && b.KeyAt(i) == key {
			*result = append(*result, b.ValueAt(i))
			found = true
		}
	}
	return found
}

// Remove clears the readable bit of the LIVE slot matching (key,value),
// keeping the occupied bit set as a historical tombstone.
func (b *Bucket) Remove(key, value uint64) bool {
	for i := 0; i < b.Capacity; i++ {
		if b.IsReadable(i) && b.KeyAt(i) == key && b.ValueAt(i) == value {
			b.setReadable(i, false)
			return true
		}
	}
	return false
}

func (b *Bucket) IsEmpty() bool {
	return b.NumReadable() == 0
}

func (b *Bucket) IsFull() bool {
	return b.NumReadable() == b.Capacity
}

// NumReadable is a popcount over the readable bitmap.
func (b *Bucket) NumReadable() int {
	n := 0
	for i := 0; i < b.Capacity; i++ {
		if b.IsReadable(i) {
			n++
		}
	}
	return n
}

// CopyMappingsAndReset returns every LIVE (key,value) pair and zeroes the
// page, used by SplitInsert to redistribute a full bucket's contents.
func (b *Bucket) CopyMappingsAndReset() []KV {
	out := make([]KV, 0, b.NumReadable())
	for i := 0; i < b.Capacity; i++ {
		if b.IsReadable(i) {
			out = append(out, KV{Key: b.KeyAt(i), Value: b.ValueAt(i)})
		}
	}
	for i := range b.pg.Data {
		b.pg.Data[i] = 0
	}
	return out
}

// KV is a raw (key,value) pair as stored on a bucket page.
type KV struct {
	Key   uint64
	Value uint64
}
