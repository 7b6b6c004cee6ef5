// Package hashindex implements a disk-resident extendible hash table over
// directory and bucket pages served by a bufferpool.Instance: a generic
// tree-like index keyed by an injected comparator/hash, latched
// independently from the page cache that backs it. The structure itself
// (directory doubling, split-image bucket pairing, stride rewrite on
// merge) is built directly from the textbook extendible-hashing
// algorithm.
package hashindex

import (
	"sync"

	"go.uber.org/zap"

	"coredb/logging"
	"coredb/page"
)

// Pool is the subset of *bufferpool.Instance the table needs, narrowed so
// tests can substitute a fake.
type Pool interface {
	NewPage() (*page.Page, bool)
	FetchPage(id page.ID) (*page.Page, bool)
	UnpinPage(id page.ID, isDirty bool) bool
	DeletePage(id page.ID) bool
}

// Table is a generic extendible hash index over keys K and values V.
// Values round-trip through valueCodec to the uint64 a bucket page stores;
// for keys, the page stores hashKey(key), so keys are matched by hash and
// two keys with equal hashes are not told apart.
type Table[K comparable, V comparable] struct {
	pool Pool
	log  *zap.SugaredLogger

	keyCodec   Codec[K]
	valueCodec Codec[V]
	hashKey    func(K) uint64

	bucketCapacity int

	mu          sync.RWMutex // table-wide latch: shared for read/non-splitting write, exclusive for structural ops
	dirPageID   page.ID
}

// New creates a table backed by a fresh directory page with two
// single-entry buckets at local depth 1. hashKey may be nil, in which case
// keyCodec.Encode doubles as the hash function (exact for integer keys).
func New[K comparable, V comparable](pool Pool, bucketCapacity int, keyCodec Codec[K], valueCodec Codec[V], hashKey func(K) uint64, log *zap.SugaredLogger) (*Table[K, V], bool) {
	log = logging.OrNop(log)
	if hashKey == nil {
		hashKey = keyCodec.Encode
	}

	b0, ok := pool.NewPage()
	if !ok {
		return nil, false
	}
	b1, ok := pool.NewPage()
	if !ok {
		pool.UnpinPage(b0.ID, false)
		return nil, false
	}
	b0.Lock()
	page.NewBucket(b0, bucketCapacity)
	b0.Unlock()
	b1.Lock()
	page.NewBucket(b1, bucketCapacity)
	b1.Unlock()
	pool.UnpinPage(b0.ID, true)
	pool.UnpinPage(b1.ID, true)

	dir, ok := pool.NewPage()
	if !ok {
		return nil, false
	}
	dir.Lock()
	page.InitDirectory(dir, b0.ID, b1.ID)
	dir.Unlock()
	pool.UnpinPage(dir.ID, true)

	t := &Table[K, V]{
		pool:           pool,
		log:            log,
		keyCodec:       keyCodec,
		valueCodec:     valueCodec,
		hashKey:        hashKey,
		bucketCapacity: bucketCapacity,
		dirPageID:      dir.ID,
	}
	return t, true
}

func (t *Table[K, V]) directoryIndex(depth uint32, key K) uint32 {
	mask := uint32(1)<<depth - 1
	return uint32(t.hashKey(key)) & mask
}

func (t *Table[K, V]) fetchDir() (*page.Page, *page.Directory) {
	pg, ok := t.pool.FetchPage(t.dirPageID)
	if !ok {
		t.log.Errorw("hash table: directory page missing from pool", "pageID", t.dirPageID)
		return nil, nil
	}
	return pg, page.NewDirectory(pg)
}

// GetValue returns every value stored under key.
func (t *Table[K, V]) GetValue(key K) []V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	dirPg, dir := t.fetchDir()
	if dir == nil {
		return nil
	}
	dirPg.RLock()
	idx := t.directoryIndex(dir.GlobalDepth(), key)
	bucketID := dir.BucketPageID(idx)
	dirPg.RUnlock()
	t.pool.UnpinPage(dirPg.ID, false)

	bucketPg, ok := t.pool.FetchPage(bucketID)
	if !ok {
		t.log.Errorw("hash table: bucket page missing from pool", "pageID", bucketID)
		return nil
	}
	bucketPg.RLock()
	bucket := page.NewBucket(bucketPg, t.bucketCapacity)
	var raw []uint64
	bucket.GetValue(t.hashKey(key), &raw)
	bucketPg.RUnlock()
	t.pool.UnpinPage(bucketPg.ID, false)

	out := make([]V, 0, len(raw))
	for _, r := range raw {
		out = append(out, t.valueCodec.Decode(r))
	}
	return out
}

// Insert adds (key, value). It returns false for an exact duplicate, when
// the target bucket is full at MaxGlobalDepth, or when the pool cannot
// supply a page.
func (t *Table[K, V]) Insert(key K, value V) bool {
	t.mu.RLock()
	dirPg, dir := t.fetchDir()
	if dir == nil {
		t.mu.RUnlock()
		return false
	}
	dirPg.RLock()
	idx := t.directoryIndex(dir.GlobalDepth(), key)
	bucketID := dir.BucketPageID(idx)
	dirPg.RUnlock()
	t.pool.UnpinPage(dirPg.ID, false)

	bucketPg, ok := t.pool.FetchPage(bucketID)
	if !ok {
		t.mu.RUnlock()
		return false
	}
	bucketPg.Lock()
	bucket := page.NewBucket(bucketPg, t.bucketCapacity)
	inserted, duplicate := bucket.Insert(t.hashKey(key), t.valueCodec.Encode(value))
	bucketPg.Unlock()

	if inserted {
		t.pool.UnpinPage(bucketPg.ID, true)
		t.mu.RUnlock()
		return true
	}
	t.pool.UnpinPage(bucketPg.ID, false)
	t.mu.RUnlock()
	if duplicate {
		return false
	}

	// Bucket full: escalate to the exclusive table latch and split.
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.splitInsertLocked(key, value)
}

// splitInsertLocked implements SplitInsert. Caller holds the exclusive
// table latch.
func (t *Table[K, V]) splitInsertLocked(key K, value V) bool {
	dirPg, dir := t.fetchDir()
	if dir == nil {
		return false
	}
	defer t.pool.UnpinPage(dirPg.ID, true)

	dirPg.Lock()
	idx := t.directoryIndex(dir.GlobalDepth(), key)
	bucketID := dir.BucketPageID(idx)
	localDepth := dir.LocalDepth(idx)
	dirPg.Unlock()

	bucketPg, ok := t.pool.FetchPage(bucketID)
	if !ok {
		return false
	}

	// Re-check idempotently: the state may have changed since the caller
	// released the shared latch.
	bucketPg.Lock()
	bucket := page.NewBucket(bucketPg, t.bucketCapacity)
	inserted, duplicate := bucket.Insert(t.hashKey(key), t.valueCodec.Encode(value))
	if inserted || duplicate {
		bucketPg.Unlock()
		t.pool.UnpinPage(bucketPg.ID, inserted)
		return inserted
	}

	newLocalDepth := localDepth + 1
	if newLocalDepth > page.MaxGlobalDepth {
		bucketPg.Unlock()
		t.pool.UnpinPage(bucketPg.ID, false)
		return false
	}
	dirPg.Lock()
	if uint32(newLocalDepth) > dir.GlobalDepth() {
		dir.IncrGlobalDepth()
	}
	dirPg.Unlock()

	splitImagePg, ok := t.pool.NewPage()
	if !ok {
		bucketPg.Unlock()
		t.pool.UnpinPage(bucketPg.ID, false)
		return false
	}
	splitImagePg.Lock()
	splitImage := page.NewBucket(splitImagePg, t.bucketCapacity)
	splitImagePg.Unlock()

	mappings := bucket.CopyMappingsAndReset()
	bucketPg.Unlock()

	splitMask := uint32(1)<<newLocalDepth - 1
	splitImageIdx := idx ^ (uint32(1) << (newLocalDepth - 1))

	bucketPg.Lock()
	bucket = page.NewBucket(bucketPg, t.bucketCapacity)
	splitImagePg.Lock()
	for _, kv := range mappings {
		if uint32(kv.Key)&splitMask == splitImageIdx&splitMask {
			splitImage.Insert(kv.Key, kv.Value)
		} else {
			bucket.Insert(kv.Key, kv.Value)
		}
	}
	splitImagePg.Unlock()
	bucketPg.Unlock()
	t.pool.UnpinPage(bucketPg.ID, true)

	// Walk the stride both directions from splitImageIdx, rewriting every
	// directory slot that previously pointed at the old bucket.
	dirPg.Lock()
	size := dir.Size()
	stride := uint32(1) << newLocalDepth
	for i := splitImageIdx % stride; i < size; i += stride {
		dir.SetBucketPageID(i, splitImagePg.ID)
		dir.SetLocalDepth(i, newLocalDepth)
	}
	for i := idx % stride; i < size; i += stride {
		dir.SetLocalDepth(i, newLocalDepth)
	}
	dirPg.Unlock()
	t.pool.UnpinPage(splitImagePg.ID, true)

	// Retry against whichever bucket now owns the hash; recurse if it is
	// itself full after redistribution.
	return t.splitInsertLocked(key, value)
}

// Remove deletes the (key, value) pair, merging the bucket if it becomes
// empty. Returns false if the pair was not present.
func (t *Table[K, V]) Remove(key K, value V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	dirPg, dir := t.fetchDir()
	if dir == nil {
		return false
	}
	dirPg.RLock()
	idx := t.directoryIndex(dir.GlobalDepth(), key)
	bucketID := dir.BucketPageID(idx)
	dirPg.RUnlock()

	bucketPg, ok := t.pool.FetchPage(bucketID)
	if !ok {
		t.pool.UnpinPage(dirPg.ID, false)
		return false
	}
	bucketPg.Lock()
	bucket := page.NewBucket(bucketPg, t.bucketCapacity)
	removed := bucket.Remove(t.hashKey(key), t.valueCodec.Encode(value))
	empty := bucket.IsEmpty()
	bucketPg.Unlock()
	t.pool.UnpinPage(bucketPg.ID, removed)

	if removed && empty {
		t.mergeLocked(dirPg, dir, idx)
	} else {
		t.pool.UnpinPage(dirPg.ID, false)
	}
	return removed
}

// mergeLocked implements Merge. Caller holds the exclusive table latch and
// a pin on dirPg (released by this function).
func (t *Table[K, V]) mergeLocked(dirPg *page.Page, dir *page.Directory, idx uint32) {
	dirty := false
	for {
		dirPg.Lock()
		localDepth := dir.LocalDepth(idx)
		if localDepth <= 1 {
			dirPg.Unlock()
			break
		}
		splitImageIdx := idx ^ (uint32(1) << (localDepth - 1))
		splitDepth := dir.LocalDepth(splitImageIdx)
		if splitDepth != localDepth {
			dirPg.Unlock()
			break
		}
		targetBucketID := dir.BucketPageID(idx)
		splitBucketID := dir.BucketPageID(splitImageIdx)
		dirPg.Unlock()

		// The target may have just been merged into by a prior iteration
		// (it's the previous round's split image); re-check it's still
		// empty before folding it into its own buddy and deleting it.
		targetPg, ok := t.pool.FetchPage(targetBucketID)
		if !ok {
			break
		}
		targetPg.RLock()
		targetEmpty := page.NewBucket(targetPg, t.bucketCapacity).IsEmpty()
		targetPg.RUnlock()
		t.pool.UnpinPage(targetPg.ID, false)
		if !targetEmpty {
			break
		}

		dirPg.Lock()
		newDepth := localDepth - 1
		size := dir.Size()
		// The merged pair now shares one bucket at the lower depth, so the
		// rewrite covers the wider stride class of newDepth (which spans
		// both the target's and the split image's old slots), not the
		// narrower pre-merge stride.
		newStride := uint32(1) << newDepth
		for i := idx % newStride; i < size; i += newStride {
			dir.SetBucketPageID(i, splitBucketID)
			dir.SetLocalDepth(i, newDepth)
		}
		canShrink := dir.CanShrink()
		if canShrink {
			dir.DecrGlobalDepth()
		}
		dirPg.Unlock()
		dirty = true

		t.pool.DeletePage(targetBucketID)

		idx = t.reindexAfterMerge(dir, dirPg, splitImageIdx)
	}
	t.pool.UnpinPage(dirPg.ID, dirty)
}

// reindexAfterMerge recomputes the directory slot now naming the bucket the
// caller's key would hash to, after a merge may have rewritten or halved
// the directory.
func (t *Table[K, V]) reindexAfterMerge(dir *page.Directory, dirPg *page.Page, idx uint32) uint32 {
	dirPg.RLock()
	defer dirPg.RUnlock()
	return idx % dir.Size()
}
