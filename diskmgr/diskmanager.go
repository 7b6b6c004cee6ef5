// Package diskmgr provides page-granular reads/writes over a single
// on-disk file: one *os.File, one mutex, ReadAt/WriteAt at page-sized
// offsets, and a counter driving page-id allocation.
//
// Rather than multiplexing many heap/index files behind one disk manager
// via a fileID<<32|localNum encoding, each instance here backs exactly
// one parallel-buffer-pool residue class: it allocates ids from the
// arithmetic progression {Residue, Residue+Stride, ...} so that any page
// id it hands out satisfies `id mod Stride == Residue`.
package diskmgr

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"coredb/page"
)

// ErrNoSuchPage is not returned by any Manager method: ReadPage returns a
// zeroed page for an id never written.
var ErrNoSuchPage = errors.New("diskmgr: no such page")

// Manager owns one OS file handle and the page-id allocation counter for
// one residue class.
type Manager struct {
	mu       sync.Mutex
	file     *os.File
	residue  int64
	stride   int64
	nextLocal int64 // next unused local page number (id = Residue + nextLocal*Stride)
	allocated int64 // not read or updated by any method; DeallocatePage uses freeLocal
	freeLocal []int64
}

// Open opens (creating if absent) the backing file for one residue class.
// residue must be in [0, stride).
func Open(path string, residue, stride int64) (*Manager, error) {
	if stride < 1 || residue < 0 || residue >= stride {
		return nil, fmt.Errorf("diskmgr: invalid residue/stride %d/%d", residue, stride)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("diskmgr: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("diskmgr: stat %s: %w", path, err)
	}
	nextLocal := stat.Size() / page.Size
	return &Manager{file: f, residue: residue, stride: stride, nextLocal: nextLocal}, nil
}

// Residue returns this manager's residue class k (id mod Stride == k).
func (m *Manager) Residue() int64 { return m.residue }

func (m *Manager) localToID(local int64) page.ID {
	return page.ID(m.residue + local*m.stride)
}

func (m *Manager) idToLocal(id page.ID) int64 {
	return (int64(id) - m.residue) / m.stride
}

// AllocatePage reserves and returns the next page id owned by this
// residue class. It does not write anything to disk.
func (m *Manager) AllocatePage() page.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.freeLocal); n > 0 {
		local := m.freeLocal[n-1]
		m.freeLocal = m.freeLocal[:n-1]
		return m.localToID(local)
	}
	local := m.nextLocal
	m.nextLocal++
	return m.localToID(local)
}

// DeallocatePage returns id's local slot to the free list for reuse by a
// future AllocatePage. It does not erase on-disk content.
func (m *Manager) DeallocatePage(id page.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeLocal = append(m.freeLocal, m.idToLocal(id))
}

// ReadPage reads the page-sized block for id into buf, which must be
// exactly page.Size bytes. Reading a block never written is not an error:
// it returns a zeroed page, matching a sparse file's implicit zero-fill.
func (m *Manager) ReadPage(id page.ID, buf []byte) error {
	if len(buf) != page.Size {
		return fmt.Errorf("diskmgr: buffer size %d != page size %d", len(buf), page.Size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	offset := m.idToLocal(id) * page.Size
	n, err := m.file.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("diskmgr: read page %d: %w", id, err)
	}
	// EOF on a never-written (or partly written) page: zero the rest.
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes buf (exactly page.Size bytes) to id's offset.
func (m *Manager) WritePage(id page.ID, buf []byte) error {
	if len(buf) != page.Size {
		return fmt.Errorf("diskmgr: buffer size %d != page size %d", len(buf), page.Size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	offset := m.idToLocal(id) * page.Size
	if _, err := m.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("diskmgr: write page %d: %w", id, err)
	}
	return nil
}

// Sync flushes the backing file to stable storage.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Sync()
}

// Close closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
