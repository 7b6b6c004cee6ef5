// Package txn tracks transaction lifecycle: isolation level, two-phase
// locking phase, held lock sets, and a write-record log for undo. It
// keeps the familiar shape of an atomic id counter plus a mutex-guarded
// active-transaction map with Begin/Commit/Abort/GetTransaction, extended
// to carry an IsolationLevel per transaction and to drive the full
// GROWING/SHRINKING/COMMITTED/ABORTED strict two-phase-locking state
// machine the lock manager needs, rather than a single COMMITTED/ABORTED
// flag.
package txn

import (
	"sync"
	"sync/atomic"

	"coredb/page"
)

// State is a transaction's two-phase-locking phase.
type State uint8

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsolationLevel selects how aggressively shared locks are held.
type IsolationLevel uint8

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
)

// WriteKind distinguishes the three executor write-record shapes.
type WriteKind uint8

const (
	WriteInsert WriteKind = iota
	WriteUpdate
	WriteDelete
)

// WriteRecord captures a single executor mutation for undo on abort. Old
// and new tuple images are raw encoded row bytes; either may be nil
// (Insert has no old image, Delete has no new image).
type WriteRecord struct {
	Kind  WriteKind
	RID   page.RID
	Old   []byte
	New   []byte
}

// Transaction is one unit of work under strict two-phase locking.
type Transaction struct {
	ID             uint64
	Isolation      IsolationLevel

	mu             sync.Mutex
	state          State
	sharedLocks    map[page.RID]struct{}
	exclusiveLocks map[page.RID]struct{}
	writeRecords   []WriteRecord
}

func newTransaction(id uint64, isolation IsolationLevel) *Transaction {
	return &Transaction{
		ID:             id,
		Isolation:      isolation,
		state:          Growing,
		sharedLocks:    make(map[page.RID]struct{}),
		exclusiveLocks: make(map[page.RID]struct{}),
	}
}

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState is exported so the lock manager can wound a transaction
// (forcing it to Aborted) from any goroutine, per the ownership rule that
// any thread may transition a transaction to Aborted.
func (t *Transaction) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// EnterShrinking transitions Growing -> Shrinking on the first unlock
// under REPEATABLE_READ; a no-op from any other state.
func (t *Transaction) EnterShrinking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Growing {
		t.state = Shrinking
	}
}

func (t *Transaction) HoldsShared(rid page.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sharedLocks[rid]
	return ok
}

func (t *Transaction) HoldsExclusive(rid page.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.exclusiveLocks[rid]
	return ok
}

func (t *Transaction) AddShared(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharedLocks[rid] = struct{}{}
}

func (t *Transaction) AddExclusive(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclusiveLocks[rid] = struct{}{}
}

func (t *Transaction) RemoveShared(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedLocks, rid)
}

func (t *Transaction) RemoveExclusive(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.exclusiveLocks, rid)
}

// UpgradeToExclusive moves rid from the shared set to the exclusive set.
func (t *Transaction) UpgradeToExclusive(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedLocks, rid)
	t.exclusiveLocks[rid] = struct{}{}
}

// RecordWrite appends an undo record, most-recent last. Nothing in this
// module replays the log; Abort only changes the transaction's state.
func (t *Transaction) RecordWrite(rec WriteRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeRecords = append(t.writeRecords, rec)
}

// WriteRecords returns a copy of the transaction's undo log.
func (t *Transaction) WriteRecords() []WriteRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WriteRecord, len(t.writeRecords))
	copy(out, t.writeRecords)
	return out
}

// Manager issues monotonically increasing transaction ids and tracks the
// active set through a mutex-guarded map with a Begin/Commit/Abort/
// GetTransaction surface. It never deletes a transaction from the map on
// Abort: the lock manager's wound-wait needs GetTransaction to keep
// resolving a wounded transaction's id so the victim can observe its own
// state.
type Manager struct {
	nextID uint64

	mu   sync.RWMutex
	txns map[uint64]*Transaction
}

func NewManager() *Manager {
	return &Manager{
		nextID: 1,
		txns:   make(map[uint64]*Transaction),
	}
}

// Begin creates and registers a new transaction at the given isolation
// level.
func (m *Manager) Begin(isolation IsolationLevel) *Transaction {
	id := atomic.AddUint64(&m.nextID, 1) - 1

	t := newTransaction(id, isolation)
	m.mu.Lock()
	m.txns[id] = t
	m.mu.Unlock()
	return t
}

// Commit transitions t to Committed. It is an error to commit an already
// Aborted transaction.
func (m *Manager) Commit(t *Transaction) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Aborted {
		return false
	}
	t.state = Committed
	return true
}

// Abort transitions t to Aborted unconditionally; committing twice and
// aborting twice are both idempotent no-ops from the caller's point of
// view.
func (m *Manager) Abort(t *Transaction) {
	t.SetState(Aborted)
}

// GetTransaction resolves a transaction by id, used by the lock manager's
// wound-wait to inspect and abort an older or younger request's owner.
func (m *Manager) GetTransaction(id uint64) *Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txns[id]
}
