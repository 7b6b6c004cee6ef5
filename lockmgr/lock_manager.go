// Package lockmgr implements per-record shared/exclusive locking with
// strict two-phase locking and wound-wait deadlock avoidance: one
// mutex-guarded map keyed by an identifier, each key holding a wait
// queue, in the shape of a row-lock table (map[string]*lock behind one
// mutex, per-key wait queue). It uses a condition-variable queue rather
// than a channel-per-waiter design because wound-wait needs to abort and
// remove an arbitrary waiter, not just the head of a queue.
package lockmgr

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"coredb/logging"
	"coredb/page"
	"coredb/txn"
)

// Mode is the lock mode of a request.
type Mode uint8

const (
	Shared Mode = iota
	Exclusive
)

// AbortReason names why a transaction was wounded or refused a lock.
type AbortReason uint8

const (
	LockOnShrinking AbortReason = iota
	LockSharedOnReadUncommitted
	UpgradeConflict
	DeadlockVictim
)

func (r AbortReason) String() string {
	switch r {
	case LockOnShrinking:
		return "LockOnShrinking"
	case LockSharedOnReadUncommitted:
		return "LockSharedOnReadUncommitted"
	case UpgradeConflict:
		return "UpgradeConflict"
	case DeadlockVictim:
		return "DeadlockVictim"
	default:
		return "Unknown"
	}
}

// LockError describes a refused or wounded lock request. No Manager method
// returns it: LockShared, LockExclusive and LockUpgrade report failure only
// as false plus the transaction's Aborted state, and the AbortReason
// appears only in the debug log.
type LockError struct {
	TxnID  uint64
	Reason AbortReason
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lockmgr: txn %d aborted: %s", e.TxnID, e.Reason)
}

type request struct {
	txnID   uint64
	mode    Mode
	granted bool
	removed bool // transient: marked by needWait, filtered out before return
}

type queue struct {
	cond           *sync.Cond
	requests       []*request
	upgradingTxnID uint64 // 0 means none pending; txn ids start at 1
}

// Manager is the global lock table, one queue per RID.
type Manager struct {
	mu      sync.Mutex
	queues  map[page.RID]*queue
	txns    txnResolver
	log     *zap.SugaredLogger
}

// txnResolver is the small consumed surface of txn.Manager the lock
// manager needs to resolve a queued request's owner during wound-wait.
type txnResolver interface {
	GetTransaction(id uint64) *txn.Transaction
}

// New builds a Manager resolving transactions through txns.
func New(txns txnResolver, log *zap.SugaredLogger) *Manager {
	return &Manager{
		queues: make(map[page.RID]*queue),
		txns:   txns,
		log:    logging.OrNop(log),
	}
}

func (m *Manager) queueFor(rid page.RID) *queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[rid]
	if !ok {
		q = &queue{cond: sync.NewCond(&m.mu)}
		m.queues[rid] = q
	}
	return q
}

// LockShared acquires a shared lock on rid for t, blocking if necessary.
func (m *Manager) LockShared(t *txn.Transaction, rid page.RID) bool {
	if t.State() == txn.Aborted {
		return false
	}
	if t.Isolation == txn.ReadUncommitted {
		t.SetState(txn.Aborted)
		m.log.Debugw("lock refused", "txnID", t.ID, "rid", rid, "reason", LockSharedOnReadUncommitted)
		return false
	}
	if t.State() == txn.Shrinking && t.Isolation == txn.RepeatableRead {
		t.SetState(txn.Aborted)
		m.log.Debugw("lock refused", "txnID", t.ID, "rid", rid, "reason", LockOnShrinking)
		return false
	}
	if t.HoldsShared(rid) || t.HoldsExclusive(rid) {
		return true
	}

	q := m.queueFor(rid)
	m.mu.Lock()
	req := &request{txnID: t.ID, mode: Shared}
	q.requests = append(q.requests, req)

	for m.needWait(q, t, req, Shared, false) {
		q.cond.Wait()
		if t.State() == txn.Aborted {
			m.mu.Unlock()
			return false
		}
	}
	req.granted = true
	m.mu.Unlock()

	t.AddShared(rid)
	t.SetState(txn.Growing)
	return true
}

// LockExclusive acquires an exclusive lock on rid for t, blocking if
// necessary. Unlike LockShared it is legal under every isolation level.
func (m *Manager) LockExclusive(t *txn.Transaction, rid page.RID) bool {
	if t.State() == txn.Aborted {
		return false
	}
	if t.State() == txn.Shrinking && t.Isolation == txn.RepeatableRead {
		t.SetState(txn.Aborted)
		m.log.Debugw("lock refused", "txnID", t.ID, "rid", rid, "reason", LockOnShrinking)
		return false
	}
	if t.HoldsExclusive(rid) {
		return true
	}

	q := m.queueFor(rid)
	m.mu.Lock()
	req := &request{txnID: t.ID, mode: Exclusive}
	q.requests = append(q.requests, req)

	for m.needWait(q, t, req, Exclusive, false) {
		q.cond.Wait()
		if t.State() == txn.Aborted {
			m.mu.Unlock()
			return false
		}
	}
	req.granted = true
	m.mu.Unlock()

	t.AddExclusive(rid)
	t.SetState(txn.Growing)
	return true
}

// LockUpgrade converts t's shared lock on rid to exclusive. It fails if t
// does not hold a shared lock, or if another upgrade is already pending on
// this rid.
func (m *Manager) LockUpgrade(t *txn.Transaction, rid page.RID) bool {
	if !t.HoldsShared(rid) {
		return false
	}

	q := m.queueFor(rid)
	m.mu.Lock()
	if q.upgradingTxnID != 0 {
		m.mu.Unlock()
		t.SetState(txn.Aborted)
		m.log.Debugw("lock refused", "txnID", t.ID, "rid", rid, "reason", UpgradeConflict)
		return false
	}
	q.upgradingTxnID = t.ID

	var req *request
	for _, r := range q.requests {
		if r.txnID == t.ID {
			req = r
			break
		}
	}
	if req == nil {
		q.upgradingTxnID = 0
		m.mu.Unlock()
		return false
	}
	req.mode = Exclusive
	req.granted = false

	// Unlike a fresh acquisition, an upgrade must check every other holder
	// of the resource, not just requests that arrived before it: a reader
	// that arrived later (and was granted, since shared locks don't
	// conflict with each other) is still a granted incompatible holder the
	// upgrade must wait for or wound.
	for m.needWait(q, t, req, Exclusive, true) {
		q.cond.Wait()
		if t.State() == txn.Aborted {
			q.upgradingTxnID = 0
			m.mu.Unlock()
			return false
		}
	}
	req.granted = true
	q.upgradingTxnID = 0
	m.mu.Unlock()

	t.UpgradeToExclusive(rid)
	return true
}

// Unlock releases t's request on rid, waking waiters. Under REPEATABLE_READ
// this is t's first unlock transitions GROWING -> SHRINKING; executors
// perform the early READ_COMMITTED unlock themselves after yielding a row.
func (m *Manager) Unlock(t *txn.Transaction, rid page.RID) bool {
	q := m.queueFor(rid)
	m.mu.Lock()
	found := false
	for i, r := range q.requests {
		if r.txnID == t.ID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			found = true
			break
		}
	}
	q.cond.Broadcast()
	m.mu.Unlock()

	if !found {
		return false
	}
	t.RemoveShared(rid)
	t.RemoveExclusive(rid)
	if t.Isolation == txn.RepeatableRead {
		t.EnterShrinking()
	}
	return true
}

// incompatible reports whether a request in mode g.mode conflicts with a
// request for mode.
func incompatible(mode Mode, g *request) bool {
	if mode == Exclusive {
		return true
	}
	return g.mode == Exclusive
}

// ahead returns the prefix of q.requests arrived strictly before self. Used
// for a fresh acquisition: arrival order is the fairness rule, so a request
// only ever waits on (or wounds) requests that got in line ahead of it.
func ahead(reqs []*request, self *request) []*request {
	for i, r := range reqs {
		if r == self {
			return reqs[:i]
		}
	}
	return reqs
}

// others returns every request but self, regardless of arrival order. Used
// for an upgrade: converting a held shared lock to exclusive conflicts with
// every other current holder of the resource, including readers that
// arrived and were granted after self (shared locks don't conflict with
// each other, so a later reader can be holding the lock concurrently with
// an earlier one).
func others(reqs []*request, self *request) []*request {
	out := make([]*request, 0, len(reqs))
	for _, r := range reqs {
		if r != self {
			out = append(out, r)
		}
	}
	return out
}

// needWait implements the wait-or-wound predicate. Caller holds m.mu. When
// scanAll is false the candidate set is requests ahead of self in arrival
// order (fresh acquisition); when true it is every other request (upgrade).
//
// Wound-wait: when T would have to wait behind a younger, incompatible
// request — granted or not — T wounds it (aborts its transaction) instead
// of waiting. An aborted request that was still only queued (never
// granted) is removed immediately so it stops blocking anyone; an aborted
// request that already holds the lock is left in place — its owner
// discovers the abort and releases it itself, since revoking an active
// grant out from under its holder is not safe to do from here.
func (m *Manager) needWait(q *queue, t *txn.Transaction, self *request, mode Mode, scanAll bool) bool {
	candidatesOf := func() []*request {
		if scanAll {
			return others(q.requests, self)
		}
		return ahead(q.requests, self)
	}

	candidates := candidatesOf()
	wouldWait := false
	for _, g := range candidates {
		if g.granted && incompatible(mode, g) {
			wouldWait = true
			break
		}
	}
	if !wouldWait {
		return false
	}

	wounded := false
	for _, g := range candidates {
		if g.txnID > t.ID && incompatible(mode, g) {
			if other := m.txns.GetTransaction(g.txnID); other != nil {
				other.SetState(txn.Aborted)
				m.log.Debugw("wound-wait: aborting younger transaction", "victimTxnID", g.txnID, "holderTxnID", t.ID)
			}
			wounded = true
			if !g.granted {
				g.removed = true // never granted, safe to drop outright
			}
		}
	}
	if wounded {
		kept := q.requests[:0:0]
		for _, r := range q.requests {
			if !r.removed {
				kept = append(kept, r)
			}
		}
		q.requests = kept
		q.cond.Broadcast()
		candidates = candidatesOf()
	}

	// For a fresh acquisition, also wait on non-granted entries ahead of
	// self so a later arrival never jumps a still-queued earlier one. For
	// an upgrade, a non-granted "other" holds nothing yet, so it cannot
	// block the upgrade.
	for _, g := range candidates {
		if scanAll && !g.granted {
			continue
		}
		if incompatible(mode, g) {
			return true
		}
	}
	return false
}
