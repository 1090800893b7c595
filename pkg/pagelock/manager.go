package pagelock

import (
	"sync"

	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/txnid"
)

// Permission is the access mode a caller requests a page under.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)

// Manager owns the PageId -> PageLock map. Locks are created lazily on
// first acquisition and removed once their holder set empties (I6),
// keeping the map bounded by the number of currently-contended pages
// rather than every page ever touched.
type Manager struct {
	mu      sync.Mutex
	locks   map[storage.PageId]*PageLock
	timeout Timeouts
}

// NewManager builds a lock manager using the given randomized-timeout
// bounds.
func NewManager(timeouts Timeouts) *Manager {
	return &Manager{
		locks:   make(map[storage.PageId]*PageLock),
		timeout: timeouts,
	}
}

func (m *Manager) lockFor(pid storage.PageId) *PageLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[pid]
	if !ok {
		l = newPageLock()
		m.locks[pid] = l
	}
	return l
}

// Acquire acquires pid under perm on behalf of tid, blocking per the page
// lock's randomized-timeout semantics.
func (m *Manager) Acquire(tid *txnid.TransactionID, pid storage.PageId, perm Permission) error {
	for {
		l := m.lockFor(pid)
		var err error
		if perm == ReadWrite {
			err = l.AcquireExclusive(tid, m.timeout)
		} else {
			err = l.AcquireShared(tid, m.timeout)
		}
		if err != nil {
			return err
		}
		// Release may have removed l from the map while this call waited on
		// it; a grant on such a lock is invisible to other callers, so give
		// it back and acquire whichever lock the map holds now.
		m.mu.Lock()
		current := m.locks[pid] == l
		m.mu.Unlock()
		if current {
			return nil
		}
		l.Release(tid)
	}
}

// Release releases tid's hold on pid, if any, and removes the lock from
// the map once its holder set is empty (I6).
func (m *Manager) Release(tid *txnid.TransactionID, pid storage.PageId) {
	m.mu.Lock()
	l, ok := m.locks[pid]
	m.mu.Unlock()
	if !ok {
		return
	}

	l.Release(tid)

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.locks[pid]; ok && cur.IsEmpty() {
		delete(m.locks, pid)
	}
}

// HoldsLock reports whether tid holds pid in any mode.
func (m *Manager) HoldsLock(tid *txnid.TransactionID, pid storage.PageId) bool {
	m.mu.Lock()
	l, ok := m.locks[pid]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return l.HoldsLock(tid)
}

// LockCount reports the number of live (contended-or-held) locks, exposed
// for tests verifying I6/P9 lock garbage collection.
func (m *Manager) LockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
