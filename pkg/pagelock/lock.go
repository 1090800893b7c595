// Package pagelock implements the per-page reentrant shared/exclusive lock
// with transaction-granular holder sets and randomized-timeout deadlock
// handling. It replaces the teacher's wait-for-graph lock manager
// (pkg/concurrency/lock), which the spec explicitly excludes as a Non-goal
// in favor of bounded-wait timeouts with jittered deadlines.
package pagelock

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/txnid"
)

// Mode is the mode a PageLock is held in.
type Mode int

const (
	// Free means the lock has no holders.
	Free Mode = iota
	Shared
	Exclusive
)

// PageLock is a reentrant-at-the-transaction-level mutex: the same
// TransactionId may acquire it repeatedly without blocking on itself.
// Reentrancy is a property of the holder key, not of the calling goroutine,
// so a plain sync.Mutex cannot express it.
//
// Waiters are woken by closing notify and replacing it with a fresh
// channel on every state change, rather than sync.Cond, so a blocked
// acquire can race a wakeup against its own randomized deadline with a
// plain select.
type PageLock struct {
	mu      sync.Mutex
	notify  chan struct{}
	mode    Mode
	holders map[int64]bool
}

func newPageLock() *PageLock {
	return &PageLock{
		mode:    Free,
		holders: make(map[int64]bool),
		notify:  make(chan struct{}),
	}
}

func (l *PageLock) holderCount() int {
	return len(l.holders)
}

func (l *PageLock) isHolder(tid *txnid.TransactionID) bool {
	return l.holders[tid.ID()]
}

// canGrantShared reports whether tid can be granted SHARED without
// blocking: the lock is free, already shared, or held exclusively by tid
// itself.
func (l *PageLock) canGrantShared(tid *txnid.TransactionID) bool {
	switch l.mode {
	case Free, Shared:
		return true
	case Exclusive:
		return l.isHolder(tid)
	}
	return false
}

// canGrantExclusive reports whether tid can be granted EXCLUSIVE without
// blocking: the lock is free, or tid is the sole current holder (self-upgrade).
func (l *PageLock) canGrantExclusive(tid *txnid.TransactionID) bool {
	switch l.mode {
	case Free:
		return true
	case Shared, Exclusive:
		return l.holderCount() == 1 && l.isHolder(tid)
	}
	return false
}

// wake notifies every waiter that lock state changed; must be called with
// l.mu held.
func (l *PageLock) wake() {
	close(l.notify)
	l.notify = make(chan struct{})
}

// AcquireShared blocks until tid can be granted SHARED, or its randomized
// deadline expires, in which case it returns a TxnAborted DBError.
func (l *PageLock) AcquireShared(tid *txnid.TransactionID, timeouts Timeouts) error {
	return l.acquire(tid, timeouts, l.canGrantShared, Shared)
}

// AcquireExclusive blocks until tid can be granted EXCLUSIVE (including
// self-upgrade from an existing SHARED or EXCLUSIVE hold), or its
// randomized deadline expires.
func (l *PageLock) AcquireExclusive(tid *txnid.TransactionID, timeouts Timeouts) error {
	return l.acquire(tid, timeouts, l.canGrantExclusive, Exclusive)
}

func (l *PageLock) acquire(tid *txnid.TransactionID, timeouts Timeouts, canGrant func(*txnid.TransactionID) bool, grantMode Mode) error {
	deadline := time.Now().Add(timeouts.randomizedDeadline())

	for {
		l.mu.Lock()
		if canGrant(tid) {
			l.holders[tid.ID()] = true
			// A SHARED re-acquire by a transaction that already holds this
			// lock EXCLUSIVE must not downgrade it: the holder is still
			// entitled to write, and downgrading would let some other
			// transaction's SHARED acquire in alongside it.
			if !(l.mode == Exclusive && grantMode == Shared) {
				l.mode = grantMode
			}
			l.wake()
			l.mu.Unlock()
			return nil
		}

		if !time.Now().Before(deadline) {
			l.mu.Unlock()
			return dberr.New(dberr.TxnAborted, "AcquireLock", "pagelock",
				"lock wait exceeded randomized deadline")
		}

		ch := l.notify
		l.mu.Unlock()

		wait := timeouts.PollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ch:
		case <-time.After(wait):
		}
	}
}

// Release removes tid from the holder set. If the set becomes empty the
// lock reverts to Free and is eligible for garbage collection by its owner
// (the buffer pool, per I6).
func (l *PageLock) Release(tid *txnid.TransactionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.holders, tid.ID())
	if len(l.holders) == 0 {
		l.mode = Free
	}
	l.wake()
}

// HoldsLock reports whether tid currently holds this lock in any mode.
func (l *PageLock) HoldsLock(tid *txnid.TransactionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isHolder(tid)
}

// IsEmpty reports whether the holder set is empty (I6: eligible for removal
// from the owning map).
func (l *PageLock) IsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders) == 0
}

// Timeouts bounds the randomized deadline computation and poll interval
// used by acquire's wait loop.
type Timeouts struct {
	Min          time.Duration
	Range        time.Duration
	PollInterval time.Duration
}

// DefaultTimeouts matches the defaults named in the page lock's deadlock
// handling design: T_min=50ms, T_range=400ms, 100ms poll interval.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Min:          50 * time.Millisecond,
		Range:        400 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
	}
}

// randomizedDeadline computes T_min + rand(0..T_range). The randomness is
// essential: equal deadlines across contending waiters produced repeated
// mutual aborts in the source.
func (t Timeouts) randomizedDeadline() time.Duration {
	if t.Range <= 0 {
		return t.Min
	}
	return t.Min + time.Duration(rand.Int63n(int64(t.Range)))
}
