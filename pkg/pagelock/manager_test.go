package pagelock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/txnid"
)

func testTimeouts() Timeouts {
	return Timeouts{Min: 30 * time.Millisecond, Range: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}
}

func testPage() storage.PageId {
	return storage.NewPageId(1, 0)
}

// Scenario 1: two readers never block each other.
func TestManager_TwoReadersDoNotBlock(t *testing.T) {
	m := NewManager(testTimeouts())
	pid := testPage()
	t1, t2 := txnid.NewTransactionID(), txnid.NewTransactionID()

	require.NoError(t, m.Acquire(t1, pid, ReadOnly))

	done := make(chan error, 1)
	go func() { done <- m.Acquire(t2, pid, ReadOnly) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second reader blocked on first reader")
	}

	assert.True(t, m.HoldsLock(t1, pid))
	assert.True(t, m.HoldsLock(t2, pid))
}

// A writer blocks behind a reader and times out if the reader never releases.
func TestManager_WriterBlocksAndTimesOutBehindReader(t *testing.T) {
	m := NewManager(testTimeouts())
	pid := testPage()
	reader, writer := txnid.NewTransactionID(), txnid.NewTransactionID()

	require.NoError(t, m.Acquire(reader, pid, ReadOnly))

	start := time.Now()
	err := m.Acquire(writer, pid, ReadWrite)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.GreaterOrEqual(t, elapsed, testTimeouts().Min)
	assert.False(t, m.HoldsLock(writer, pid))
}

// Once the reader releases, a blocked writer is granted before its deadline.
func TestManager_WriterGrantedAfterReaderReleases(t *testing.T) {
	m := NewManager(testTimeouts())
	pid := testPage()
	reader, writer := txnid.NewTransactionID(), txnid.NewTransactionID()

	require.NoError(t, m.Acquire(reader, pid, ReadOnly))

	done := make(chan error, 1)
	go func() { done <- m.Acquire(writer, pid, ReadWrite) }()

	time.Sleep(10 * time.Millisecond)
	m.Release(reader, pid)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("writer never granted after reader release")
	}
	assert.True(t, m.HoldsLock(writer, pid))
}

// A transaction holding SHARED alone may self-upgrade to EXCLUSIVE without
// blocking on itself (reentrancy is keyed on the transaction, not the
// calling goroutine).
func TestManager_SelfUpgradeSharedToExclusive(t *testing.T) {
	m := NewManager(testTimeouts())
	pid := testPage()
	tid := txnid.NewTransactionID()

	require.NoError(t, m.Acquire(tid, pid, ReadOnly))

	done := make(chan error, 1)
	go func() { done <- m.Acquire(tid, pid, ReadWrite) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("self-upgrade blocked")
	}
}

// Repeated acquisition by the same transaction is reentrant: it does not
// require a matching number of releases beyond the holder-set semantics
// (a single Release drops the transaction entirely).
func TestManager_ReentrantAcquireSameMode(t *testing.T) {
	m := NewManager(testTimeouts())
	pid := testPage()
	tid := txnid.NewTransactionID()

	require.NoError(t, m.Acquire(tid, pid, ReadOnly))
	require.NoError(t, m.Acquire(tid, pid, ReadOnly))
	assert.True(t, m.HoldsLock(tid, pid))

	m.Release(tid, pid)
	assert.False(t, m.HoldsLock(tid, pid))
}

// A transaction already holding EXCLUSIVE that re-acquires SHARED must not
// downgrade the lock: a second transaction's SHARED acquire still has to
// wait (and times out) behind the still-exclusive holder.
func TestManager_ExclusiveHolderReacquiringSharedDoesNotDowngrade(t *testing.T) {
	m := NewManager(testTimeouts())
	pid := testPage()
	writer, reader := txnid.NewTransactionID(), txnid.NewTransactionID()

	require.NoError(t, m.Acquire(writer, pid, ReadWrite))
	require.NoError(t, m.Acquire(writer, pid, ReadOnly))

	err := m.Acquire(reader, pid, ReadOnly)
	require.Error(t, err)
	assert.False(t, m.HoldsLock(reader, pid))
	assert.True(t, m.HoldsLock(writer, pid))
}

// I6: once a lock's holder set empties, the manager forgets it rather than
// retaining an entry per page ever touched.
func TestManager_EmptyLockIsGarbageCollected(t *testing.T) {
	m := NewManager(testTimeouts())
	pid := testPage()
	tid := txnid.NewTransactionID()

	require.NoError(t, m.Acquire(tid, pid, ReadWrite))
	assert.Equal(t, 1, m.LockCount())

	m.Release(tid, pid)
	assert.Equal(t, 0, m.LockCount())
}

// Two disjoint pages never contend, even under a writer/writer pattern.
func TestManager_DisjointPagesDoNotContend(t *testing.T) {
	m := NewManager(testTimeouts())
	pidA := storage.NewPageId(primitives.TableID(1), 0)
	pidB := storage.NewPageId(primitives.TableID(1), 1)
	t1, t2 := txnid.NewTransactionID(), txnid.NewTransactionID()

	require.NoError(t, m.Acquire(t1, pidA, ReadWrite))
	require.NoError(t, m.Acquire(t2, pidB, ReadWrite))
}

// A pool of writers racing for the same page all eventually complete
// (each either wins the lock or times out cleanly), and the manager's
// internal state never deadlocks the test itself.
func TestManager_ConcurrentWritersConverge(t *testing.T) {
	m := NewManager(Timeouts{Min: 20 * time.Millisecond, Range: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond})
	pid := testPage()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tid := txnid.NewTransactionID()
			if err := m.Acquire(tid, pid, ReadWrite); err == nil {
				time.Sleep(2 * time.Millisecond)
				m.Release(tid, pid)
			}
		}()
	}

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()

	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		t.Fatal("writers never converged")
	}
	assert.Equal(t, 0, m.LockCount())
}
