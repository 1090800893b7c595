package buffer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennervale/pagestore/pkg/catalog"
	"github.com/rennervale/pagestore/pkg/heap"
	"github.com/rennervale/pagestore/pkg/pagelock"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
	"github.com/rennervale/pagestore/pkg/txnid"
	"github.com/rennervale/pagestore/pkg/walog"
)

type testRig struct {
	pool    *Pool
	log     *walog.Log
	cat     *catalog.Catalog
	tableID primitives.TableID
	td      *tuplerec.TupleDescriptor
}

func newTestRig(t *testing.T, capacity int) *testRig {
	t.Helper()
	dir := t.TempDir()

	cat := catalog.New()
	td := tuplerec.NewTupleDescriptor(8)
	tableID, err := cat.Open(primitives.Filepath(filepath.Join(dir, "t1.tbl")), td)
	require.NoError(t, err)

	log, err := walog.Open(filepath.Join(dir, "wal.log"), storage.PageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	t.Cleanup(func() { _ = cat.Close() })

	locks := pagelock.NewManager(pagelock.Timeouts{Min: 30 * time.Millisecond, Range: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond})
	pool := NewPool(capacity, locks, log, cat)
	log.Bind(cat, pool)

	return &testRig{pool: pool, log: log, cat: cat, tableID: tableID, td: td}
}

func (r *testRig) newTuple(fill byte) *tuplerec.Tuple {
	data := make([]byte, r.td.ByteWidth())
	for i := range data {
		data[i] = fill
	}
	return tuplerec.NewTuple(r.td, data)
}

func TestPool_InsertCommitThenFlushPersistsToDisk(t *testing.T) {
	r := newTestRig(t, 8)
	pid := storage.NewPageId(r.tableID, 0)
	tid := txnid.NewTransactionID()

	tup := r.newTuple(0x11)
	require.NoError(t, r.pool.InsertTuple(tid, r.tableID, tup))
	require.NoError(t, r.pool.TransactionComplete(tid, true))

	// NO-FORCE: the page need not be on disk yet, but flushing explicitly
	// (as a checkpoint would) must make it durable.
	require.NoError(t, r.pool.FlushAllPages())

	file, err := r.cat.Get(r.tableID)
	require.NoError(t, err)
	page, err := file.ReadPage(pid)
	require.NoError(t, err)
	lister := page.(interface{ Tuples() []*tuplerec.Tuple })
	require.Len(t, lister.Tuples(), 1)
	assert.Equal(t, tup.Data, lister.Tuples()[0].Data)
}

// Abort of a page that was never flushed (STEAL never happened) simply
// discards the in-memory mutation; disk is untouched because it was never
// written.
func TestPool_AbortDiscardsUnflushedDirtyPage(t *testing.T) {
	r := newTestRig(t, 8)
	pid := storage.NewPageId(r.tableID, 0)
	tid := txnid.NewTransactionID()

	require.NoError(t, r.pool.InsertTuple(tid, r.tableID, r.newTuple(0x22)))
	require.NoError(t, r.pool.TransactionComplete(tid, false))

	// Re-fetch under a new transaction: should see an empty page.
	tid2 := txnid.NewTransactionID()
	page, err := r.pool.GetPage(tid2, pid, pagelock.ReadOnly)
	require.NoError(t, err)
	lister := page.(interface{ Tuples() []*tuplerec.Tuple })
	assert.Len(t, lister.Tuples(), 0)
	require.NoError(t, r.pool.TransactionComplete(tid2, true))
}

// STEAL: forcing eviction of a still-live transaction's dirty page must log
// and write it, and a subsequent abort must roll the on-disk bytes back to
// the pre-transaction state.
func TestPool_AbortAfterStealRollsBackDisk(t *testing.T) {
	r := newTestRig(t, 1) // capacity 1 forces eviction on the second page touch
	file, err := r.cat.Get(r.tableID)
	require.NoError(t, err)
	_, err = file.AllocateNewPage()
	require.NoError(t, err)
	_, err = file.AllocateNewPage()
	require.NoError(t, err)
	pid0 := storage.NewPageId(r.tableID, 0)
	pid1 := storage.NewPageId(r.tableID, 1)
	tid := txnid.NewTransactionID()

	require.NoError(t, r.pool.insertAt(tid, pid0, r.newTuple(0x33)))
	// Touching a second page with capacity 1 evicts pid0, forcing a STEAL
	// flush of the still-live transaction's dirty page.
	require.NoError(t, r.pool.insertAt(tid, pid1, r.newTuple(0x44)))

	onDisk, err := file.ReadPage(pid0)
	require.NoError(t, err)
	lister := onDisk.(interface{ Tuples() []*tuplerec.Tuple })
	require.Len(t, lister.Tuples(), 1, "STEAL should have written the evicted dirty page to disk")

	require.NoError(t, r.pool.TransactionComplete(tid, false))

	rolledBack, err := file.ReadPage(pid0)
	require.NoError(t, err)
	assert.Len(t, rolledBack.(interface{ Tuples() []*tuplerec.Tuple }).Tuples(), 0, "rollback should restore the pre-transaction empty page")
}

// Two transactions may hold SHARED locks on the same page concurrently.
func TestPool_ConcurrentReadersDoNotBlock(t *testing.T) {
	r := newTestRig(t, 8)
	file, err := r.cat.Get(r.tableID)
	require.NoError(t, err)
	_, err = file.AllocateNewPage()
	require.NoError(t, err)
	pid := storage.NewPageId(r.tableID, 0)
	t1, t2 := txnid.NewTransactionID(), txnid.NewTransactionID()

	_, err = r.pool.GetPage(t1, pid, pagelock.ReadOnly)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.pool.GetPage(t2, pid, pagelock.ReadOnly)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second reader blocked")
	}

	require.NoError(t, r.pool.TransactionComplete(t1, true))
	require.NoError(t, r.pool.TransactionComplete(t2, true))
}

// Scenario 6: inserting more tuples than fit on one page grows the file
// page by page, every tuple lands in insertion order with no spurious
// tuples in padding slots, and numPages reflects the growth after commit.
func TestPool_InsertTupleGrowsFileAcrossPages(t *testing.T) {
	r := newTestRig(t, 8)
	tid := txnid.NewTransactionID()

	file, err := r.cat.Get(r.tableID)
	require.NoError(t, err)
	slotsPerPage := int(heap.SlotCount(storage.PageSize, r.td.ByteWidth()))
	require.Greater(t, slotsPerPage, 0)

	total := slotsPerPage*2 + 3 // spans three pages
	for i := 0; i < total; i++ {
		require.NoError(t, r.pool.InsertTuple(tid, r.tableID, r.newTuple(byte(i))))
	}
	require.NoError(t, r.pool.TransactionComplete(tid, true))
	require.NoError(t, r.pool.FlushAllPages())

	numPages, err := file.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(3), numPages)

	var seen []byte
	for pageNum := primitives.PageNumber(0); pageNum < numPages; pageNum++ {
		page, err := file.ReadPage(storage.NewPageId(r.tableID, pageNum))
		require.NoError(t, err)
		for _, tup := range page.(interface{ Tuples() []*tuplerec.Tuple }).Tuples() {
			seen = append(seen, tup.Data[0])
		}
	}
	require.Len(t, seen, total)
	for i, b := range seen {
		assert.Equal(t, byte(i), b, "tuples must read back in insertion order with no spurious entries")
	}
}

// FlushPages(tid) forces only the pages tid has touched, individually,
// without requiring transaction completion.
func TestPool_FlushPagesForcesOnlyTidsPages(t *testing.T) {
	r := newTestRig(t, 8)
	tid := txnid.NewTransactionID()

	require.NoError(t, r.pool.InsertTuple(tid, r.tableID, r.newTuple(0x55)))
	require.NoError(t, r.pool.FlushPages(tid))

	file, err := r.cat.Get(r.tableID)
	require.NoError(t, err)
	page, err := file.ReadPage(storage.NewPageId(r.tableID, 0))
	require.NoError(t, err)
	assert.Len(t, page.(interface{ Tuples() []*tuplerec.Tuple }).Tuples(), 1,
		"FlushPages should have written tid's dirty page even before transaction completion")

	require.NoError(t, r.pool.TransactionComplete(tid, true))
}

// ReleasePage drops a single lock without ending the transaction.
func TestPool_ReleasePageDropsOnlyThatLock(t *testing.T) {
	r := newTestRig(t, 8)
	file, err := r.cat.Get(r.tableID)
	require.NoError(t, err)
	_, err = file.AllocateNewPage()
	require.NoError(t, err)
	_, err = file.AllocateNewPage()
	require.NoError(t, err)
	pidA := storage.NewPageId(r.tableID, 0)
	pidB := storage.NewPageId(r.tableID, 1)
	tid := txnid.NewTransactionID()

	_, err = r.pool.GetPage(tid, pidA, pagelock.ReadOnly)
	require.NoError(t, err)
	_, err = r.pool.GetPage(tid, pidB, pagelock.ReadOnly)
	require.NoError(t, err)

	r.pool.ReleasePage(tid, pidA)
	assert.False(t, r.pool.HoldsLock(tid, pidA))
	assert.True(t, r.pool.HoldsLock(tid, pidB))

	require.NoError(t, r.pool.TransactionComplete(tid, true))
}

func TestPool_HoldsLockReflectsAcquireAndRelease(t *testing.T) {
	r := newTestRig(t, 8)
	file, err := r.cat.Get(r.tableID)
	require.NoError(t, err)
	_, err = file.AllocateNewPage()
	require.NoError(t, err)
	pid := storage.NewPageId(r.tableID, 0)
	tid := txnid.NewTransactionID()

	_, err = r.pool.GetPage(tid, pid, pagelock.ReadWrite)
	require.NoError(t, err)
	assert.True(t, r.pool.HoldsLock(tid, pid))

	require.NoError(t, r.pool.TransactionComplete(tid, true))
	assert.False(t, r.pool.HoldsLock(tid, pid))
}
