package walog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
)

// fakeFile is an in-memory storage.DbFile good enough to exercise rollback
// and redo without a real heap page.
type fakeFile struct {
	tableID primitives.TableID
	pages   map[primitives.PageNumber][]byte
}

func newFakeFile(tableID primitives.TableID) *fakeFile {
	return &fakeFile{tableID: tableID, pages: make(map[primitives.PageNumber][]byte)}
}

func (f *fakeFile) TableID() primitives.TableID { return f.tableID }

func (f *fakeFile) ReadPage(pid storage.PageId) (storage.Page, error) { return nil, nil }

func (f *fakeFile) WritePage(p storage.Page) error { return nil }

func (f *fakeFile) WriteRawPage(pid storage.PageId, data []byte) error {
	cp := append([]byte(nil), data...)
	f.pages[pid.PageNumber] = cp
	return nil
}

func (f *fakeFile) NumPages() (primitives.PageNumber, error) { return primitives.PageNumber(len(f.pages)), nil }

func (f *fakeFile) AllocateNewPage() (primitives.PageNumber, error) {
	n := primitives.PageNumber(len(f.pages))
	f.pages[n] = make([]byte, storage.PageSize)
	return n, nil
}

func (f *fakeFile) Close() error { return nil }

// fakeCatalog resolves every page id to a single fake file, satisfying
// walog.TableFiles.
type fakeCatalog struct {
	files map[primitives.TableID]*fakeFile
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{files: make(map[primitives.TableID]*fakeFile)}
}

func (c *fakeCatalog) Get(tableID primitives.TableID) (storage.DbFile, error) {
	f, ok := c.files[tableID]
	if !ok {
		f = newFakeFile(tableID)
		c.files[tableID] = f
	}
	return f, nil
}

// fakeDiscarder records every pid it was asked to discard.
type fakeDiscarder struct {
	discarded []storage.PageId
}

func (d *fakeDiscarder) DiscardPage(pid storage.PageId) {
	d.discarded = append(d.discarded, pid)
}

const testPageSize = 16

func openTestLog(t *testing.T) (*Log, *fakeCatalog, *fakeDiscarder) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wal.log")
	l, err := Open(path, testPageSize)
	require.NoError(t, err)
	cat := newFakeCatalog()
	disc := &fakeDiscarder{}
	l.Bind(cat, disc)
	t.Cleanup(func() { _ = l.Close() })
	return l, cat, disc
}

func pageBytes(fill byte) []byte {
	b := make([]byte, testPageSize)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestLog_OpenWritesNoCheckpointHeader(t *testing.T) {
	l, _, _ := openTestLog(t)
	off, err := l.LastCheckpointOffset()
	require.NoError(t, err)
	assert.Equal(t, NoCheckpoint, off)
}

func TestLog_LogWriteThenScanForwardRoundTrips(t *testing.T) {
	l, _, _ := openTestLog(t)
	pid := storage.NewPageId(1, 0)
	before := pageBytes(0)
	after := pageBytes(1)

	require.NoError(t, l.LogWrite(7, pid, before, after))
	require.NoError(t, l.LogCommit(7))

	var seen []RecordType
	require.NoError(t, l.ScanForward(HeaderLen, func(r *Record) error {
		seen = append(seen, r.Type)
		if r.Type == RecUpdate {
			assert.Equal(t, pid, r.PageID)
			assert.Equal(t, before, r.Before)
			assert.Equal(t, after, r.After)
			assert.Equal(t, int64(7), r.TID)
		}
		return nil
	}))
	assert.Equal(t, []RecordType{RecBegin, RecUpdate, RecCommit}, seen)
}

func TestLog_RollbackRestoresBeforeImageAndDiscards(t *testing.T) {
	l, cat, disc := openTestLog(t)
	pid := storage.NewPageId(3, 5)
	before := pageBytes(0xAA)
	after := pageBytes(0xBB)

	require.NoError(t, l.LogWrite(42, pid, before, after))
	// simulate a STEAL flush: the after-image really did reach disk
	file, err := cat.Get(pid.TableID)
	require.NoError(t, err)
	require.NoError(t, file.WriteRawPage(pid, after))

	require.NoError(t, l.LogAbort(42))
	require.NoError(t, l.Rollback(map[int64]bool{42: true}))

	assert.Equal(t, before, cat.files[3].pages[5])
	require.Len(t, disc.discarded, 1)
	assert.Equal(t, pid, disc.discarded[0])
}

// Rollback only touches records belonging to the given transaction ids;
// a committed transaction's updates are left alone even if it appears
// later in a reverse scan alongside an aborted one.
func TestLog_RollbackIgnoresOtherTransactions(t *testing.T) {
	l, cat, disc := openTestLog(t)
	pidA := storage.NewPageId(1, 0)
	pidB := storage.NewPageId(1, 1)

	require.NoError(t, l.LogWrite(1, pidA, pageBytes(0), pageBytes(1)))
	require.NoError(t, l.LogCommit(1))

	require.NoError(t, l.LogWrite(2, pidB, pageBytes(0), pageBytes(2)))
	fileA, _ := cat.Get(pidA.TableID)
	require.NoError(t, fileA.WriteRawPage(pidB, pageBytes(2)))
	require.NoError(t, l.LogAbort(2))

	require.NoError(t, l.Rollback(map[int64]bool{2: true}))

	assert.Equal(t, pageBytes(0), cat.files[1].pages[1])
	require.Len(t, disc.discarded, 1)
	assert.Equal(t, pidB, disc.discarded[0])
}

func TestLog_CheckpointUpdatesHeaderAndIsReadable(t *testing.T) {
	l, _, _ := openTestLog(t)
	pid := storage.NewPageId(1, 0)
	require.NoError(t, l.LogWrite(9, pid, pageBytes(0), pageBytes(1)))

	require.NoError(t, l.Checkpoint())

	off, err := l.LastCheckpointOffset()
	require.NoError(t, err)
	assert.Greater(t, off, int64(NoCheckpoint))

	rec, err := l.ReadRecordAt(off)
	require.NoError(t, err)
	assert.Equal(t, RecCheckpoint, rec.Type)
	require.Len(t, rec.Checkpoint, 1)
	assert.Equal(t, int64(9), rec.Checkpoint[0].TID)
}

// A transaction that never commits or aborts still gets its BEGIN/UPDATE
// pair persisted, so recovery's analysis pass can find it as live.
func TestLog_UncommittedTransactionSurvivesScan(t *testing.T) {
	l, _, _ := openTestLog(t)
	pid := storage.NewPageId(1, 0)
	require.NoError(t, l.LogWrite(5, pid, pageBytes(0), pageBytes(1)))

	var types []RecordType
	require.NoError(t, l.ScanForward(HeaderLen, func(r *Record) error {
		types = append(types, r.Type)
		return nil
	}))
	assert.Equal(t, []RecordType{RecBegin, RecUpdate}, types)
}
