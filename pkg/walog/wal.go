package walog

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
)

// TableFiles resolves a tableId to the storage.DbFile that rollback and
// redo write directly to, bypassing the buffer pool for correctness (§4.4).
type TableFiles interface {
	Get(tableID primitives.TableID) (storage.DbFile, error)
}

// PageDiscarder is the subset of the buffer pool's surface the log needs:
// the ability to evict a page from cache without touching its lock, so a
// subsequent fetch re-reads the rolled-back bytes from disk.
type PageDiscarder interface {
	DiscardPage(pid storage.PageId)
}

// Log is the single append-only write-ahead log file backing the page
// store's durability guarantees (I4, I5, I7).
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string

	pageSize int

	files     TableFiles
	discarder PageDiscarder

	// began maps a live transaction id to the offset of its own BEGIN
	// record — its earliest record offset, which Checkpoint reports
	// verbatim per §4.4's CHECKPOINT(list of (tid, firstRecordOffset)).
	began map[int64]int64
}

// Open opens (creating if necessary) the WAL file at path, writing the
// initial "no checkpoint" header if the file is new.
func Open(path string, pageSize int) (*Log, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, dberr.Wrap(dberr.StorageFault, err, "Open", "walog")
	}

	l := &Log{
		file:     file,
		path:     path,
		pageSize: pageSize,
		began:    make(map[int64]int64),
	}

	info, err := file.Stat()
	if err != nil {
		return nil, dberr.Wrap(dberr.StorageFault, err, "Open", "walog")
	}
	if info.Size() == 0 {
		if err := l.writeHeader(NoCheckpoint); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Bind wires the log's collaborators after the buffer pool and catalog
// exist. The three components have a circular dependency in the abstract
// (WAL needs to discard pages; the buffer pool needs to log writes), so
// wiring happens post-construction via these narrow interfaces rather than
// a constructor cycle.
func (l *Log) Bind(files TableFiles, discarder PageDiscarder) {
	l.files = files
	l.discarder = discarder
}

func (l *Log) writeHeader(checkpointOffset int64) error {
	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint64(buf, uint64(checkpointOffset))
	if _, err := l.file.WriteAt(buf, 0); err != nil {
		return dberr.Wrap(dberr.StorageFault, err, "writeHeader", "walog")
	}
	return l.file.Sync()
}

func (l *Log) readHeader() (int64, error) {
	buf := make([]byte, headerLen)
	if _, err := l.file.ReadAt(buf, 0); err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "readHeader", "walog")
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// appendLocked writes body (without its trailer) at EOF, appending the I7
// back-pointer, and returns the offset the record began at. Must be called
// with l.mu held.
func (l *Log) appendLocked(body []byte) (int64, error) {
	info, err := l.file.Stat()
	if err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "append", "walog")
	}
	startOffset := info.Size()

	full := withTrailer(body, startOffset)
	if _, err := l.file.WriteAt(full, startOffset); err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "append", "walog")
	}
	return startOffset, nil
}

// LogWrite emits a BEGIN record for tid the first time it writes anything,
// then an UPDATE record for the page mutation.
func (l *Log) LogWrite(tid int64, pid storage.PageId, before, after []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.began[tid]; !ok {
		beginOffset, err := l.appendLocked(encodeBegin(tid))
		if err != nil {
			return err
		}
		l.began[tid] = beginOffset
	}

	_, err := l.appendLocked(encodeUpdate(tid, pid, before, after))
	return err
}

// LogCommit emits a COMMIT record for tid and forces the log (I5).
func (l *Log) LogCommit(tid int64) error {
	l.mu.Lock()
	if _, err := l.appendLocked(encodeCommit(tid)); err != nil {
		l.mu.Unlock()
		return err
	}
	delete(l.began, tid)
	l.mu.Unlock()
	return l.Force()
}

// LogAbort emits an ABORT record for tid.
func (l *Log) LogAbort(tid int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.appendLocked(encodeAbort(tid)); err != nil {
		return err
	}
	delete(l.began, tid)
	return nil
}

// Force flushes buffered bytes and fsyncs, making every prior append
// durable.
func (l *Log) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Sync(); err != nil {
		return dberr.Wrap(dberr.StorageFault, err, "Force", "walog")
	}
	return nil
}

// Rollback performs the single reverse scan described in §4.4: walking
// from EOF back to the header, for each UPDATE whose tid is in tids it
// writes the before-image directly to the page store and discards the page
// from the buffer pool's cache. It is idempotent — replaying the same
// range reproduces the same on-disk state.
func (l *Log) Rollback(tids map[int64]bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.file.Stat()
	if err != nil {
		return dberr.Wrap(dberr.StorageFault, err, "Rollback", "walog")
	}

	offset := info.Size()
	for offset > headerLen {
		rec, recStart, err := l.readRecordEndingAt(offset)
		if err != nil {
			return err
		}

		if rec.Type == RecUpdate && tids[rec.TID] {
			file, err := l.files.Get(rec.PageID.TableID)
			if err != nil {
				return err
			}
			if err := file.WriteRawPage(rec.PageID, rec.Before); err != nil {
				return err
			}
			if l.discarder != nil {
				l.discarder.DiscardPage(rec.PageID)
			}
		}

		offset = recStart
	}
	return nil
}

// Checkpoint forces the log, appends a CHECKPOINT_BEGIN marker followed by
// a CHECKPOINT record listing every currently-live transaction (every tid
// with a BEGIN but no COMMIT/ABORT yet) and its earliest log offset, then
// atomically updates the file header.
func (l *Log) Checkpoint() error {
	if err := l.Force(); err != nil {
		return err
	}

	l.mu.Lock()
	if _, err := l.appendLocked(encodeCheckpointBegin()); err != nil {
		l.mu.Unlock()
		return err
	}

	entries := make([]CheckpointEntry, 0, len(l.began))
	for tid, beginOffset := range l.began {
		entries = append(entries, CheckpointEntry{TID: tid, FirstOffset: beginOffset})
	}

	checkpointOffset, err := l.appendLocked(encodeCheckpoint(entries))
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	if err := l.Force(); err != nil {
		return err
	}
	if err := l.writeHeader(checkpointOffset); err != nil {
		return err
	}
	return l.Force()
}

// ScanForward visits every record from offset from to EOF, in file order.
// Used by recovery's analysis and redo passes.
func (l *Log) ScanForward(from int64, visit func(*Record) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.file.Stat()
	if err != nil {
		return dberr.Wrap(dberr.StorageFault, err, "ScanForward", "walog")
	}

	offset := from
	for offset < info.Size() {
		rec, next, err := l.readRecordStartingAt(offset)
		if err != nil {
			return err
		}
		if err := visit(rec); err != nil {
			return err
		}
		offset = next
	}
	return nil
}

// readRecordStartingAt decodes the record beginning at offset, returning it
// and the offset immediately following (start of the next record).
func (l *Log) readRecordStartingAt(offset int64) (*Record, int64, error) {
	typeBuf := make([]byte, 1)
	if _, err := l.file.ReadAt(typeBuf, offset); err != nil {
		return nil, 0, dberr.Wrap(dberr.StorageFault, err, "readRecordStartingAt", "walog")
	}
	t := RecordType(typeBuf[0])

	var totalLen int
	if t == RecCheckpoint {
		header := make([]byte, 5)
		if _, err := l.file.ReadAt(header, offset); err != nil {
			return nil, 0, dberr.Wrap(dberr.StorageFault, err, "readRecordStartingAt", "walog")
		}
		count := binary.BigEndian.Uint32(header[1:5])
		totalLen = checkpointRecordLen(int(count))
	} else {
		totalLen = fixedRecordLen(t, l.pageSize)
	}
	if totalLen == 0 {
		return nil, 0, dberr.New(dberr.StorageFault, "readRecordStartingAt", "walog", "unknown record type in log")
	}

	full := make([]byte, totalLen)
	if _, err := l.file.ReadAt(full, offset); err != nil {
		return nil, 0, dberr.Wrap(dberr.StorageFault, err, "readRecordStartingAt", "walog")
	}

	rec, err := decodeRecord(full[:totalLen-8], offset, l.pageSize)
	if err != nil {
		return nil, 0, dberr.Wrap(dberr.StorageFault, err, "readRecordStartingAt", "walog")
	}
	return rec, offset + int64(totalLen), nil
}

// ReadRecordAt decodes the single record beginning at offset. Recovery's
// analysis pass uses this to read the CHECKPOINT record the header points
// to.
func (l *Log) ReadRecordAt(offset int64) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, _, err := l.readRecordStartingAt(offset)
	return rec, err
}

// LastCheckpointOffset reads the file header's checkpoint pointer.
func (l *Log) LastCheckpointOffset() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readHeader()
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// readRecordEndingAt reads the record whose trailer back-pointer sits
// immediately before offset (I7), returning the decoded record and the
// offset it began at.
func (l *Log) readRecordEndingAt(offset int64) (*Record, int64, error) {
	if offset < headerLen+9 {
		return nil, 0, dberr.New(dberr.StorageFault, "readRecordEndingAt", "walog", "offset precedes first record")
	}

	trailerBuf := make([]byte, 8)
	if _, err := l.file.ReadAt(trailerBuf, offset-8); err != nil {
		return nil, 0, dberr.Wrap(dberr.StorageFault, err, "readRecordEndingAt", "walog")
	}
	startOffset := int64(binary.BigEndian.Uint64(trailerBuf))
	if startOffset < headerLen || startOffset >= offset-8 {
		return nil, 0, dberr.New(dberr.StorageFault, "readRecordEndingAt", "walog", "corrupt back-pointer")
	}

	body := make([]byte, offset-8-startOffset)
	if _, err := l.file.ReadAt(body, startOffset); err != nil {
		return nil, 0, dberr.Wrap(dberr.StorageFault, err, "readRecordEndingAt", "walog")
	}

	rec, err := decodeRecord(body, startOffset, l.pageSize)
	if err != nil {
		return nil, 0, dberr.Wrap(dberr.StorageFault, err, "readRecordEndingAt", "walog")
	}
	return rec, startOffset, nil
}
