// Package walog implements the write-ahead log: an append-only file of
// BEGIN/UPDATE/COMMIT/ABORT/CHECKPOINT records, each carrying its own
// starting file offset as a trailing back-pointer (I7) so undo can walk the
// log backwards without an auxiliary index. It replaces the teacher's
// LSN-indexed pkg/log, which used leading size prefixes instead of trailing
// back-pointers.
package walog

import (
	"encoding/binary"
	"fmt"

	"github.com/rennervale/pagestore/pkg/storage"
)

// RecordType tags each record in the log.
type RecordType byte

const (
	RecBegin RecordType = iota + 1
	RecUpdate
	RecCommit
	RecAbort
	RecCheckpointBegin
	RecCheckpoint
)

// headerLen is the byte length of the file's leading checkpoint pointer.
const headerLen = 8

// HeaderLen is headerLen, exported for recovery's analysis pass to compute
// the first possible record offset when no checkpoint exists.
const HeaderLen = headerLen

// NoCheckpoint is the header sentinel meaning no checkpoint has completed.
const NoCheckpoint int64 = -1

// CheckpointEntry records one live transaction's earliest log offset at the
// moment a checkpoint was taken.
type CheckpointEntry struct {
	TID         int64
	FirstOffset int64
}

// Record is a single decoded log entry, plus the file offset it began at.
type Record struct {
	Type        RecordType
	TID         int64 // valid for Begin/Update/Commit/Abort
	PageID      storage.PageId
	Before      []byte
	After       []byte
	Checkpoint  []CheckpointEntry
	StartOffset int64
}

func encodeBegin(tid int64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(RecBegin)
	binary.BigEndian.PutUint64(buf[1:9], uint64(tid))
	return buf
}

func encodeCommit(tid int64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(RecCommit)
	binary.BigEndian.PutUint64(buf[1:9], uint64(tid))
	return buf
}

func encodeAbort(tid int64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(RecAbort)
	binary.BigEndian.PutUint64(buf[1:9], uint64(tid))
	return buf
}

func encodeUpdate(tid int64, pid storage.PageId, before, after []byte) []byte {
	pidBytes := pid.Serialize()
	buf := make([]byte, 0, 1+8+len(pidBytes)+len(before)+len(after))
	buf = append(buf, byte(RecUpdate))
	tidBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(tidBuf, uint64(tid))
	buf = append(buf, tidBuf...)
	buf = append(buf, pidBytes...)
	buf = append(buf, before...)
	buf = append(buf, after...)
	return buf
}

func encodeCheckpointBegin() []byte {
	return []byte{byte(RecCheckpointBegin)}
}

func encodeCheckpoint(entries []CheckpointEntry) []byte {
	buf := make([]byte, 0, 1+4+len(entries)*16)
	buf = append(buf, byte(RecCheckpoint))
	countBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(countBuf, uint32(len(entries)))
	buf = append(buf, countBuf...)
	for _, e := range entries {
		entryBuf := make([]byte, 16)
		binary.BigEndian.PutUint64(entryBuf[0:8], uint64(e.TID))
		binary.BigEndian.PutUint64(entryBuf[8:16], uint64(e.FirstOffset))
		buf = append(buf, entryBuf...)
	}
	return buf
}

// withTrailer appends the 8-byte back-pointer (I7): the offset at which
// this record began.
func withTrailer(body []byte, startOffset int64) []byte {
	trailer := make([]byte, 8)
	binary.BigEndian.PutUint64(trailer, uint64(startOffset))
	return append(body, trailer...)
}

// fixedRecordLen returns the total on-disk length of a record type whose
// length is fixed for a given page size (BEGIN/COMMIT/ABORT,
// CHECKPOINT_BEGIN, UPDATE), or 0 for CHECKPOINT, whose length depends on
// its entry count and must be measured explicitly, and for unknown types.
func fixedRecordLen(t RecordType, pageSize int) int {
	switch t {
	case RecBegin, RecCommit, RecAbort:
		return 1 + 8 + 8 // type + tid + trailer
	case RecCheckpointBegin:
		return 1 + 8 // type + trailer
	case RecUpdate:
		return 1 + 8 + 8 + 2*pageSize + 8 // type + tid + pageId + before + after + trailer
	default:
		return 0
	}
}

func decodeRecord(buf []byte, startOffset int64, pageSize int) (*Record, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty record buffer")
	}
	t := RecordType(buf[0])
	r := &Record{Type: t, StartOffset: startOffset}

	switch t {
	case RecBegin, RecCommit, RecAbort:
		if len(buf) < 9 {
			return nil, fmt.Errorf("truncated record")
		}
		r.TID = int64(binary.BigEndian.Uint64(buf[1:9]))
		return r, nil

	case RecCheckpointBegin:
		return r, nil

	case RecUpdate:
		if len(buf) < 9+8+2*pageSize {
			return nil, fmt.Errorf("truncated update record")
		}
		r.TID = int64(binary.BigEndian.Uint64(buf[1:9]))
		pid, err := storage.DeserializePageId(buf[9:17])
		if err != nil {
			return nil, err
		}
		r.PageID = pid
		r.Before = append([]byte(nil), buf[17:17+pageSize]...)
		r.After = append([]byte(nil), buf[17+pageSize:17+2*pageSize]...)
		return r, nil

	case RecCheckpoint:
		if len(buf) < 5 {
			return nil, fmt.Errorf("truncated checkpoint record")
		}
		count := binary.BigEndian.Uint32(buf[1:5])
		entries := make([]CheckpointEntry, 0, count)
		off := 5
		for i := uint32(0); i < count; i++ {
			if off+16 > len(buf) {
				return nil, fmt.Errorf("truncated checkpoint entries")
			}
			entries = append(entries, CheckpointEntry{
				TID:         int64(binary.BigEndian.Uint64(buf[off : off+8])),
				FirstOffset: int64(binary.BigEndian.Uint64(buf[off+8 : off+16])),
			})
			off += 16
		}
		r.Checkpoint = entries
		return r, nil
	}

	return nil, fmt.Errorf("unknown record type %d", t)
}

// checkpointRecordLen computes the on-disk length of a checkpoint record
// with the given number of entries.
func checkpointRecordLen(numEntries int) int {
	return 1 + 4 + numEntries*16 + 8
}
