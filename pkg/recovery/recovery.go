// Package recovery implements the three-pass ARIES-style crash recovery
// the write-ahead log's STEAL/NO-FORCE durability policy requires:
// analysis, redo, undo. It deliberately produces no compensation log
// records — undo relies on the log's own before-images and the
// idempotence of applying them, so a crash during undo simply restarts
// recovery from the beginning (§4.5).
package recovery

import (
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/walog"
)

// TableFiles resolves a table id to its backing file for redo's direct
// (buffer-pool-bypassing) writes.
type TableFiles interface {
	Get(tableID primitives.TableID) (storage.DbFile, error)
}

// Summary reports what the three passes found, useful for logging and
// tests asserting on recovery behavior.
type Summary struct {
	RedoStart      int64
	CommittedTxns  []int64
	RolledBackTxns []int64
	RedoneUpdates  int
}

// Recover runs analysis, redo, and undo against log, using files for
// direct page writes. It must run before any transaction is admitted.
func Recover(log *walog.Log, files TableFiles) (*Summary, error) {
	liveTxns, committedTxns, redoStart, err := analyze(log)
	if err != nil {
		return nil, err
	}

	redoCount, err := redo(log, files, redoStart, committedTxns)
	if err != nil {
		return nil, err
	}

	if err := log.Rollback(liveTxns); err != nil {
		return nil, err
	}

	summary := &Summary{RedoStart: redoStart, RedoneUpdates: redoCount}
	for tid := range committedTxns {
		summary.CommittedTxns = append(summary.CommittedTxns, tid)
	}
	for tid := range liveTxns {
		summary.RolledBackTxns = append(summary.RolledBackTxns, tid)
	}
	return summary, nil
}

// analyze determines which transactions were live (never committed or
// aborted) at crash time, which committed, and the earliest log offset
// redo needs to replay from.
//
// If a checkpoint exists, redo only needs to start at the earliest offset
// any transaction live at checkpoint time first wrote at — everything
// before that is guaranteed already durable on disk. Without a checkpoint,
// redo must consider the entire log.
func analyze(log *walog.Log) (liveTxns map[int64]bool, committedTxns map[int64]bool, redoStart int64, err error) {
	liveTxns = make(map[int64]bool)
	committedTxns = make(map[int64]bool)

	checkpointOffset, err := log.LastCheckpointOffset()
	if err != nil {
		return nil, nil, 0, err
	}

	redoStart = walog.HeaderLen
	if checkpointOffset != walog.NoCheckpoint {
		checkpointRec, err := log.ReadRecordAt(checkpointOffset)
		if err != nil {
			return nil, nil, 0, err
		}
		redoStart = checkpointOffset
		for _, entry := range checkpointRec.Checkpoint {
			liveTxns[entry.TID] = true
			if entry.FirstOffset < redoStart {
				redoStart = entry.FirstOffset
			}
		}
	}

	err = log.ScanForward(redoStart, func(rec *walog.Record) error {
		switch rec.Type {
		case walog.RecBegin:
			liveTxns[rec.TID] = true
		case walog.RecCommit:
			committedTxns[rec.TID] = true
			delete(liveTxns, rec.TID)
		case walog.RecAbort:
			delete(liveTxns, rec.TID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, 0, err
	}

	return liveTxns, committedTxns, redoStart, nil
}

// redo idempotently reapplies every UPDATE belonging to a committed
// transaction, forward from redoStart. Writing the after-image is safe to
// repeat: a page already holding it is left unchanged.
func redo(log *walog.Log, files TableFiles, redoStart int64, committedTxns map[int64]bool) (int, error) {
	count := 0
	err := log.ScanForward(redoStart, func(rec *walog.Record) error {
		if rec.Type != walog.RecUpdate || !committedTxns[rec.TID] {
			return nil
		}
		file, err := files.Get(rec.PageID.TableID)
		if err != nil {
			return err
		}
		if err := file.WriteRawPage(rec.PageID, rec.After); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
