// Package engine assembles the catalog, buffer pool, lock manager and
// write-ahead log into the single callable surface described in the
// design notes: begin a transaction, fetch a page under lock, mutate
// tuples, commit or abort, and recover after a crash. It resolves the
// buffer-pool/WAL circular dependency by constructing both, then binding
// the WAL's collaborator interfaces to the concrete catalog and buffer
// pool afterward.
package engine

import (
	"github.com/rennervale/pagestore/internal/applog"
	"github.com/rennervale/pagestore/internal/config"
	"github.com/rennervale/pagestore/pkg/buffer"
	"github.com/rennervale/pagestore/pkg/catalog"
	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/pagelock"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/recovery"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
	"github.com/rennervale/pagestore/pkg/txnid"
	"github.com/rennervale/pagestore/pkg/walog"
)

// Engine is the page store's top-level handle.
type Engine struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	locks   *pagelock.Manager
	log     *walog.Log
	pool    *buffer.Pool
}

// Open builds an Engine from cfg: opens (or creates) the WAL, opens every
// existing table file under cfg.DataDir, runs crash recovery, and wires
// the buffer pool and log together.
func Open(cfg *config.Config, td *tuplerec.TupleDescriptor) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cat := catalog.New()
	dataDir := primitives.Filepath(cfg.DataDir)
	if dataDir.Exists() {
		if _, err := cat.LoadDir(dataDir, td); err != nil {
			return nil, err
		}
	} else if err := dataDir.EnsureDir(0o750); err != nil {
		return nil, dberr.Wrap(dberr.StorageFault, err, "Open", "engine")
	}

	log, err := walog.Open(cfg.WALPath, cfg.PageSize)
	if err != nil {
		return nil, err
	}

	locks := pagelock.NewManager(pagelock.Timeouts{
		Min:          cfg.LockTimeoutMin(),
		Range:        cfg.LockTimeoutRange(),
		PollInterval: cfg.LockPollInterval(),
	})

	pool := buffer.NewPool(cfg.BufferPoolCapacity, locks, log, cat)
	log.Bind(cat, pool)

	applog.For("engine").Info("running crash recovery")
	summary, err := recovery.Recover(log, cat)
	if err != nil {
		return nil, err
	}
	applog.For("engine").WithField("redone", summary.RedoneUpdates).
		WithField("rolledBack", len(summary.RolledBackTxns)).
		Info("recovery complete")

	return &Engine{cfg: cfg, catalog: cat, locks: locks, log: log, pool: pool}, nil
}

// CreateTable opens (or creates) a heap file at path under td and
// registers it in the catalog.
func (e *Engine) CreateTable(path primitives.Filepath, td *tuplerec.TupleDescriptor) (primitives.TableID, error) {
	return e.catalog.Open(path, td)
}

// Begin starts a new transaction.
func (e *Engine) Begin() *txnid.TransactionID {
	return txnid.NewTransactionID()
}

// GetPage fetches pid under perm on tid's behalf, blocking per the lock
// manager's randomized-timeout policy.
func (e *Engine) GetPage(tid *txnid.TransactionID, pid storage.PageId, perm pagelock.Permission) (storage.Page, error) {
	return e.pool.GetPage(tid, pid, perm)
}

// InsertTuple inserts t into tableID on tid's behalf, scanning for a page
// with a free slot and growing the file if none has one.
func (e *Engine) InsertTuple(tid *txnid.TransactionID, tableID primitives.TableID, t *tuplerec.Tuple) error {
	return e.pool.InsertTuple(tid, tableID, t)
}

// DeleteTuple deletes t from the page its RecordID names, on tid's behalf.
func (e *Engine) DeleteTuple(tid *txnid.TransactionID, t *tuplerec.Tuple) error {
	return e.pool.DeleteTuple(tid, t)
}

// HoldsLock reports whether tid holds pid, in any mode.
func (e *Engine) HoldsLock(tid *txnid.TransactionID, pid storage.PageId) bool {
	return e.pool.HoldsLock(tid, pid)
}

// ReleasePage releases tid's hold on pid without ending the transaction.
// Risky: see pkg/buffer.Pool.ReleasePage.
func (e *Engine) ReleasePage(tid *txnid.TransactionID, pid storage.PageId) {
	e.pool.ReleasePage(tid, pid)
}

// FlushPages forces every page tid has touched to disk.
func (e *Engine) FlushPages(tid *txnid.TransactionID) error {
	return e.pool.FlushPages(tid)
}

// Commit ends tid successfully: an UPDATE record for each page tid dirtied
// and a COMMIT record are forced to the log, then every lock tid held is
// released. The pages themselves stay dirty in the cache and are not
// written to disk here.
func (e *Engine) Commit(tid *txnid.TransactionID) error {
	return e.pool.TransactionComplete(tid, true)
}

// Abort ends tid unsuccessfully: the WAL restores every page tid dirtied
// to its before-image, then every lock tid held is released.
func (e *Engine) Abort(tid *txnid.TransactionID) error {
	return e.pool.TransactionComplete(tid, false)
}

// Checkpoint forces the log and records every currently-live transaction,
// bounding future recovery's redo work.
func (e *Engine) Checkpoint() error {
	return e.log.Checkpoint()
}

// FlushAllPages forces every dirty resident page to disk.
func (e *Engine) FlushAllPages() error {
	return e.pool.FlushAllPages()
}

// Close flushes all pages and closes the log and every table file.
func (e *Engine) Close() error {
	if err := e.pool.FlushAllPages(); err != nil {
		return err
	}
	if err := e.log.Close(); err != nil {
		return err
	}
	return e.catalog.Close()
}
