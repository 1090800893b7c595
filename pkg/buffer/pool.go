package buffer

import (
	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/pagelock"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
	"github.com/rennervale/pagestore/pkg/txnid"
	"github.com/rennervale/pagestore/pkg/walog"

	"sync"
)

// TableFiles resolves a table id to its backing storage.DbFile. Satisfied
// by pkg/catalog.Catalog; kept as a narrow interface here so the buffer
// pool doesn't depend on catalog's construction-time concerns.
type TableFiles interface {
	Get(tableID primitives.TableID) (storage.DbFile, error)
}

// Pool is the transactional page cache: it serves pages under lock,
// tracks which pages each transaction has dirtied, and enforces
// STEAL/NO-FORCE durability by coordinating with pkg/walog before any
// dirty page reaches disk.
//
// A single mutex serializes get/evict/flush/discard against each other,
// matching the spec's requirement that eviction, explicit flush, and
// discard never race over the same page.
type Pool struct {
	mu sync.Mutex

	cache *lruPageCache
	locks *pagelock.Manager
	log   *walog.Log
	files TableFiles

	// pendingLog marks pages whose in-memory mutation has not yet been
	// recorded in the WAL. A dirty page is logged exactly once, either
	// when its owning transaction commits or when eviction/an explicit
	// flush steals it out from under a still-live transaction (I4); the
	// entry is cleared the moment the record is forced.
	pendingLog map[storage.PageId]bool

	// tidPages tracks every page id a transaction currently holds a lock
	// on, so transactionComplete can release them all without scanning
	// every lock in the manager.
	tidPagesMu sync.Mutex
	tidPages   map[int64]map[storage.PageId]bool
}

// NewPool builds a buffer pool of the given page capacity.
func NewPool(capacity int, locks *pagelock.Manager, log *walog.Log, files TableFiles) *Pool {
	return &Pool{
		cache:      newLRUPageCache(capacity),
		locks:      locks,
		log:        log,
		files:      files,
		pendingLog: make(map[storage.PageId]bool),
		tidPages:   make(map[int64]map[storage.PageId]bool),
	}
}

func (p *Pool) trackPage(tid *txnid.TransactionID, pid storage.PageId) {
	p.tidPagesMu.Lock()
	defer p.tidPagesMu.Unlock()

	set, ok := p.tidPages[tid.ID()]
	if !ok {
		set = make(map[storage.PageId]bool)
		p.tidPages[tid.ID()] = set
	}
	set[pid] = true
}

func (p *Pool) takePages(tid *txnid.TransactionID) []storage.PageId {
	p.tidPagesMu.Lock()
	defer p.tidPagesMu.Unlock()

	set := p.tidPages[tid.ID()]
	delete(p.tidPages, tid.ID())

	out := make([]storage.PageId, 0, len(set))
	for pid := range set {
		out = append(out, pid)
	}
	return out
}

// GetPage acquires pid under perm for tid (blocking per the lock manager's
// randomized-timeout policy), then returns it from cache, loading from
// disk (and evicting an LRU victim if the pool is full) on a miss.
func (p *Pool) GetPage(tid *txnid.TransactionID, pid storage.PageId, perm pagelock.Permission) (storage.Page, error) {
	if err := p.locks.Acquire(tid, pid, perm); err != nil {
		return nil, err
	}
	p.trackPage(tid, pid)

	p.mu.Lock()
	defer p.mu.Unlock()

	if page, ok := p.cache.Get(pid); ok {
		return page, nil
	}

	file, err := p.files.Get(pid.TableID)
	if err != nil {
		return nil, err
	}
	page, err := file.ReadPage(pid)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Put(pid, page); err != nil {
		if evictErr := p.evictOneLocked(); evictErr != nil {
			return nil, evictErr
		}
		if err := p.cache.Put(pid, page); err != nil {
			return nil, dberr.Wrap(dberr.StorageFault, err, "GetPage", "buffer")
		}
	}
	return page, nil
}

// evictOneLocked flushes and discards the least-recently-used page,
// implementing STEAL: a dirty, uncommitted page may be written to disk as
// long as its WAL record was forced first. Must be called with p.mu held.
func (p *Pool) evictOneLocked() error {
	for _, pid := range p.cache.GetAll() {
		page, ok := p.cache.Get(pid)
		if !ok {
			continue
		}
		if page.Dirtier() != nil {
			if err := p.flushPageLocked(page); err != nil {
				return err
			}
		}
		p.cache.Remove(pid)
		return nil
	}
	return dberr.New(dberr.StorageFault, "evictOneLocked", "buffer", "buffer pool full and no page could be evicted")
}

// flushPageLocked writes page to disk, logging it first (I4) if its
// mutation hasn't already been recorded by an earlier flush or by its
// owner's commit. Must be called with p.mu held.
func (p *Pool) flushPageLocked(page storage.Page) error {
	if page.Dirtier() == nil {
		return nil
	}
	pid := page.ID()
	if p.pendingLog[pid] {
		if err := p.log.LogWrite(page.Dirtier().ID(), pid, page.BeforeImage().Bytes(), page.Bytes()); err != nil {
			return err
		}
		if err := p.log.Force(); err != nil {
			return err
		}
		page.SetBeforeImage()
		delete(p.pendingLog, pid)
	}
	file, err := p.files.Get(pid.TableID)
	if err != nil {
		return err
	}
	if err := file.WritePage(page); err != nil {
		return err
	}
	page.MarkDirty(false, nil)
	return nil
}

// slotCounter is the subset of storage.Page a heap page satisfies, used to
// find a page with room during the insertTuple scan without depending on
// pkg/heap's concrete page type.
type slotCounter interface {
	NumEmptySlots() primitives.SlotID
}

type tupleInserter interface {
	InsertTuple(*tuplerec.Tuple) error
}

type tupleDeleter interface {
	DeleteTuple(*tuplerec.Tuple) error
}

// InsertTuple implements the spec's scan-then-grow insert (§4.1): it walks
// tableID's pages in order through GetPage (so each candidate page is
// acquired EXCLUSIVE as the scan proceeds), stopping at the first page
// with a free slot. If none exists, it appends a fresh page to the file
// and inserts into that instead. Every page visited is left correctly
// locked for tid per strict 2PL; only the page actually mutated is marked
// dirty and queued for logging.
func (p *Pool) InsertTuple(tid *txnid.TransactionID, tableID primitives.TableID, t *tuplerec.Tuple) error {
	file, err := p.files.Get(tableID)
	if err != nil {
		return err
	}

	numPages, err := file.NumPages()
	if err != nil {
		return err
	}

	for pageNum := primitives.PageNumber(0); pageNum < numPages; pageNum++ {
		pid := storage.NewPageId(tableID, pageNum)
		page, err := p.GetPage(tid, pid, pagelock.ReadWrite)
		if err != nil {
			return err
		}
		counter, ok := page.(slotCounter)
		if !ok || counter.NumEmptySlots() == 0 {
			continue
		}
		return p.insertInto(tid, page, t)
	}

	// AllocateNewPage recomputes the file's current size under its own
	// lock, so the page number it hands back may be larger than numPages
	// if another insert grew the file concurrently; use its return value,
	// not the stale local count.
	newPageNum, err := file.AllocateNewPage()
	if err != nil {
		return err
	}
	pid := storage.NewPageId(tableID, newPageNum)
	page, err := p.GetPage(tid, pid, pagelock.ReadWrite)
	if err != nil {
		return err
	}
	return p.insertInto(tid, page, t)
}

// insertAt inserts t into pid directly, bypassing the scan-for-free-slot
// walk InsertTuple performs. Unexported: used only by whitebox tests that
// need to target a specific page to exercise eviction/STEAL behavior
// deterministically.
func (p *Pool) insertAt(tid *txnid.TransactionID, pid storage.PageId, t *tuplerec.Tuple) error {
	page, err := p.GetPage(tid, pid, pagelock.ReadWrite)
	if err != nil {
		return err
	}
	return p.insertInto(tid, page, t)
}

func (p *Pool) insertInto(tid *txnid.TransactionID, page storage.Page, t *tuplerec.Tuple) error {
	inserter, ok := page.(tupleInserter)
	if !ok {
		return dberr.New(dberr.InvalidRequest, "InsertTuple", "buffer", "page type does not support tuple insertion")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := inserter.InsertTuple(t); err != nil {
		return err
	}
	page.MarkDirty(true, tid)
	p.pendingLog[page.ID()] = true
	return nil
}

// DeleteTuple deletes t from the page its RecordID names, on behalf of
// tid.
func (p *Pool) DeleteTuple(tid *txnid.TransactionID, t *tuplerec.Tuple) error {
	pid := storage.NewPageId(t.RecordID.TableID, t.RecordID.PageID)
	page, err := p.GetPage(tid, pid, pagelock.ReadWrite)
	if err != nil {
		return err
	}

	deleter, ok := page.(tupleDeleter)
	if !ok {
		return dberr.New(dberr.InvalidRequest, "DeleteTuple", "buffer", "page type does not support tuple deletion")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := deleter.DeleteTuple(t); err != nil {
		return err
	}
	page.MarkDirty(true, tid)
	p.pendingLog[page.ID()] = true
	return nil
}

// TransactionComplete ends tid's transaction. On commit, every page it
// dirtied that hasn't already been logged by an intervening STEAL flush
// gets a single UPDATE record spanning the whole transaction's before-
// and after-images, which is forced before commit returns; the pages
// themselves are left dirty in the cache for a later flush (NO-FORCE).
// On abort, any page already stolen to disk is restored via the WAL's
// reverse scan, and any page still only dirty in cache (never logged,
// so disk was never touched) is simply discarded. Either way every lock
// tid holds is released, and the lock manager garbage-collects empty
// locks (I6).
func (p *Pool) TransactionComplete(tid *txnid.TransactionID, commit bool) error {
	pages := p.takePages(tid)

	if commit {
		if err := p.logAndAdvanceOwnedBy(tid); err != nil {
			return err
		}
		if err := p.log.LogCommit(tid.ID()); err != nil {
			return err
		}
	} else {
		if err := p.log.LogAbort(tid.ID()); err != nil {
			return err
		}
		if err := p.log.Rollback(map[int64]bool{tid.ID(): true}); err != nil {
			return err
		}
		p.discardUnloggedOwnedBy(tid)
	}

	for _, pid := range pages {
		p.locks.Release(tid, pid)
	}
	return nil
}

// logAndAdvanceOwnedBy appends and forces a single UPDATE record for
// every page tid dirtied that hasn't already been logged by a STEAL
// flush, then advances each page's before-image to its current bytes.
// It does not write the pages to disk (NO-FORCE).
func (p *Pool) logAndAdvanceOwnedBy(tid *txnid.TransactionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pid := range p.cache.GetAll() {
		page, ok := p.cache.Get(pid)
		if !ok {
			continue
		}
		dirtier := page.Dirtier()
		if dirtier == nil || !dirtier.Equals(tid) || !p.pendingLog[pid] {
			continue
		}
		if err := p.log.LogWrite(tid.ID(), pid, page.BeforeImage().Bytes(), page.Bytes()); err != nil {
			return err
		}
		if err := p.log.Force(); err != nil {
			return err
		}
		page.SetBeforeImage()
		delete(p.pendingLog, pid)
	}
	return nil
}

// discardUnloggedOwnedBy drops any page still dirtied by tid that was
// never logged, meaning it was never written to disk either; there is
// nothing for the WAL to undo, so the cached copy is simply thrown away.
func (p *Pool) discardUnloggedOwnedBy(tid *txnid.TransactionID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pid := range p.cache.GetAll() {
		page, ok := p.cache.Get(pid)
		if !ok {
			continue
		}
		dirtier := page.Dirtier()
		if dirtier == nil || !dirtier.Equals(tid) {
			continue
		}
		delete(p.pendingLog, pid)
		p.cache.Remove(pid)
	}
}

// touchedPages returns a snapshot of every page id tid currently holds a
// lock on, without clearing the tracking set (unlike takePages, which
// transactionComplete uses to drain it).
func (p *Pool) touchedPages(tid *txnid.TransactionID) []storage.PageId {
	p.tidPagesMu.Lock()
	defer p.tidPagesMu.Unlock()

	set := p.tidPages[tid.ID()]
	out := make([]storage.PageId, 0, len(set))
	for pid := range set {
		out = append(out, pid)
	}
	return out
}

// FlushPages forces every page tid has touched to disk individually,
// logging and forcing first per I4 if its mutation hasn't already been
// recorded. Exposed on the callable surface (§6) for collaborators that
// need durability for one transaction's pages without flushing the whole
// cache.
func (p *Pool) FlushPages(tid *txnid.TransactionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pid := range p.touchedPages(tid) {
		page, ok := p.cache.Get(pid)
		if !ok {
			continue
		}
		if err := p.flushPageLocked(page); err != nil {
			return err
		}
	}
	return nil
}

// ReleasePage releases tid's hold on pid without ending the transaction.
// Documented in the spec as risky: releasing a lock before transaction
// completion breaks strict 2PL's recoverability guarantee for whatever
// that page holds, so only a caller that has already made the page's
// mutation durable (or never mutated it) should call this.
func (p *Pool) ReleasePage(tid *txnid.TransactionID, pid storage.PageId) {
	p.locks.Release(tid, pid)

	p.tidPagesMu.Lock()
	defer p.tidPagesMu.Unlock()
	if set, ok := p.tidPages[tid.ID()]; ok {
		delete(set, pid)
	}
}

// FlushAllPages forces every dirty resident page to disk, regardless of
// owner. Used at shutdown and by explicit checkpoints.
func (p *Pool) FlushAllPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pid := range p.cache.GetAll() {
		page, ok := p.cache.Get(pid)
		if !ok {
			continue
		}
		if err := p.flushPageLocked(page); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage evicts pid from the cache without flushing or touching its
// lock. Satisfies walog.PageDiscarder for rollback's use.
func (p *Pool) DiscardPage(pid storage.PageId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pendingLog, pid)
	p.cache.Remove(pid)
}

// HoldsLock reports whether tid currently holds pid, in any mode.
func (p *Pool) HoldsLock(tid *txnid.TransactionID, pid storage.PageId) bool {
	return p.locks.HoldsLock(tid, pid)
}
