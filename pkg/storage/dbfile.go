package storage

import "github.com/rennervale/pagestore/pkg/primitives"

// DbFile is the page store's view of a table's backing file: read/write a
// single page, and report the file's current page count. The buffer pool
// depends only on this interface, not on the heap package directly, so
// recovery and the WAL can address any table file uniformly.
type DbFile interface {
	// TableID returns this file's stable, path-derived identifier.
	TableID() primitives.TableID

	// ReadPage reads pid from disk. pid naming a page at or past the
	// current end of file is a programmer error and returns InvalidRequest;
	// callers that want to grow the file call AllocateNewPage first. A
	// short read within the file's current bounds (a torn write) returns
	// StorageFault.
	ReadPage(pid PageId) (Page, error)

	// WritePage writes p's current bytes to its page's on-disk slot. Only
	// ever called by the buffer pool's flush path, never directly by
	// operators.
	WritePage(p Page) error

	// WriteRawPage writes data verbatim to pid's on-disk slot, bypassing any
	// Page abstraction. Used by WAL rollback to restore a before-image and by
	// recovery's redo pass to reapply an after-image, without round-tripping
	// either through page parsing.
	WriteRawPage(pid PageId, data []byte) error

	// NumPages reports floor(fileLength / PageSize).
	NumPages() (primitives.PageNumber, error)

	// AllocateNewPage atomically extends the file by one zero-filled page
	// and returns its page number. Used by insertTuple's scan-then-grow
	// path (§4.1) when no existing page has a free slot.
	AllocateNewPage() (primitives.PageNumber, error)

	// Close releases the underlying OS file handle.
	Close() error
}
