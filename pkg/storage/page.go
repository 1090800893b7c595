// Package storage holds the page-level abstractions shared by every table's
// backing file: the PageId value type, the Page interface implemented by
// heap pages, and BaseFile, the random-access file layer heap files build on.
package storage

import (
	"github.com/rennervale/pagestore/pkg/txnid"
)

// PageSize is the size of each page in bytes. It is a process-lifetime
// constant: the page-size-mutability design note is resolved by reading it
// once at startup (internal/config) and never exposing a setter.
const PageSize = 4096

// Page is a page resident in the buffer pool. Pages may be dirty, indicating
// they have been modified since the last write to disk.
type Page interface {
	// ID returns the identifier of this page.
	ID() PageId

	// Dirtier returns the transaction that last dirtied this page, or nil
	// if the page is clean.
	Dirtier() *txnid.TransactionID

	// MarkDirty sets the dirty state of this page.
	MarkDirty(dirty bool, tid *txnid.TransactionID)

	// Bytes returns the page's current byte image, used to serialize this
	// page to disk.
	Bytes() []byte

	// BeforeImage returns a Page holding this page's bytes as of the last
	// time its mutation was logged: at commit, or at a STEAL flush of a
	// still-live transaction's page. The buffer pool uses it as the before
	// side of the UPDATE records it writes.
	BeforeImage() Page

	// SetBeforeImage copies the current content into the before-image. Called
	// when the buffer pool logs this page's mutation, either because the
	// transaction that wrote it commits or because a flush steals it.
	SetBeforeImage()
}
