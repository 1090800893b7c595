package heap

import (
	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
)

// File is a table's backing file: a dense sequence of fixed-size pages
// numbered from 0, each holding a bitmap-header slotted page (pkg/heap.Page).
// It implements storage.DbFile.
type File struct {
	*storage.BaseFile
	tupleDesc *tuplerec.TupleDescriptor
}

// NewFile opens (or creates) a heap file at path under the given tuple
// descriptor.
func NewFile(path primitives.Filepath, td *tuplerec.TupleDescriptor) (*File, error) {
	base, err := storage.NewBaseFile(path)
	if err != nil {
		return nil, err
	}
	return &File{BaseFile: base, tupleDesc: td}, nil
}

// TupleDesc returns the schema every page of this file was formatted with.
func (f *File) TupleDesc() *tuplerec.TupleDescriptor {
	return f.tupleDesc
}

// ReadPage reads pid from disk. pid naming a page at or past the current
// end of file is a programmer error (InvalidRequest), not a blank page;
// callers that want to grow the file call AllocateNewPage first. A short
// read within the file's current bounds (a torn write) is a StorageFault.
func (f *File) ReadPage(pid storage.PageId) (storage.Page, error) {
	if pid.TableID != f.TableID() {
		return nil, dberr.New(dberr.InvalidRequest, "ReadPage", "heap", "page id table mismatch")
	}

	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}
	if pid.PageNumber >= numPages {
		return nil, dberr.New(dberr.InvalidRequest, "ReadPage", "heap", "read beyond end of file")
	}

	data, err := f.ReadPageData(pid.PageNumber)
	if err != nil {
		return nil, dberr.Wrap(dberr.StorageFault, err, "ReadPage", "heap")
	}

	return NewPage(pid, data, f.tupleDesc)
}

// WritePage writes p's current bytes to its designated on-disk slot. Only
// called by the buffer pool's flush path, never directly by operators.
func (f *File) WritePage(p storage.Page) error {
	if p == nil {
		return dberr.New(dberr.InvalidRequest, "WritePage", "heap", "page cannot be nil")
	}
	return f.WritePageData(p.ID().PageNumber, p.Bytes())
}

// WriteRawPage writes data verbatim to pid's slot, bypassing page parsing.
// WAL rollback uses this to restore a before-image directly.
func (f *File) WriteRawPage(pid storage.PageId, data []byte) error {
	if pid.TableID != f.TableID() {
		return dberr.New(dberr.InvalidRequest, "WriteRawPage", "heap", "page id table mismatch")
	}
	return f.WritePageData(pid.PageNumber, data)
}
