package heap

import (
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
)

// FileIterator walks every occupied tuple of a File in page order, then
// slot order within each page. It reads pages directly through the file
// (bypassing the buffer pool and its locking), matching the teacher's own
// two-level HeapFileIterator/HeapPageIterator split — appropriate here for
// read-only verification and recovery-time scans that run before any
// transaction takes locks.
type FileIterator struct {
	file    *File
	numPage primitives.PageNumber
	curPage primitives.PageNumber
	tuples  []*tuplerec.Tuple
	pos     int
	opened  bool
}

// NewFileIterator builds an iterator over f. Call Open before Next/HasNext.
func NewFileIterator(f *File) *FileIterator {
	return &FileIterator{file: f}
}

// Open positions the iterator at the first tuple of the file.
func (it *FileIterator) Open() error {
	n, err := it.file.NumPages()
	if err != nil {
		return err
	}
	it.numPage = n
	it.curPage = 0
	it.tuples = nil
	it.pos = 0
	it.opened = true
	return it.loadPage()
}

func (it *FileIterator) loadPage() error {
	for it.curPage < it.numPage {
		p, err := it.file.ReadPage(storage.NewPageId(it.file.TableID(), it.curPage))
		if err != nil {
			return err
		}
		hp := p.(*Page)
		it.tuples = hp.Tuples()
		it.pos = 0
		it.curPage++
		if len(it.tuples) > 0 {
			return nil
		}
	}
	it.tuples = nil
	return nil
}

// HasNext reports whether another tuple remains.
func (it *FileIterator) HasNext() bool {
	if !it.opened {
		return false
	}
	return it.pos < len(it.tuples)
}

// Next returns the next tuple, advancing to the following page as needed.
func (it *FileIterator) Next() (*tuplerec.Tuple, error) {
	if !it.HasNext() {
		return nil, nil
	}
	t := it.tuples[it.pos]
	it.pos++
	if it.pos >= len(it.tuples) {
		if err := it.loadPage(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Close releases the iterator's state.
func (it *FileIterator) Close() {
	it.opened = false
	it.tuples = nil
}
