package storage

import (
	"os"
	"sync"

	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/primitives"
)

// BaseFile provides the common random-access file operations every table's
// backing file needs: page-granular reads/writes, page counting, and
// atomic new-page allocation. Heap files embed it and layer tuple-aware
// page parsing on top.
//
// Thread-safety: all public methods use a read/write mutex so concurrent
// reads proceed in parallel while writes and allocation are exclusive.
type BaseFile struct {
	file     *os.File
	tableID  primitives.TableID
	mutex    sync.RWMutex
	filePath primitives.Filepath
}

// NewBaseFile opens (or creates) the backing file at filePath and derives
// its TableID from the path hash.
func NewBaseFile(filePath primitives.Filepath) (*BaseFile, error) {
	if filePath.IsEmpty() {
		return nil, dberr.New(dberr.InvalidRequest, "NewBaseFile", "storage", "filePath cannot be empty")
	}

	file, err := openFile(filePath)
	if err != nil {
		return nil, dberr.Wrap(dberr.StorageFault, err, "NewBaseFile", "storage")
	}

	return &BaseFile{
		file:     file,
		tableID:  filePath.Hash(),
		filePath: filePath,
	}, nil
}

// TableID returns this file's stable, path-derived table identifier.
func (bf *BaseFile) TableID() primitives.TableID {
	return bf.tableID
}

// NumPages returns floor(fileLength / PageSize). A torn trailing write
// (fewer than PageSize bytes past the last complete page) is not counted:
// by the time AllocateNewPage is next called, recovery has already
// overwritten that page's full PageSize bytes via WriteRawPage, so the
// partial tail never needs special handling here.
func (bf *BaseFile) NumPages() (primitives.PageNumber, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return 0, dberr.New(dberr.InvalidRequest, "NumPages", "storage", "file is closed")
	}

	info, err := bf.file.Stat()
	if err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "NumPages", "storage")
	}

	return primitives.PageNumber(info.Size() / int64(PageSize)), nil
}

// ReadPageData reads exactly PageSize bytes at pageNo's offset.
func (bf *BaseFile) ReadPageData(pageNo primitives.PageNumber) ([]byte, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return nil, dberr.New(dberr.InvalidRequest, "ReadPageData", "storage", "file is closed")
	}

	offset := int64(pageNo) * int64(PageSize)
	data := make([]byte, PageSize)
	if _, err := bf.file.ReadAt(data, offset); err != nil {
		return data, err // heap.File.ReadPage wraps any error as a StorageFault
	}
	return data, nil
}

// WritePageData writes exactly PageSize bytes at pageNo's offset and syncs.
func (bf *BaseFile) WritePageData(pageNo primitives.PageNumber, data []byte) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return dberr.New(dberr.InvalidRequest, "WritePageData", "storage", "file is closed")
	}
	if len(data) != PageSize {
		return dberr.New(dberr.InvalidRequest, "WritePageData", "storage",
			"invalid page data size")
	}

	offset := int64(pageNo) * int64(PageSize)
	if _, err := bf.file.WriteAt(data, offset); err != nil {
		return dberr.Wrap(dberr.StorageFault, err, "WritePageData", "storage")
	}
	if err := bf.file.Sync(); err != nil {
		return dberr.Wrap(dberr.StorageFault, err, "WritePageData", "storage")
	}
	return nil
}

// AllocateNewPage atomically extends the file by one zero-filled page and
// returns its page number, so concurrent inserts never race on the same
// newly allocated page.
func (bf *BaseFile) AllocateNewPage() (primitives.PageNumber, error) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return 0, dberr.New(dberr.InvalidRequest, "AllocateNewPage", "storage", "file is closed")
	}

	info, err := bf.file.Stat()
	if err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "AllocateNewPage", "storage")
	}

	numPages := info.Size() / int64(PageSize)

	zero := make([]byte, PageSize)
	offset := numPages * int64(PageSize)
	if _, err := bf.file.WriteAt(zero, offset); err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "AllocateNewPage", "storage")
	}
	if err := bf.file.Sync(); err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "AllocateNewPage", "storage")
	}

	return primitives.PageNumber(numPages), nil
}

// Close releases the underlying file handle.
func (bf *BaseFile) Close() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file != nil {
		err := bf.file.Close()
		bf.file = nil
		return err
	}
	return nil
}

// FilePath returns the path this file was opened with.
func (bf *BaseFile) FilePath() primitives.Filepath {
	return bf.filePath
}

func openFile(filePath primitives.Filepath) (*os.File, error) {
	return os.OpenFile(filePath.String(), os.O_RDWR|os.O_CREATE, 0644)
}
