// Package catalog is the minimal table registry the page store needs: a
// tableId -> backing-file map built from a data directory at startup. It
// intentionally stops there — schema definitions, column types, and index
// bookkeeping live above this layer and are out of scope (see spec
// Non-goal on catalog data).
package catalog

import (
	"os"
	"sync"

	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/heap"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
)

// Catalog maps a table's path-derived TableID to its open heap file.
// Satisfies both pkg/buffer.TableFiles and pkg/walog.TableFiles.
type Catalog struct {
	mu    sync.RWMutex
	files map[primitives.TableID]storage.DbFile
}

// New builds an empty catalog.
func New() *Catalog {
	return &Catalog{files: make(map[primitives.TableID]storage.DbFile)}
}

// Open opens or creates a heap file at path under the given tuple
// descriptor, registers it by its path-derived TableID, and returns that
// id.
func (c *Catalog) Open(path primitives.Filepath, td *tuplerec.TupleDescriptor) (primitives.TableID, error) {
	if err := path.MkdirAll(0o750); err != nil {
		return 0, dberr.Wrap(dberr.StorageFault, err, "Open", "catalog")
	}

	f, err := heap.NewFile(path, td)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[f.TableID()] = f
	return f.TableID(), nil
}

// Get resolves tableID to its backing file.
func (c *Catalog) Get(tableID primitives.TableID) (storage.DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.files[tableID]
	if !ok {
		return nil, dberr.New(dberr.InvalidRequest, "Get", "catalog", "unknown table id")
	}
	return f, nil
}

// LoadDir opens every regular file directly under dir as a heap file under
// the given tuple descriptor, registering each by its path-derived
// TableID. Used at process startup to rebuild the catalog from disk.
func (c *Catalog) LoadDir(dir primitives.Filepath, td *tuplerec.TupleDescriptor) ([]primitives.TableID, error) {
	entries, err := os.ReadDir(dir.String())
	if err != nil {
		return nil, dberr.Wrap(dberr.StorageFault, err, "LoadDir", "catalog")
	}

	var ids []primitives.TableID
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, err := c.Open(dir.Join(entry.Name()), td)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// All returns every registered table id.
func (c *Catalog) All() []primitives.TableID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]primitives.TableID, 0, len(c.files))
	for id := range c.files {
		ids = append(ids, id)
	}
	return ids
}

// Close closes every backing file.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, f := range c.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
