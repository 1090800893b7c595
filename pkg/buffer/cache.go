// Package buffer implements the buffer pool: a bounded, LRU-evicted cache
// of storage.Page keyed by storage.PageId, sitting between the page-lock
// manager and the heap file layer, and coordinating with pkg/walog for
// STEAL/NO-FORCE durability.
package buffer

import (
	"fmt"
	"sync"

	"github.com/rennervale/pagestore/pkg/storage"
)

// pageCache defines the in-memory storage half of the buffer pool. It knows
// nothing about transactions, locks, or the WAL — only which pages are
// currently resident.
type pageCache interface {
	Get(pid storage.PageId) (storage.Page, bool)
	Put(pid storage.PageId, p storage.Page) error
	Remove(pid storage.PageId)
	Size() int
	Clear()
	// GetAll returns every resident page id, least-recently-used first.
	GetAll() []storage.PageId
}

// node is a single entry in the LRU doubly linked list.
type node struct {
	pid  storage.PageId
	page storage.Page
	prev *node
	next *node
}

// lruPageCache is an LRU page cache built from a doubly linked list plus a
// map, giving O(1) Get/Put/Remove. Put on an already-full cache returns an
// error rather than silently evicting — eviction is the buffer pool's
// responsibility, since only it knows how to flush a dirty victim first.
type lruPageCache struct {
	maxSize int
	cache   map[storage.PageId]*node
	head    *node
	tail    *node
	mutex   sync.RWMutex
}

func newLRUPageCache(maxSize int) *lruPageCache {
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &lruPageCache{
		maxSize: maxSize,
		cache:   make(map[storage.PageId]*node),
		head:    head,
		tail:    tail,
	}
}

func (c *lruPageCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *lruPageCache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *lruPageCache) moveToFront(n *node) {
	c.removeNode(n)
	c.addToFront(n)
}

// Get retrieves a page and marks it most recently used.
func (c *lruPageCache) Get(pid storage.PageId) (storage.Page, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, exists := c.cache[pid]; exists {
		c.moveToFront(n)
		return n.page, true
	}
	return nil, false
}

// Put inserts or updates a page, marking it most recently used. Returns an
// error if the cache is full and pid is not already resident.
func (c *lruPageCache) Put(pid storage.PageId, p storage.Page) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, exists := c.cache[pid]; exists {
		n.page = p
		c.moveToFront(n)
		return nil
	}

	if len(c.cache) >= c.maxSize {
		return fmt.Errorf("buffer pool full")
	}

	newNode := &node{pid: pid, page: p}
	c.cache[pid] = newNode
	c.addToFront(newNode)
	return nil
}

// Remove evicts pid from the cache, if present.
func (c *lruPageCache) Remove(pid storage.PageId) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, exists := c.cache[pid]; exists {
		delete(c.cache, pid)
		c.removeNode(n)
	}
}

// Size returns the number of resident pages.
func (c *lruPageCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// Clear empties the cache.
func (c *lruPageCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[storage.PageId]*node)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// GetAll returns every resident page id, least-recently-used first — the
// order the buffer pool consults when it needs to evict.
func (c *lruPageCache) GetAll() []storage.PageId {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	pids := make([]storage.PageId, 0, len(c.cache))
	current := c.tail.prev
	for current != c.head {
		pids = append(pids, current.pid)
		current = current.prev
	}
	return pids
}
