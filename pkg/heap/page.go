// Package heap implements the on-disk page store: a bitmap-header,
// fixed-stride-slot page format (§4.1, §6) and the HeapFile that serves
// pages of it. It replaces the teacher's PostgreSQL-style slot-pointer-array
// HeapPage (pkg/storage/heap/page.go) with the specification's simpler
// fixed-width layout, keeping the teacher's mutex-guarded, before-image-
// carrying Page idiom.
package heap

import (
	"fmt"

	"github.com/rennervale/pagestore/pkg/dberr"
	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
	"github.com/rennervale/pagestore/pkg/txnid"

	"sync"
)

// Page is a heap page: a slot-occupancy bitmap header followed by
// slotCount fixed-width tuple slots. Bytes [0, headerSize) are the bitmap;
// bit i set means slot i is occupied. Bytes [headerSize, pageSize) are the
// slot bodies. Bits in the bitmap at or beyond slotCount are always 0 and
// are preserved verbatim on serialization (the round-trip law).
type Page struct {
	mu sync.RWMutex

	id        storage.PageId
	tupleDesc *tuplerec.TupleDescriptor

	slotCount  primitives.SlotID
	headerSize int // bytes

	bitmap []byte
	slots  [][]byte // len == slotCount; each len == tupleDesc.ByteWidth()

	dirtier     *txnid.TransactionID
	beforeImage []byte
}

// SlotCount returns floor((pageSize*8) / (tupleByteWidth*8 + 1)), the
// number of fixed-width slots that fit in a page alongside their bitmap
// header bit.
func SlotCount(pageSize int, tupleByteWidth int) primitives.SlotID {
	return primitives.SlotID((pageSize * 8) / (tupleByteWidth*8 + 1))
}

// HeaderSize returns ceil(slotCount/8), the byte length of the occupancy
// bitmap.
func HeaderSize(slotCount primitives.SlotID) int {
	return int((slotCount + 7) / 8)
}

// NewEmptyPage allocates an all-zero page: no slots occupied.
func NewEmptyPage(pid storage.PageId, td *tuplerec.TupleDescriptor) *Page {
	p, _ := NewPage(pid, make([]byte, storage.PageSize), td)
	return p
}

// NewPage deserializes raw page bytes (must be exactly storage.PageSize
// long) into a Page under the given tuple descriptor.
func NewPage(pid storage.PageId, data []byte, td *tuplerec.TupleDescriptor) (*Page, error) {
	if len(data) != storage.PageSize {
		return nil, dberr.New(dberr.InvalidRequest, "NewPage", "heap",
			fmt.Sprintf("invalid page data size: expected %d, got %d", storage.PageSize, len(data)))
	}

	slotCount := SlotCount(storage.PageSize, td.ByteWidth())
	headerSize := HeaderSize(slotCount)

	p := &Page{
		id:          pid,
		tupleDesc:   td,
		slotCount:   slotCount,
		headerSize:  headerSize,
		bitmap:      make([]byte, headerSize),
		slots:       make([][]byte, slotCount),
		beforeImage: make([]byte, storage.PageSize),
	}

	copy(p.bitmap, data[:headerSize])

	width := td.ByteWidth()
	for i := primitives.SlotID(0); i < slotCount; i++ {
		buf := make([]byte, width)
		off := headerSize + int(i)*width
		copy(buf, data[off:off+width])
		p.slots[i] = buf
	}

	copy(p.beforeImage, data)
	return p, nil
}

// ID returns this page's identifier.
func (p *Page) ID() storage.PageId {
	return p.id
}

// Dirtier returns the transaction that last dirtied this page, or nil.
func (p *Page) Dirtier() *txnid.TransactionID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirtier
}

// MarkDirty sets or clears this page's dirtying transaction.
func (p *Page) MarkDirty(dirty bool, tid *txnid.TransactionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dirty {
		p.dirtier = tid
	} else {
		p.dirtier = nil
	}
}

// Bytes serializes the page to its on-disk byte image: the bitmap header
// followed by every slot's fixed-width body, occupied or not. Padding bits
// above slotCount and unoccupied slot bodies are emitted verbatim (whatever
// bytes they currently hold), never elided, satisfying the round-trip law.
func (p *Page) Bytes() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bytesLocked()
}

func (p *Page) bytesLocked() []byte {
	out := make([]byte, storage.PageSize)
	copy(out, p.bitmap)

	width := p.tupleDesc.ByteWidth()
	for i := primitives.SlotID(0); i < p.slotCount; i++ {
		off := p.headerSize + int(i)*width
		copy(out[off:off+width], p.slots[i])
	}
	return out
}

// BeforeImage returns a Page holding this page's bytes as of the last
// SetBeforeImage call (the last commit or STEAL flush that logged it).
func (p *Page) BeforeImage() storage.Page {
	p.mu.RLock()
	defer p.mu.RUnlock()
	before, _ := NewPage(p.id, p.beforeImage, p.tupleDesc)
	return before
}

// SetBeforeImage copies the current byte image into the before-image,
// called by the buffer pool when it logs the page's mutation: when the
// dirtying transaction commits, or when a flush steals the page.
func (p *Page) SetBeforeImage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beforeImage = p.bytesLocked()
}

// NumEmptySlots reports how many slots have their occupancy bit clear.
func (p *Page) NumEmptySlots() primitives.SlotID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var empty primitives.SlotID
	for i := primitives.SlotID(0); i < p.slotCount; i++ {
		if !p.bitSet(i) {
			empty++
		}
	}
	return empty
}

func (p *Page) bitSet(slot primitives.SlotID) bool {
	byteIdx := slot / 8
	bitIdx := slot % 8
	return p.bitmap[byteIdx]&(1<<bitIdx) != 0
}

func (p *Page) setBit(slot primitives.SlotID, occupied bool) {
	byteIdx := slot / 8
	bitIdx := slot % 8
	if occupied {
		p.bitmap[byteIdx] |= 1 << bitIdx
	} else {
		p.bitmap[byteIdx] &^= 1 << bitIdx
	}
}

// InsertTuple stores t in the first free slot and stamps t's RecordID with
// this page's number and the chosen slot.
func (p *Page) InsertTuple(t *tuplerec.Tuple) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !t.Desc.Equals(p.tupleDesc) {
		return dberr.New(dberr.SchemaViolation, "InsertTuple", "heap", "tuple schema does not match page schema")
	}

	var slot primitives.SlotID = p.slotCount
	for i := primitives.SlotID(0); i < p.slotCount; i++ {
		if !p.bitSet(i) {
			slot = i
			break
		}
	}
	if slot == p.slotCount {
		return dberr.New(dberr.InvalidRequest, "InsertTuple", "heap", "no free slot on page")
	}

	buf := make([]byte, p.tupleDesc.ByteWidth())
	copy(buf, t.Data)
	p.slots[slot] = buf
	p.setBit(slot, true)

	t.RecordID = tuplerec.RecordID{TableID: p.id.TableID, PageID: p.id.PageNumber, Slot: slot}
	return nil
}

// DeleteTuple clears the occupancy bit for t's slot. Per the design notes'
// open question on record-ids, the slot body bytes and t.RecordID are left
// as-is (pointing at the now-empty slot) rather than nulled.
func (p *Page) DeleteTuple(t *tuplerec.Tuple) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot := t.RecordID.Slot
	if slot >= p.slotCount {
		return dberr.New(dberr.InvalidRequest, "DeleteTuple", "heap", "slot index out of range")
	}
	if !p.bitSet(slot) {
		return dberr.New(dberr.InvalidRequest, "DeleteTuple", "heap", "slot is already empty")
	}

	p.setBit(slot, false)
	return nil
}

// TupleAt returns the tuple stored at slot, or (nil, false) if the slot is
// unoccupied.
func (p *Page) TupleAt(slot primitives.SlotID) (*tuplerec.Tuple, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if slot >= p.slotCount || !p.bitSet(slot) {
		return nil, false
	}

	t := tuplerec.NewTuple(p.tupleDesc, p.slots[slot])
	t.RecordID = tuplerec.RecordID{TableID: p.id.TableID, PageID: p.id.PageNumber, Slot: slot}
	return t, true
}

// Tuples returns every occupied tuple on the page, in slot order.
func (p *Page) Tuples() []*tuplerec.Tuple {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*tuplerec.Tuple, 0, p.slotCount)
	for i := primitives.SlotID(0); i < p.slotCount; i++ {
		if !p.bitSet(i) {
			continue
		}
		t := tuplerec.NewTuple(p.tupleDesc, p.slots[i])
		t.RecordID = tuplerec.RecordID{TableID: p.id.TableID, PageID: p.id.PageNumber, Slot: i}
		out = append(out, t)
	}
	return out
}

// SlotCountValue returns the number of fixed-width slots on this page.
func (p *Page) SlotCountValue() primitives.SlotID {
	return p.slotCount
}

// TupleDesc returns the tuple descriptor this page was constructed with.
func (p *Page) TupleDesc() *tuplerec.TupleDescriptor {
	return p.tupleDesc
}
