// Package tuplerec is the thinnest possible stand-in for the tuple and
// field value system the specification places out of scope (§1): a fixed
// byte-width tuple descriptor and a raw-bytes tuple carrying its slot
// location. There is no field typing or parsing here — the heap page only
// needs a byte width to compute slot counts and raw bytes to store, per
// §6's "Consumed from collaborators".
package tuplerec

import "github.com/rennervale/pagestore/pkg/primitives"

// TupleDescriptor reports the fixed byte width of every tuple stored in a
// table, the only property the heap page format (§4.1, §6) needs.
type TupleDescriptor struct {
	byteWidth int
}

// NewTupleDescriptor builds a descriptor for tuples of the given fixed
// byte width.
func NewTupleDescriptor(byteWidth int) *TupleDescriptor {
	return &TupleDescriptor{byteWidth: byteWidth}
}

// ByteWidth returns the fixed size, in bytes, of every tuple under this
// descriptor.
func (td *TupleDescriptor) ByteWidth() int {
	return td.byteWidth
}

func (td *TupleDescriptor) Equals(other *TupleDescriptor) bool {
	if td == nil || other == nil {
		return td == other
	}
	return td.byteWidth == other.byteWidth
}

// RecordID locates a tuple within a table: its table, page and slot. Per
// the design notes' open question on tuple record-ids, a deleted tuple's
// RecordID is left pointing at the now-empty slot rather than nulled —
// callers must check slot occupancy on the page, not RecordID nilness.
type RecordID struct {
	TableID primitives.TableID
	PageID  primitives.PageNumber
	Slot    primitives.SlotID
}

// Tuple is raw tuple bytes plus the location it was last stored at.
type Tuple struct {
	Desc     *TupleDescriptor
	Data     []byte
	RecordID RecordID
}

// NewTuple wraps data (which must be exactly desc.ByteWidth() bytes) as a
// tuple with no assigned location yet.
func NewTuple(desc *TupleDescriptor, data []byte) *Tuple {
	buf := make([]byte, desc.ByteWidth())
	copy(buf, data)
	return &Tuple{Desc: desc, Data: buf}
}
