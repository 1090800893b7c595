package heap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennervale/pagestore/pkg/primitives"
	"github.com/rennervale/pagestore/pkg/storage"
	"github.com/rennervale/pagestore/pkg/tuplerec"
	"github.com/rennervale/pagestore/pkg/txnid"
)

func testTupleDesc() *tuplerec.TupleDescriptor {
	return tuplerec.NewTupleDescriptor(8)
}

func TestPage_InsertThenTupleAt(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(1, 0), td)

	data := bytes.Repeat([]byte{0x42}, td.ByteWidth())
	tup := tuplerec.NewTuple(td, data)

	require.NoError(t, p.InsertTuple(tup))
	assert.Equal(t, primitives.SlotID(0), tup.RecordID.Slot)

	got, ok := p.TupleAt(tup.RecordID.Slot)
	require.True(t, ok)
	assert.Equal(t, data, got.Data)
}

func TestPage_InsertFillsFirstFreeSlotAfterDelete(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(1, 0), td)

	t1 := tuplerec.NewTuple(td, bytes.Repeat([]byte{1}, td.ByteWidth()))
	t2 := tuplerec.NewTuple(td, bytes.Repeat([]byte{2}, td.ByteWidth()))
	require.NoError(t, p.InsertTuple(t1))
	require.NoError(t, p.InsertTuple(t2))
	require.NoError(t, p.DeleteTuple(t1))

	t3 := tuplerec.NewTuple(td, bytes.Repeat([]byte{3}, td.ByteWidth()))
	require.NoError(t, p.InsertTuple(t3))

	assert.Equal(t, t1.RecordID.Slot, t3.RecordID.Slot)
}

func TestPage_InsertFailsWhenFull(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(1, 0), td)

	n := int(p.SlotCountValue())
	for i := 0; i < n; i++ {
		require.NoError(t, p.InsertTuple(tuplerec.NewTuple(td, bytes.Repeat([]byte{byte(i)}, td.ByteWidth()))))
	}

	err := p.InsertTuple(tuplerec.NewTuple(td, bytes.Repeat([]byte{9}, td.ByteWidth())))
	require.Error(t, err)
}

// Delete leaves the tuple's RecordID pointing at the now-empty slot rather
// than clearing the slot body, per the design notes' resolution of the
// tuple record-id open question.
func TestPage_DeleteLeavesSlotBodyAndRecordIDIntact(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(1, 0), td)
	tup := tuplerec.NewTuple(td, bytes.Repeat([]byte{7}, td.ByteWidth()))
	require.NoError(t, p.InsertTuple(tup))
	slot := tup.RecordID.Slot

	require.NoError(t, p.DeleteTuple(tup))

	_, ok := p.TupleAt(slot)
	assert.False(t, ok)
	assert.Equal(t, slot, tup.RecordID.Slot)
	assert.Equal(t, tup.Data, p.slots[slot])
}

func TestPage_DeleteAlreadyEmptySlotErrors(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(1, 0), td)
	tup := tuplerec.NewTuple(td, bytes.Repeat([]byte{1}, td.ByteWidth()))
	require.NoError(t, p.InsertTuple(tup))
	require.NoError(t, p.DeleteTuple(tup))

	err := p.DeleteTuple(tup)
	assert.Error(t, err)
}

// Round-trip law: serializing a page and reconstructing it from those exact
// bytes reproduces an identical byte image, including any padding bits.
func TestPage_SerializeDeserializeRoundTrips(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(2, 1), td)
	tup := tuplerec.NewTuple(td, bytes.Repeat([]byte{0xFE}, td.ByteWidth()))
	require.NoError(t, p.InsertTuple(tup))

	raw := p.Bytes()
	reloaded, err := NewPage(storage.NewPageId(2, 1), raw, td)
	require.NoError(t, err)

	assert.Equal(t, raw, reloaded.Bytes())
	got, ok := reloaded.TupleAt(tup.RecordID.Slot)
	require.True(t, ok)
	assert.Equal(t, tup.Data, got.Data)
}

func TestPage_NewPageRejectsWrongSize(t *testing.T) {
	td := testTupleDesc()
	_, err := NewPage(storage.NewPageId(1, 0), make([]byte, 10), td)
	assert.Error(t, err)
}

func TestPage_DirtyLifecycle(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(1, 0), td)
	tid := txnid.NewTransactionID()

	assert.Nil(t, p.Dirtier())
	p.MarkDirty(true, tid)
	assert.True(t, tid.Equals(p.Dirtier()))
	p.MarkDirty(false, nil)
	assert.Nil(t, p.Dirtier())
}

// BeforeImage reflects the page's state as of the last SetBeforeImage call,
// not its live mutations.
func TestPage_BeforeImageIsSnapshotUntilAdvanced(t *testing.T) {
	td := testTupleDesc()
	p := NewEmptyPage(storage.NewPageId(1, 0), td)
	before := p.BeforeImage().Bytes()

	tup := tuplerec.NewTuple(td, bytes.Repeat([]byte{5}, td.ByteWidth()))
	require.NoError(t, p.InsertTuple(tup))

	assert.Equal(t, before, p.BeforeImage().Bytes())
	assert.NotEqual(t, p.Bytes(), p.BeforeImage().Bytes())

	p.SetBeforeImage()
	assert.Equal(t, p.Bytes(), p.BeforeImage().Bytes())
}
