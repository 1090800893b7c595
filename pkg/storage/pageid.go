package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/rennervale/pagestore/pkg/primitives"
)

// PageId identifies a page within a table. It is a plain comparable value
// type (per the data model's "value type; constructed by callers"), so it
// can be used directly as a map key without a separate hash-code method.
type PageId struct {
	TableID    primitives.TableID
	PageNumber primitives.PageNumber
}

// NewPageId builds a PageId from its components.
func NewPageId(tableID primitives.TableID, pageNum primitives.PageNumber) PageId {
	return PageId{TableID: tableID, PageNumber: pageNum}
}

// Serialize writes this PageId in the wire format the log uses: 4 bytes
// tableId followed by 4 bytes pageNumber, big-endian.
func (pid PageId) Serialize() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(pid.TableID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(pid.PageNumber))
	return buf
}

// DeserializePageId reads the 8-byte wire format produced by Serialize.
func DeserializePageId(buf []byte) (PageId, error) {
	if len(buf) < 8 {
		return PageId{}, fmt.Errorf("page id buffer too short: %d bytes", len(buf))
	}
	return PageId{
		TableID:    primitives.TableID(binary.BigEndian.Uint32(buf[0:4])),
		PageNumber: primitives.PageNumber(binary.BigEndian.Uint32(buf[4:8])),
	}, nil
}

func (pid PageId) String() string {
	return fmt.Sprintf("PageId(table=%d, page=%d)", pid.TableID, pid.PageNumber)
}
