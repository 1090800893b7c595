// Package primitives holds the small value types shared by every layer of the
// page store: identifiers for tables, pages and slots, and byte offsets into
// the write-ahead log. Keeping them here (rather than in the packages that use
// them) avoids import cycles between storage, locking and logging.
package primitives

// TableID identifies a table's backing file. It is derived from a hash of the
// file's absolute path, so it stays stable across process restarts without a
// separate ID-allocation table.
type TableID uint32

// PageNumber is the zero-based ordinal of a page within a table file.
type PageNumber uint32

// SlotID is the ordinal of a tuple slot within a page's fixed-stride body.
type SlotID uint32

// LogOffset is a byte position in the write-ahead log file. Every record
// carries its own starting LogOffset as a trailing field so the log can be
// walked backwards without an auxiliary index.
type LogOffset int64

// InvalidLogOffset marks the absence of a checkpoint or predecessor record.
const InvalidLogOffset LogOffset = -1
