package primitives

import "fmt"

// IsValid reports whether t is a non-zero, hash-derived table identifier.
func (t TableID) IsValid() bool {
	return t != 0
}

func (t TableID) String() string {
	return fmt.Sprintf("Table(%d)", uint32(t))
}
