package primitives

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
)

// Filepath is a type-safe wrapper around file paths used throughout the
// page store. It provides convenient methods for path manipulation and
// file operations while maintaining type safety and reducing the need for
// string conversions.
//
// The Filepath type is used for:
//   - Heap file paths (table data storage)
//   - Write-ahead log paths
//
// Example usage:
//
//	dataDir := primitives.Filepath("/data")
//	tablePath := dataDir.Join("users.dat")
//	if tablePath.Exists() {
//	    tablePath.Remove()
//	}
type Filepath string

// Hash derives this file's TableID from an FNV-1a hash of the absolute
// path. The same path always hashes to the same TableID, so table identity
// survives a process restart without a separate ID-allocation table. If the
// absolute path cannot be determined, the path is hashed as given.
//
// Example:
//
//	path := primitives.Filepath("/data/users.dat")
//	tableID := path.Hash()
func (f Filepath) Hash() TableID {
	p := string(f)
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	h := fnv.New32a()
	h.Write([]byte(p))
	return TableID(h.Sum32())
}

// Dir returns the directory portion of the file path.
func (f Filepath) Dir() string {
	return filepath.Dir(string(f))
}

// String converts the Filepath to a standard string.
func (f Filepath) String() string {
	return string(f)
}

// Join concatenates path elements to this path and returns a new Filepath.
func (f Filepath) Join(elem ...string) Filepath {
	parts := append([]string{string(f)}, elem...)
	return Filepath(filepath.Join(parts...))
}

// Base returns the last element of the path (the filename).
func (f Filepath) Base() string {
	return filepath.Base(string(f))
}

// Exists checks whether the file exists on the filesystem.
func (f Filepath) Exists() bool {
	_, err := os.Stat(string(f))
	return err == nil
}

// Remove deletes the file from the filesystem. It is idempotent: it
// succeeds if the file does not exist.
func (f Filepath) Remove() error {
	if !f.Exists() {
		return nil
	}
	return os.Remove(string(f))
}

// IsEmpty reports whether the filepath is an empty string.
func (f Filepath) IsEmpty() bool {
	return string(f) == ""
}

// MkdirAll creates the parent directory of f (and any necessary parents),
// the way a caller about to create the file f names needs.
func (f Filepath) MkdirAll(perm os.FileMode) error {
	return os.MkdirAll(f.Dir(), perm)
}

// EnsureDir creates f itself, and any necessary parents, as a directory.
// Unlike MkdirAll (which prepares f's parent for a file about to be
// created at f), this is for callers that treat f as a directory path in
// its own right, such as the engine's data directory at startup.
func (f Filepath) EnsureDir(perm os.FileMode) error {
	return os.MkdirAll(string(f), perm)
}

// Ext returns the file extension including the dot, or "" if none.
func (f Filepath) Ext() string {
	return filepath.Ext(string(f))
}

// WithExt returns a new Filepath with the extension replaced. If newExt
// doesn't start with a dot, one is added.
func (f Filepath) WithExt(newExt string) Filepath {
	ext := f.Ext()
	base := strings.TrimSuffix(string(f), ext)
	if newExt != "" && !strings.HasPrefix(newExt, ".") {
		newExt = "." + newExt
	}
	return Filepath(base + newExt)
}

// IsAbs reports whether the path is absolute.
func (f Filepath) IsAbs() bool {
	return filepath.IsAbs(string(f))
}

// Clean returns the shortest path name equivalent to the path by purely
// lexical processing.
func (f Filepath) Clean() Filepath {
	return Filepath(filepath.Clean(string(f)))
}

// Stat returns file information from the filesystem.
func (f Filepath) Stat() (os.FileInfo, error) {
	return os.Stat(string(f))
}
