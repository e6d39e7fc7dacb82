// Package vfs provides the virtual filesystem abstraction used by the
// snapshot and syncback engines. Paths handed to a Vfs always use forward
// slashes; implementations backed by a real filesystem are responsible for
// converting to the platform separator.
package vfs

import (
	"errors"
	"io/fs"
)

// Metadata describes a filesystem entry.
type Metadata struct {
	// IsDir indicates whether or not the entry is a directory.
	IsDir bool
	// Size is the size of the entry in bytes. It is zero for directories.
	Size int64
}

// DirEntry describes a single entry yielded by ReadDir.
type DirEntry struct {
	// Name is the base name of the entry.
	Name string
	// Path is the full path of the entry.
	Path string
	// IsDir indicates whether or not the entry is a directory.
	IsDir bool
}

// Vfs is the filesystem interface consumed by the engine. All operations are
// individually synchronous. Read, Metadata, and ReadDir return an error for
// which IsNotExist returns true when the target is absent.
type Vfs interface {
	// Read reads the full contents of the file at the specified path.
	Read(path string) ([]byte, error)
	// Metadata returns metadata for the entry at the specified path.
	Metadata(path string) (*Metadata, error)
	// ReadDir enumerates the entries of the directory at the specified path.
	// Entries are returned sorted by name.
	ReadDir(path string) ([]*DirEntry, error)
	// Write writes contents to the file at the specified path, replacing any
	// existing file.
	Write(path string, contents []byte) error
	// CreateDir creates the directory at the specified path, along with any
	// missing parents.
	CreateDir(path string) error
	// RemoveFile removes the file at the specified path.
	RemoveFile(path string) error
	// RemoveDirAll removes the directory at the specified path along with
	// its contents.
	RemoveDirAll(path string) error
}

// IsNotExist returns true if the error indicates that a filesystem entry
// does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
