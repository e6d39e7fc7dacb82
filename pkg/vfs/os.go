package vfs

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// osVfs is a Vfs implementation backed by the operating system's filesystem.
type osVfs struct{}

// NewOS creates a Vfs backed by the operating system's filesystem. File
// writes are performed atomically via a rename from a temporary file.
func NewOS() Vfs {
	return &osVfs{}
}

// Read implements Vfs.Read.
func (v *osVfs) Read(path string) ([]byte, error) {
	return os.ReadFile(filepath.FromSlash(path))
}

// Metadata implements Vfs.Metadata.
func (v *osVfs) Metadata(path string) (*Metadata, error) {
	info, err := os.Stat(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}
	metadata := &Metadata{IsDir: info.IsDir()}
	if !info.IsDir() {
		metadata.Size = info.Size()
	}
	return metadata, nil
}

// ReadDir implements Vfs.ReadDir.
func (v *osVfs) ReadDir(path string) ([]*DirEntry, error) {
	entries, err := os.ReadDir(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}
	results := make([]*DirEntry, 0, len(entries))
	for _, entry := range entries {
		results = append(results, &DirEntry{
			Name:  entry.Name(),
			Path:  path + "/" + entry.Name(),
			IsDir: entry.IsDir(),
		})
	}
	return results, nil
}

// Write implements Vfs.Write.
func (v *osVfs) Write(path string, contents []byte) error {
	return atomic.WriteFile(filepath.FromSlash(path), bytes.NewReader(contents))
}

// CreateDir implements Vfs.CreateDir.
func (v *osVfs) CreateDir(path string) error {
	return os.MkdirAll(filepath.FromSlash(path), 0o755)
}

// RemoveFile implements Vfs.RemoveFile.
func (v *osVfs) RemoveFile(path string) error {
	return os.Remove(filepath.FromSlash(path))
}

// RemoveDirAll implements Vfs.RemoveDirAll.
func (v *osVfs) RemoveDirAll(path string) error {
	return os.RemoveAll(filepath.FromSlash(path))
}
