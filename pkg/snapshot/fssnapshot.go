package snapshot

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// FsSnapshot is a deferred batch of file and directory creations owned by a
// single instance. It is built bottom-up during syncback and applied once
// per node via Reconcile; it does not survive past reconciliation.
type FsSnapshot struct {
	// files maps paths to file contents.
	files map[string][]byte
	// dirs is the set of directory paths.
	dirs map[string]bool
}

// NewFsSnapshot creates an empty FsSnapshot.
func NewFsSnapshot() *FsSnapshot {
	return &FsSnapshot{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// WithDir records a directory and returns the snapshot for chaining.
func (s *FsSnapshot) WithDir(path string) *FsSnapshot {
	s.dirs[path] = true
	return s
}

// WithAddedFile records a file with contents and returns the snapshot for
// chaining.
func (s *FsSnapshot) WithAddedFile(path string, contents []byte) *FsSnapshot {
	s.files[path] = contents
	return s
}

// WithFileContentsOpt records a file only when contents is non-nil. A nil
// contents value means the file should not exist, which Reconcile turns into
// a removal when the old snapshot owned the path.
func (s *FsSnapshot) WithFileContentsOpt(path string, contents []byte) *FsSnapshot {
	if contents != nil {
		s.files[path] = contents
	}
	return s
}

// Merge combines this snapshot with another and returns the result. It fails
// if any path is a file in one snapshot and a directory in the other.
func (s *FsSnapshot) Merge(other *FsSnapshot) (*FsSnapshot, error) {
	result := NewFsSnapshot()
	for path, contents := range s.files {
		result.files[path] = contents
	}
	for path := range s.dirs {
		result.dirs[path] = true
	}
	for path, contents := range other.files {
		if result.dirs[path] {
			return nil, errors.Errorf("path is both a file and a directory: %s", path)
		}
		result.files[path] = contents
	}
	for path := range other.dirs {
		if _, ok := result.files[path]; ok {
			return nil, errors.Errorf("path is both a file and a directory: %s", path)
		}
		result.dirs[path] = true
	}
	return result, nil
}

// Files returns the file map. The returned map must not be mutated.
func (s *FsSnapshot) Files() map[string][]byte {
	return s.files
}

// Dirs returns the directory paths in sorted order.
func (s *FsSnapshot) Dirs() []string {
	results := make([]string, 0, len(s.dirs))
	for path := range s.dirs {
		results = append(results, path)
	}
	sort.Strings(results)
	return results
}

// Paths returns every file and directory path in sorted order.
func (s *FsSnapshot) Paths() []string {
	results := make([]string, 0, len(s.files)+len(s.dirs))
	for path := range s.files {
		results = append(results, path)
	}
	for path := range s.dirs {
		results = append(results, path)
	}
	sort.Strings(results)
	return results
}

// IsEmpty returns true if the snapshot contains no files or directories.
func (s *FsSnapshot) IsEmpty() bool {
	return s == nil || (len(s.files) == 0 && len(s.dirs) == 0)
}

// WrittenBytes returns the total size of all file contents in the snapshot.
func (s *FsSnapshot) WrittenBytes() uint64 {
	if s == nil {
		return 0
	}
	var total uint64
	for _, contents := range s.files {
		total += uint64(len(contents))
	}
	return total
}

// HasDir returns true if the snapshot owns the path as a directory.
func (s *FsSnapshot) HasDir(path string) bool {
	return s != nil && s.dirs[path]
}

// FileContents returns the recorded contents for a file path and whether
// the snapshot owns it.
func (s *FsSnapshot) FileContents(path string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	contents, ok := s.files[path]
	return contents, ok
}

// contains returns true if the snapshot owns the path as either a file or a
// directory.
func (s *FsSnapshot) contains(path string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.files[path]; ok {
		return true
	}
	return s.dirs[path]
}

// Reconcile computes and applies the filesystem delta between an old and a
// new snapshot. Either snapshot may be nil, representing an absence of
// ownership. Paths owned exclusively by the old snapshot are removed first
// (children before parents), then new directories are created (parents
// before children), and finally files are written, skipping any whose
// on-record contents already match.
func Reconcile(v vfs.Vfs, old, new *FsSnapshot) error {
	// Remove paths that the old snapshot owned and the new one doesn't.
	if old != nil {
		var removals []string
		for path := range old.files {
			if !new.contains(path) {
				removals = append(removals, path)
			}
		}
		for path := range old.dirs {
			if !new.contains(path) {
				removals = append(removals, path)
			}
		}

		// Reverse lexicographic order removes children before parents.
		sort.Sort(sort.Reverse(sort.StringSlice(removals)))

		for _, path := range removals {
			if old.dirs[path] {
				if err := v.RemoveDirAll(path); err != nil && !vfs.IsNotExist(err) {
					return errors.Wrapf(err, "unable to remove directory %s", path)
				}
			} else {
				if err := v.RemoveFile(path); err != nil && !vfs.IsNotExist(err) {
					return errors.Wrapf(err, "unable to remove file %s", path)
				}
			}
		}
	}

	if new == nil {
		return nil
	}

	// Create new directories, parents before children.
	for _, path := range new.Dirs() {
		if old != nil && old.dirs[path] {
			continue
		}
		if err := v.CreateDir(path); err != nil {
			return errors.Wrapf(err, "unable to create directory %s", path)
		}
	}

	// Write files whose contents changed or that are new.
	var writes []string
	for path := range new.files {
		writes = append(writes, path)
	}
	sort.Strings(writes)
	for _, path := range writes {
		contents := new.files[path]
		if old != nil {
			if oldContents, ok := old.files[path]; ok && bytes.Equal(oldContents, contents) {
				continue
			}
		}
		if err := v.Write(path, contents); err != nil {
			return errors.Wrapf(err, "unable to write file %s", path)
		}
	}

	return nil
}
