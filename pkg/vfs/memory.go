package vfs

import (
	"io/fs"
	pathpkg "path"
	"sort"
	"strings"
)

// Memory is an in-memory Vfs implementation used for testing and for
// snapshot construction from synthetic layouts.
type Memory struct {
	// files maps normalized paths to file contents.
	files map[string][]byte
	// dirs is the set of normalized directory paths.
	dirs map[string]bool
}

// NewMemory creates an empty in-memory filesystem containing only the root
// directory.
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

// normalize cleans a path into the canonical form used for storage.
func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return pathpkg.Clean(path)
}

// notExist constructs a not-found error for the specified operation.
func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

// Read implements Vfs.Read.
func (m *Memory) Read(path string) ([]byte, error) {
	path = normalize(path)
	contents, ok := m.files[path]
	if !ok {
		return nil, notExist("read", path)
	}
	result := make([]byte, len(contents))
	copy(result, contents)
	return result, nil
}

// Metadata implements Vfs.Metadata.
func (m *Memory) Metadata(path string) (*Metadata, error) {
	path = normalize(path)
	if m.dirs[path] {
		return &Metadata{IsDir: true}, nil
	}
	if contents, ok := m.files[path]; ok {
		return &Metadata{Size: int64(len(contents))}, nil
	}
	return nil, notExist("stat", path)
}

// ReadDir implements Vfs.ReadDir.
func (m *Memory) ReadDir(path string) ([]*DirEntry, error) {
	path = normalize(path)
	if !m.dirs[path] {
		return nil, notExist("readdir", path)
	}

	prefix := path
	if prefix != "/" {
		prefix += "/"
	}

	// Collect immediate children from both maps.
	var results []*DirEntry
	seen := make(map[string]bool)
	collect := func(candidate string, isDir bool) {
		if !strings.HasPrefix(candidate, prefix) {
			return
		}
		remainder := candidate[len(prefix):]
		if remainder == "" || strings.ContainsRune(remainder, '/') {
			return
		}
		if seen[remainder] {
			return
		}
		seen[remainder] = true
		results = append(results, &DirEntry{
			Name:  remainder,
			Path:  prefix + remainder,
			IsDir: isDir,
		})
	}
	for dir := range m.dirs {
		collect(dir, true)
	}
	for file := range m.files {
		collect(file, false)
	}

	// Sort for deterministic enumeration.
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})

	return results, nil
}

// Write implements Vfs.Write. The parent directory must already exist.
func (m *Memory) Write(path string, contents []byte) error {
	path = normalize(path)
	if !m.dirs[pathpkg.Dir(path)] {
		return notExist("write", path)
	}
	stored := make([]byte, len(contents))
	copy(stored, contents)
	m.files[path] = stored
	return nil
}

// CreateDir implements Vfs.CreateDir.
func (m *Memory) CreateDir(path string) error {
	path = normalize(path)
	for path != "/" {
		m.dirs[path] = true
		path = pathpkg.Dir(path)
	}
	return nil
}

// RemoveFile implements Vfs.RemoveFile.
func (m *Memory) RemoveFile(path string) error {
	path = normalize(path)
	if _, ok := m.files[path]; !ok {
		return notExist("remove", path)
	}
	delete(m.files, path)
	return nil
}

// RemoveDirAll implements Vfs.RemoveDirAll.
func (m *Memory) RemoveDirAll(path string) error {
	path = normalize(path)
	if !m.dirs[path] {
		return notExist("removeall", path)
	}
	prefix := path + "/"
	for dir := range m.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(m.dirs, dir)
		}
	}
	for file := range m.files {
		if strings.HasPrefix(file, prefix) {
			delete(m.files, file)
		}
	}
	return nil
}

// Paths returns all file and directory paths, sorted, excluding the root.
// It exists to support assertions in tests.
func (m *Memory) Paths() []string {
	var results []string
	for dir := range m.dirs {
		if dir != "/" {
			results = append(results, dir)
		}
	}
	for file := range m.files {
		results = append(results, file)
	}
	sort.Strings(results)
	return results
}
