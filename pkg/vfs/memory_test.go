package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMemoryReadWrite tests basic file round-tripping.
func TestMemoryReadWrite(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.CreateDir("/foo"))
	require.NoError(t, m.Write("/foo/bar.txt", []byte("hello")))

	contents, err := m.Read("/foo/bar.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), contents)

	metadata, err := m.Metadata("/foo/bar.txt")
	require.NoError(t, err)
	require.False(t, metadata.IsDir)
	require.EqualValues(t, 5, metadata.Size)
}

// TestMemoryNotExist tests not-found classification.
func TestMemoryNotExist(t *testing.T) {
	m := NewMemory()
	if _, err := m.Read("/missing"); !IsNotExist(err) {
		t.Error("missing file read did not yield a not-exist error")
	}
	if _, err := m.Metadata("/missing"); !IsNotExist(err) {
		t.Error("missing file stat did not yield a not-exist error")
	}
	if _, err := m.ReadDir("/missing"); !IsNotExist(err) {
		t.Error("missing directory enumeration did not yield a not-exist error")
	}
}

// TestMemoryWriteRequiresParent tests that writes into absent directories
// are rejected.
func TestMemoryWriteRequiresParent(t *testing.T) {
	m := NewMemory()
	if err := m.Write("/absent/file.txt", nil); !IsNotExist(err) {
		t.Error("write into absent directory did not yield a not-exist error")
	}
}

// TestMemoryReadDir tests deterministic directory enumeration.
func TestMemoryReadDir(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.CreateDir("/foo/sub"))
	require.NoError(t, m.Write("/foo/b.txt", nil))
	require.NoError(t, m.Write("/foo/a.txt", nil))

	entries, err := m.ReadDir("/foo")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "a.txt", entries[0].Name)
	require.Equal(t, "b.txt", entries[1].Name)
	require.Equal(t, "sub", entries[2].Name)
	require.True(t, entries[2].IsDir)
	require.Equal(t, "/foo/sub", entries[2].Path)
}

// TestMemoryRemoveDirAll tests recursive directory removal.
func TestMemoryRemoveDirAll(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.CreateDir("/foo/sub"))
	require.NoError(t, m.Write("/foo/sub/a.txt", nil))
	require.NoError(t, m.Write("/other.txt", nil))

	require.NoError(t, m.RemoveDirAll("/foo"))
	require.Equal(t, []string{"/other.txt"}, m.Paths())
}
