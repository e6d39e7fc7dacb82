package snapshot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// TestFsSnapshotMergeConflict tests that file/directory conflicts are
// rejected.
func TestFsSnapshotMergeConflict(t *testing.T) {
	a := NewFsSnapshot().WithDir("/foo")
	b := NewFsSnapshot().WithAddedFile("/foo", []byte("x"))
	if _, err := a.Merge(b); err == nil {
		t.Error("file/directory conflict not rejected")
	}
	if _, err := b.Merge(a); err == nil {
		t.Error("directory/file conflict not rejected")
	}
}

// TestFsSnapshotMerge tests a conflict-free merge.
func TestFsSnapshotMerge(t *testing.T) {
	a := NewFsSnapshot().WithDir("/foo").WithAddedFile("/foo/a.txt", []byte("a"))
	b := NewFsSnapshot().WithAddedFile("/foo/b.txt", []byte("b"))
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatal("merge failed:", err)
	}
	expected := []string{"/foo", "/foo/a.txt", "/foo/b.txt"}
	if diff := cmp.Diff(expected, merged.Paths()); diff != "" {
		t.Error("merged paths do not match expected:\n", diff)
	}
}

// TestReconcileCreates tests creation of directories and files from nothing.
func TestReconcileCreates(t *testing.T) {
	m := vfs.NewMemory()
	new := NewFsSnapshot().
		WithDir("/proj").
		WithDir("/proj/sub").
		WithAddedFile("/proj/sub/a.txt", []byte("a"))

	if err := Reconcile(m, nil, new); err != nil {
		t.Fatal("reconcile failed:", err)
	}
	expected := []string{"/proj", "/proj/sub", "/proj/sub/a.txt"}
	if diff := cmp.Diff(expected, m.Paths()); diff != "" {
		t.Error("filesystem state does not match expected:\n", diff)
	}
}

// TestReconcileRemovals tests removal of paths exclusively in the old
// snapshot, children before parents.
func TestReconcileRemovals(t *testing.T) {
	m := vfs.NewMemory()
	old := NewFsSnapshot().
		WithDir("/proj").
		WithDir("/proj/sub").
		WithAddedFile("/proj/sub/a.txt", []byte("a")).
		WithAddedFile("/proj/keep.txt", []byte("keep"))
	if err := Reconcile(m, nil, old); err != nil {
		t.Fatal("setup reconcile failed:", err)
	}

	new := NewFsSnapshot().
		WithDir("/proj").
		WithAddedFile("/proj/keep.txt", []byte("keep"))
	if err := Reconcile(m, old, new); err != nil {
		t.Fatal("reconcile failed:", err)
	}

	expected := []string{"/proj", "/proj/keep.txt"}
	if diff := cmp.Diff(expected, m.Paths()); diff != "" {
		t.Error("filesystem state does not match expected:\n", diff)
	}
}

// writeCountingVfs is a memory filesystem that counts file writes.
type writeCountingVfs struct {
	*vfs.Memory
	writes int
}

func (v *writeCountingVfs) Write(path string, contents []byte) error {
	v.writes++
	return v.Memory.Write(path, contents)
}

// TestReconcileSkipsEqualContents tests that files with unchanged recorded
// contents are not rewritten.
func TestReconcileSkipsEqualContents(t *testing.T) {
	m := &writeCountingVfs{Memory: vfs.NewMemory()}
	old := NewFsSnapshot().WithDir("/proj").WithAddedFile("/proj/a.txt", []byte("same"))
	if err := Reconcile(m, nil, old); err != nil {
		t.Fatal("setup reconcile failed:", err)
	}
	m.writes = 0

	new := NewFsSnapshot().WithDir("/proj").
		WithAddedFile("/proj/a.txt", []byte("same")).
		WithAddedFile("/proj/b.txt", []byte("new"))
	if err := Reconcile(m, old, new); err != nil {
		t.Fatal("reconcile failed:", err)
	}
	if m.writes != 1 {
		t.Error("write count does not match expected:", m.writes)
	}
}

// TestReconcileNilNew tests that a nil new snapshot removes all old paths.
func TestReconcileNilNew(t *testing.T) {
	m := vfs.NewMemory()
	old := NewFsSnapshot().WithDir("/proj").WithAddedFile("/proj/a.txt", []byte("a"))
	if err := Reconcile(m, nil, old); err != nil {
		t.Fatal("setup reconcile failed:", err)
	}
	if err := Reconcile(m, old, nil); err != nil {
		t.Fatal("reconcile failed:", err)
	}
	if paths := m.Paths(); len(paths) != 0 {
		t.Error("paths remain after full removal:", paths)
	}
}
