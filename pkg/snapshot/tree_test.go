package snapshot

import (
	"testing"

	"github.com/Crown-Wars/rojo/pkg/instance"
)

// testSnapshot builds a snapshot node for tree tests.
func testSnapshot(class, name string, relevantPaths []string, children ...*InstanceSnapshot) *InstanceSnapshot {
	snap := NewInstanceSnapshot()
	snap.ClassName = class
	snap.Name = name
	snap.Metadata.RelevantPaths = relevantPaths
	snap.Children = children
	return snap
}

// findChild resolves a child by name.
func findChild(t *Tree, parent instance.Ref, name string) instance.Ref {
	for _, childRef := range t.GetInstance(parent).Children() {
		if t.GetInstance(childRef).Name == name {
			return childRef
		}
	}
	return instance.NilRef
}

// TestTreeBuild tests recursive construction with metadata registration.
func TestTreeBuild(t *testing.T) {
	tree := NewTree(testSnapshot("Folder", "root", []string{"/proj"},
		testSnapshot("Folder", "child", []string{"/proj/child"}),
	))

	child := findChild(tree, tree.RootID(), "child")
	if child == instance.NilRef {
		t.Fatal("child not inserted")
	}
	if tree.GetMetadata(child) == nil {
		t.Error("child metadata not registered")
	}
	if ids := tree.GetIDsAtPath("/proj/child"); len(ids) != 1 || ids[0] != child {
		t.Error("path index does not resolve child")
	}
	if ids := tree.GetIDsAtPath("/proj"); len(ids) != 1 || ids[0] != tree.RootID() {
		t.Error("path index does not resolve root")
	}
}

// TestTreeRemove tests that removal destroys metadata and index entries for
// the target and all descendants before the instances are destroyed.
func TestTreeRemove(t *testing.T) {
	tree := NewTree(testSnapshot("Folder", "root", []string{"/proj"},
		testSnapshot("Folder", "child", []string{"/proj/child"},
			testSnapshot("Folder", "inner", []string{"/proj/child/inner"}),
		),
	))
	child := findChild(tree, tree.RootID(), "child")
	inner := findChild(tree, child, "inner")

	tree.Remove(child)

	if tree.GetInstance(child) != nil || tree.GetInstance(inner) != nil {
		t.Error("removed instances still resolvable")
	}
	if tree.GetMetadata(child) != nil || tree.GetMetadata(inner) != nil {
		t.Error("stale metadata entries remain")
	}
	if len(tree.GetIDsAtPath("/proj/child")) != 0 || len(tree.GetIDsAtPath("/proj/child/inner")) != 0 {
		t.Error("stale path index entries remain")
	}
}

// TestTreeUpdateMetadata tests transactional path index maintenance.
func TestTreeUpdateMetadata(t *testing.T) {
	tree := NewTree(testSnapshot("Folder", "root", []string{"/proj"}))

	metadata := NewMetadata()
	metadata.RelevantPaths = []string{"/moved"}
	tree.UpdateMetadata(tree.RootID(), metadata)

	if len(tree.GetIDsAtPath("/proj")) != 0 {
		t.Error("old path index entry remains after metadata update")
	}
	if ids := tree.GetIDsAtPath("/moved"); len(ids) != 1 || ids[0] != tree.RootID() {
		t.Error("new path index entry missing after metadata update")
	}
}

// TestTreeUpdateProps tests wholesale property replacement with metadata
// untouched.
func TestTreeUpdateProps(t *testing.T) {
	tree := NewTree(testSnapshot("Folder", "root", []string{"/proj"}))
	original := tree.GetMetadata(tree.RootID())

	snap := NewInstanceSnapshot()
	snap.ClassName = "Model"
	snap.Name = "renamed"
	snap.Properties["Value"] = instance.String("x")
	tree.UpdateProps(tree.RootID(), snap)

	root := tree.GetInstance(tree.RootID())
	if root.Class != "Model" || root.Name != "renamed" {
		t.Error("class or name not replaced")
	}
	if !root.Properties["Value"].Equal(instance.String("x")) {
		t.Error("properties not replaced")
	}
	if tree.GetMetadata(tree.RootID()) != original {
		t.Error("metadata was touched by property update")
	}
}

// TestTreeFixUniqueIDCollisions tests that later duplicates are deleted in
// deterministic preorder.
func TestTreeFixUniqueIDCollisions(t *testing.T) {
	first := testSnapshot("Folder", "a", nil)
	first.Properties["UniqueId"] = instance.UniqueId("collision")
	second := testSnapshot("Folder", "b", nil)
	second.Properties["UniqueId"] = instance.UniqueId("collision")
	second.Properties["OtherId"] = instance.UniqueId("distinct")

	tree := NewTree(testSnapshot("Folder", "root", nil, first, second))
	tree.FixUniqueIDCollisions()

	a := findChild(tree, tree.RootID(), "a")
	b := findChild(tree, tree.RootID(), "b")

	if _, ok := tree.GetInstance(a).Properties["UniqueId"]; !ok {
		t.Error("first occurrence in preorder was deleted")
	}
	if _, ok := tree.GetInstance(b).Properties["UniqueId"]; ok {
		t.Error("later duplicate survived")
	}
	if _, ok := tree.GetInstance(b).Properties["OtherId"]; !ok {
		t.Error("non-colliding unique identifier was deleted")
	}

	// The multiset of UniqueId values must now be duplicate-free.
	seen := make(map[string]bool)
	for _, id := range tree.Descendants(tree.RootID()) {
		for _, value := range tree.GetInstance(id).Properties {
			if unique, ok := value.(instance.UniqueId); ok {
				if seen[string(unique)] {
					t.Fatal("duplicate unique identifier remains")
				}
				seen[string(unique)] = true
			}
		}
	}
}
