package instance

import (
	"testing"
)

// TestDomInsertAndGet tests basic graph construction.
func TestDomInsertAndGet(t *testing.T) {
	dom := NewDom("Folder", "root")
	child := dom.Insert(dom.Root(), "Folder", "child", nil)
	grandchild := dom.Insert(child, "StringValue", "value", Properties{
		"Value": String("hello"),
	})

	if dom.Get(child).Parent() != dom.Root() {
		t.Error("child parent does not match root")
	}
	if got := dom.Get(dom.Root()).Children(); len(got) != 1 || got[0] != child {
		t.Error("root children do not match expected")
	}
	if dom.Get(grandchild).Class != "StringValue" {
		t.Error("grandchild class does not match expected")
	}
}

// TestDomDestroy tests recursive subtree destruction and parent detachment.
func TestDomDestroy(t *testing.T) {
	dom := NewDom("Folder", "root")
	a := dom.Insert(dom.Root(), "Folder", "a", nil)
	b := dom.Insert(dom.Root(), "Folder", "b", nil)
	aChild := dom.Insert(a, "Folder", "inner", nil)

	dom.Destroy(a)

	if dom.Get(a) != nil || dom.Get(aChild) != nil {
		t.Error("destroyed subtree still resolvable")
	}
	if got := dom.Get(dom.Root()).Children(); len(got) != 1 || got[0] != b {
		t.Error("root children not updated after destroy")
	}
}

// TestDomDescendants tests breadth-first descendant enumeration.
func TestDomDescendants(t *testing.T) {
	dom := NewDom("Folder", "root")
	a := dom.Insert(dom.Root(), "Folder", "a", nil)
	b := dom.Insert(dom.Root(), "Folder", "b", nil)
	inner := dom.Insert(a, "Folder", "inner", nil)

	expected := []Ref{dom.Root(), a, b, inner}
	got := dom.Descendants(dom.Root())
	if len(got) != len(expected) {
		t.Fatalf("descendant count %d does not match expected %d", len(got), len(expected))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("descendant index %d does not match expected", i)
		}
	}
}

// TestPropertiesEqual tests filtered property comparison.
func TestPropertiesEqual(t *testing.T) {
	a := Properties{"Name": String("x"), "Ignored": Bool(true)}
	b := Properties{"Name": String("x"), "Ignored": Bool(false)}

	if a.Equal(b, nil) {
		t.Error("differing bags incorrectly classified as equal")
	}
	ignore := func(name string) bool { return name == "Ignored" }
	if !a.Equal(b, ignore) {
		t.Error("bags differing only in ignored properties classified as unequal")
	}
}

// TestValueEquality tests cross-kind value comparison.
func TestValueEquality(t *testing.T) {
	tests := []struct {
		a        Value
		b        Value
		expected bool
	}{
		{String("a"), String("a"), true},
		{String("a"), String("b"), false},
		{Bool(true), Bool(true), true},
		{Number(1), Number(1), true},
		{Number(1), Number(2), false},
		{String("true"), Bool(true), false},
		{UniqueId("aa"), UniqueId("aa"), true},
		{UniqueId("aa"), String("aa"), false},
	}
	for i, test := range tests {
		if got := test.a.Equal(test.b); got != test.expected {
			t.Errorf("test index %d: equality %v does not match expected %v", i, got, test.expected)
		}
	}
}

// TestNewUniqueId tests generated unique identifier shape.
func TestNewUniqueId(t *testing.T) {
	id := NewUniqueId()
	if len(id) != 32 {
		t.Error("generated unique identifier has unexpected length:", len(id))
	}
	if id == NewUniqueId() {
		t.Error("consecutive unique identifiers collide")
	}
}
