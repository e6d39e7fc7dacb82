package snapshot

import (
	"testing"

	"github.com/Crown-Wars/rojo/pkg/instance"
)

// domNode is a nested description of an instance and its children.
type domNode struct {
	class      string
	name       string
	properties instance.Properties
	children   []domNode
}

// buildDom constructs a small dom from a nested description.
func buildDom(root domNode) (*instance.Dom, instance.Ref) {
	dom := instance.NewDom(root.class, root.name)
	if root.properties != nil {
		dom.Get(dom.Root()).Properties = root.properties.Clone()
	}
	var insert func(parent instance.Ref, node domNode)
	insert = func(parent instance.Ref, node domNode) {
		ref := dom.Insert(parent, node.class, node.name, node.properties.Clone())
		for _, child := range node.children {
			insert(ref, child)
		}
	}
	for _, child := range root.children {
		insert(dom.Root(), child)
	}
	return dom, dom.Root()
}

// TestDeepDiffIdentical tests that diffing equal trees reports no changes
// anywhere.
func TestDeepDiffIdentical(t *testing.T) {
	description := domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "a", children: []domNode{
			{class: "StringValue", name: "v", properties: instance.Properties{"Value": instance.String("x")}},
		}},
		{class: "Folder", name: "b"},
	}}
	oldDom, oldRoot := buildDom(description)
	newDom, newRoot := buildDom(description)

	diff := NewDeepDiff(oldDom, oldRoot, newDom, newRoot, nil, nil)

	if diff.HasChanged(oldRoot) {
		t.Error("identical trees classified as changed")
	}
	for _, ref := range oldDom.Descendants(oldRoot) {
		delta, err := diff.GetChildren(oldDom, newDom, ref)
		if err != nil {
			t.Fatal("unable to classify children:", err)
		}
		if len(delta.Added) != 0 || len(delta.Removed) != 0 || len(delta.Changed) != 0 {
			t.Errorf("changes reported at %s", oldDom.Get(ref).Name)
		}
	}
}

// TestDeepDiffClassification tests added/removed/changed/unchanged
// classification at one level.
func TestDeepDiffClassification(t *testing.T) {
	oldDom, oldRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "stays"},
		{class: "Folder", name: "goes"},
		{class: "StringValue", name: "edited", properties: instance.Properties{"Value": instance.String("old")}},
	}})
	newDom, newRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "stays"},
		{class: "StringValue", name: "edited", properties: instance.Properties{"Value": instance.String("new")}},
		{class: "Folder", name: "fresh"},
	}})

	diff := NewDeepDiff(oldDom, oldRoot, newDom, newRoot, nil, nil)
	if !diff.HasChanged(oldRoot) {
		t.Fatal("differing trees classified as unchanged")
	}

	delta, err := diff.GetChildren(oldDom, newDom, oldRoot)
	if err != nil {
		t.Fatal("unable to classify children:", err)
	}

	if len(delta.Added) != 1 || newDom.Get(delta.Added[0]).Name != "fresh" {
		t.Error("added classification does not match expected")
	}
	if len(delta.Removed) != 1 || oldDom.Get(delta.Removed[0]).Name != "goes" {
		t.Error("removed classification does not match expected")
	}
	if len(delta.Changed) != 1 || oldDom.Get(delta.Changed[0]).Name != "edited" {
		t.Error("changed classification does not match expected")
	}
	if len(delta.Unchanged) != 1 || oldDom.Get(delta.Unchanged[0]).Name != "stays" {
		t.Error("unchanged classification does not match expected")
	}
}

// TestDeepDiffInjective tests that the correspondence stays injective and
// breaks ties in input order when several children share a class and name.
func TestDeepDiffInjective(t *testing.T) {
	oldDom, oldRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "dup", properties: instance.Properties{"Tag": instance.String("first")}},
		{class: "Folder", name: "dup", properties: instance.Properties{"Tag": instance.String("second")}},
	}})
	newDom, newRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "dup", properties: instance.Properties{"Tag": instance.String("first")}},
		{class: "Folder", name: "dup", properties: instance.Properties{"Tag": instance.String("second")}},
	}})

	diff := NewDeepDiff(oldDom, oldRoot, newDom, newRoot, nil, nil)

	seen := make(map[instance.Ref]bool)
	oldChildren := oldDom.Get(oldRoot).Children()
	newChildren := newDom.Get(newRoot).Children()
	for index, childRef := range oldChildren {
		match, ok := diff.GetMatchingNewRef(childRef)
		if !ok {
			t.Fatal("child with identical counterpart has no match")
		}
		if seen[match] {
			t.Fatal("correspondence is not injective")
		}
		seen[match] = true
		if match != newChildren[index] {
			t.Error("tie not broken in input order")
		}
	}

	if diff.HasChanged(oldRoot) {
		t.Error("order-preserving pairing still reported changes")
	}
}

// TestDeepDiffFilters tests that filtered properties do not participate in
// equality.
func TestDeepDiffFilters(t *testing.T) {
	oldDom, oldRoot := buildDom(domNode{class: "Folder", name: "root", properties: instance.Properties{
		"UniqueId": instance.UniqueId("a"),
	}})
	newDom, newRoot := buildDom(domNode{class: "Folder", name: "root", properties: instance.Properties{
		"UniqueId": instance.UniqueId("b"),
	}})

	unfiltered := NewDeepDiff(oldDom, oldRoot, newDom, newRoot, nil, nil)
	if !unfiltered.HasChanged(oldRoot) {
		t.Error("differing property not detected without filters")
	}

	filters := func(instance.Ref) PropertyFilters { return DefaultFiltersDiff() }
	filtered := NewDeepDiff(oldDom, oldRoot, newDom, newRoot, filters, nil)
	if filtered.HasChanged(oldRoot) {
		t.Error("filtered property still participates in equality")
	}
}

// TestDeepDiffSkip tests that skipped old subtrees correspond to nothing
// and appear in no classification.
func TestDeepDiffSkip(t *testing.T) {
	oldDom, oldRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "hidden"},
	}})
	newDom, newRoot := buildDom(domNode{class: "Folder", name: "root"})

	hidden := oldDom.Get(oldRoot).Children()[0]
	shouldSkip := func(ref instance.Ref) bool { return ref == hidden }

	diff := NewDeepDiff(oldDom, oldRoot, newDom, newRoot, nil, shouldSkip)

	if _, ok := diff.GetMatchingNewRef(hidden); ok {
		t.Error("skipped subtree received a correspondence")
	}
	delta, err := diff.GetChildren(oldDom, newDom, oldRoot)
	if err != nil {
		t.Fatal("unable to classify children:", err)
	}
	if len(delta.Added)+len(delta.Removed)+len(delta.Changed)+len(delta.Unchanged) != 0 {
		t.Error("skipped subtree appeared in a classification")
	}
}

// TestHashTreeChildOrder tests that child ordering does not affect subtree
// hashes while content does.
func TestHashTreeChildOrder(t *testing.T) {
	forward, forwardRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "a"},
		{class: "Folder", name: "b"},
	}})
	reversed, reversedRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "b"},
		{class: "Folder", name: "a"},
	}})
	edited, editedRoot := buildDom(domNode{class: "Folder", name: "root", children: []domNode{
		{class: "Folder", name: "a"},
		{class: "Folder", name: "c"},
	}})

	forwardHash := HashTree(forward, forwardRoot, nil)[forwardRoot]
	reversedHash := HashTree(reversed, reversedRoot, nil)[reversedRoot]
	editedHash := HashTree(edited, editedRoot, nil)[editedRoot]

	if forwardHash != reversedHash {
		t.Error("child order affected subtree hash")
	}
	if forwardHash == editedHash {
		t.Error("content change did not affect subtree hash")
	}
}
