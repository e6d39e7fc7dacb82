package snapshot

import (
	"sort"

	"github.com/Crown-Wars/rojo/pkg/instance"
)

// Tree is an instance graph expanded with per-instance metadata and a path
// index. The metadata map is kept up to date with the set of live instances,
// and the path index is kept up to date with the metadata map.
type Tree struct {
	// inner contains the instances without their metadata.
	inner *instance.Dom

	// metadataMap associates metadata with each live instance.
	metadataMap map[instance.Ref]*InstanceMetadata

	// pathToIDs is a multimap from relevant paths to the instances that were
	// constructed from those paths. Descendants of those instances are not
	// contained in the set; the value portion is a set in order to support
	// the same path appearing multiple times in one project.
	pathToIDs *MultiMap[string, instance.Ref]
}

// NewTree builds a single-rooted tree from a snapshot, recursively
// inserting children and registering metadata.
func NewTree(snapshot *InstanceSnapshot) *Tree {
	tree := &Tree{
		inner:       instance.NewDom(snapshot.ClassName, snapshot.Name),
		metadataMap: make(map[instance.Ref]*InstanceMetadata),
		pathToIDs:   NewMultiMap[string, instance.Ref](),
	}

	rootRef := tree.inner.Root()
	root := tree.inner.Get(rootRef)
	root.Properties = snapshot.Properties.Clone()

	tree.insertMetadata(rootRef, snapshot.Metadata)

	for _, child := range snapshot.Children {
		tree.Insert(rootRef, child)
	}

	return tree
}

// Inner returns the underlying instance graph.
func (t *Tree) Inner() *instance.Dom {
	return t.inner
}

// RootID returns the identifier of the root instance. It is stable for the
// tree's lifetime.
func (t *Tree) RootID() instance.Ref {
	return t.inner.Root()
}

// GetInstance returns the instance with the specified identifier, or nil.
func (t *Tree) GetInstance(id instance.Ref) *instance.Instance {
	return t.inner.Get(id)
}

// GetMetadata returns the metadata for the specified identifier, or nil.
func (t *Tree) GetMetadata(id instance.Ref) *InstanceMetadata {
	return t.metadataMap[id]
}

// GetIDsAtPath returns the identifiers of instances constructed from the
// specified path.
func (t *Tree) GetIDsAtPath(path string) []instance.Ref {
	return t.pathToIDs.Get(path)
}

// Insert appends a snapshot subtree under the specified parent, registering
// each new instance in the metadata map and path index, and returns the
// identifier of the subtree root.
func (t *Tree) Insert(parent instance.Ref, snapshot *InstanceSnapshot) instance.Ref {
	ref := t.inner.Insert(parent, snapshot.ClassName, snapshot.Name, snapshot.Properties.Clone())
	t.insertMetadata(ref, snapshot.Metadata)
	for _, child := range snapshot.Children {
		t.Insert(ref, child)
	}
	return ref
}

// UpdateProps replaces the class, name, and properties of the specified
// instance wholesale, leaving metadata untouched.
func (t *Tree) UpdateProps(id instance.Ref, snapshot *InstanceSnapshot) {
	target := t.inner.Get(id)
	if target == nil {
		panic("update of nonexistent instance")
	}
	target.Class = snapshot.ClassName
	target.Name = snapshot.Name
	target.Properties = snapshot.Properties.Clone()
}

// UpdateMetadata replaces the metadata for the specified instance. If the
// relevant paths changed, old path index entries are removed and new ones
// inserted atomically.
func (t *Tree) UpdateMetadata(id instance.Ref, metadata *InstanceMetadata) {
	existing, ok := t.metadataMap[id]
	if ok && !pathsEqual(existing.RelevantPaths, metadata.RelevantPaths) {
		for _, path := range existing.RelevantPaths {
			t.pathToIDs.Remove(path, id)
		}
		for _, path := range metadata.RelevantPaths {
			t.pathToIDs.Insert(path, id)
		}
	}
	t.metadataMap[id] = metadata
}

// Remove destroys the specified instance and all of its descendants,
// removing their metadata and path index entries first so that the index
// never references a dead instance.
func (t *Tree) Remove(id instance.Ref) {
	for _, descendant := range t.inner.Descendants(id) {
		t.removeMetadata(descendant)
	}
	t.inner.Destroy(id)
}

// Descendants returns the identifiers of the instance and all of its
// descendants in breadth-first order.
func (t *Tree) Descendants(id instance.Ref) []instance.Ref {
	return t.inner.Descendants(id)
}

// FixUniqueIDCollisions scans all instances in deterministic preorder
// (child order preserved) and, for any property whose value is a UniqueId,
// removes later duplicates so that each identifier string appears at most
// once in the tree.
func (t *Tree) FixUniqueIDCollisions() {
	seen := make(map[string]bool)

	stack := []instance.Ref{t.inner.Root()}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		target := t.inner.Get(ref)

		// Sort property names so that the deletion choice is deterministic.
		names := make([]string, 0, len(target.Properties))
		for name := range target.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if id, ok := target.Properties[name].(instance.UniqueId); ok {
				if seen[string(id)] {
					delete(target.Properties, name)
				} else {
					seen[string(id)] = true
				}
			}
		}

		// Push children in reverse so that they pop in original order.
		children := target.Children()
		for index := len(children) - 1; index >= 0; index-- {
			stack = append(stack, children[index])
		}
	}
}

// SyncbackGetFilters returns the diff property filters for the specified
// instance, falling back to empty filters for unknown identifiers.
func (t *Tree) SyncbackGetFilters(id instance.Ref) PropertyFilters {
	if metadata := t.metadataMap[id]; metadata != nil && metadata.Context != nil {
		return metadata.Context.Syncback.PropertyFiltersDiff
	}
	return nil
}

// SyncbackShouldSkip returns true if the specified instance must be
// excluded from diff consideration.
func (t *Tree) SyncbackShouldSkip(id instance.Ref) bool {
	metadata := t.metadataMap[id]
	if metadata == nil || metadata.Context == nil {
		return false
	}
	if source := metadata.InstigatingSource; source != nil && source.IsPath() {
		return !metadata.Context.ShouldSyncbackPath(source.Path())
	}
	return false
}

// insertMetadata registers metadata and path index entries for an instance.
func (t *Tree) insertMetadata(id instance.Ref, metadata *InstanceMetadata) {
	if metadata == nil {
		metadata = NewMetadata()
	}
	for _, path := range metadata.RelevantPaths {
		t.pathToIDs.Insert(path, id)
	}
	t.metadataMap[id] = metadata
}

// removeMetadata removes an instance's metadata and path index entries. A
// missing entry indicates an index/metadata desynchronization, which is a
// programming error.
func (t *Tree) removeMetadata(id instance.Ref) {
	metadata, ok := t.metadataMap[id]
	if !ok {
		panic("metadata missing for live instance")
	}
	for _, path := range metadata.RelevantPaths {
		t.pathToIDs.Remove(path, id)
	}
	delete(t.metadataMap, id)
}

// pathsEqual compares two relevant-path slices for set equality.
func pathsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, path := range a {
		set[path] = true
	}
	for _, path := range b {
		if !set[path] {
			return false
		}
	}
	return true
}
