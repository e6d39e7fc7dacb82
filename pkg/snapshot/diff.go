package snapshot

import (
	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
)

// DeepDiff is a structural correspondence between an old and a new instance
// tree, together with per-node change classification. The correspondence is
// a partial injective function from old identifiers to new identifiers.
type DeepDiff struct {
	// oldToNew maps old identifiers to their matching new identifiers.
	oldToNew map[instance.Ref]instance.Ref
	// newToOld is the inverse of oldToNew.
	newToOld map[instance.Ref]instance.Ref
	// changed records, for each matched old identifier, whether the matched
	// subtrees differ after property filtering.
	changed map[instance.Ref]bool
	// skipped records old identifiers excluded from consideration.
	skipped map[instance.Ref]bool
}

// ChildrenDiff classifies the children of one matched pair.
type ChildrenDiff struct {
	// Added are new-side children with no old counterpart, in input order.
	Added []instance.Ref
	// Removed are old-side children with no new counterpart, in input order.
	Removed []instance.Ref
	// Changed are old-side children whose matched subtree differs.
	Changed []instance.Ref
	// Unchanged are old-side children whose matched subtree is identical.
	Unchanged []instance.Ref
}

// childKey is the pairing key used when matching children.
type childKey struct {
	class string
	name  string
}

// differ provides the recursive diff implementation.
type differ struct {
	oldDom     *instance.Dom
	newDom     *instance.Dom
	filters    func(instance.Ref) PropertyFilters
	shouldSkip func(instance.Ref) bool
	result     *DeepDiff
}

// NewDeepDiff computes the correspondence between the old subtree rooted at
// oldRoot and the new subtree rooted at newRoot. The roots always match.
// The filters callback supplies per-old-node property filters; the
// shouldSkip callback excludes old subtrees from consideration. Either
// callback may be nil.
func NewDeepDiff(oldDom *instance.Dom, oldRoot instance.Ref, newDom *instance.Dom, newRoot instance.Ref, filters func(instance.Ref) PropertyFilters, shouldSkip func(instance.Ref) bool) *DeepDiff {
	if filters == nil {
		filters = func(instance.Ref) PropertyFilters { return nil }
	}
	if shouldSkip == nil {
		shouldSkip = func(instance.Ref) bool { return false }
	}
	d := &differ{
		oldDom:     oldDom,
		newDom:     newDom,
		filters:    filters,
		shouldSkip: shouldSkip,
		result: &DeepDiff{
			oldToNew: make(map[instance.Ref]instance.Ref),
			newToOld: make(map[instance.Ref]instance.Ref),
			changed:  make(map[instance.Ref]bool),
			skipped:  make(map[instance.Ref]bool),
		},
	}
	d.matchPair(oldRoot, newRoot)
	return d.result
}

// matchPair records a correspondence between an old and a new instance and
// recursively matches their children. It returns true if the matched
// subtrees differ.
func (d *differ) matchPair(oldRef, newRef instance.Ref) bool {
	d.result.oldToNew[oldRef] = newRef
	d.result.newToOld[newRef] = oldRef

	oldInst := d.oldDom.Get(oldRef)
	newInst := d.newDom.Get(newRef)

	// Compare the pair's own content under the supplied property filter.
	filters := d.filters(oldRef)
	differs := oldInst.Class != newInst.Class ||
		oldInst.Name != newInst.Name ||
		!oldInst.Properties.Equal(newInst.Properties, filters.Ignores)

	// Pair children by (class, name), preserving relative order among
	// children sharing a key.
	queues := make(map[childKey][]instance.Ref)
	for _, childRef := range newInst.Children() {
		child := d.newDom.Get(childRef)
		key := childKey{class: child.Class, name: child.Name}
		queues[key] = append(queues[key], childRef)
	}

	matchedNew := make(map[instance.Ref]bool)
	for _, childRef := range oldInst.Children() {
		if d.shouldSkip(childRef) {
			d.result.skipped[childRef] = true
			continue
		}
		child := d.oldDom.Get(childRef)
		key := childKey{class: child.Class, name: child.Name}
		candidates := queues[key]
		if len(candidates) == 0 {
			// Unmatched old child: a removal, which makes this pair differ.
			differs = true
			continue
		}
		newChildRef := candidates[0]
		queues[key] = candidates[1:]
		matchedNew[newChildRef] = true
		if d.matchPair(childRef, newChildRef) {
			differs = true
		}
	}

	// Any unmatched new children are additions.
	if !differs {
		for _, childRef := range newInst.Children() {
			if !matchedNew[childRef] {
				differs = true
				break
			}
		}
	}

	d.result.changed[oldRef] = differs
	return differs
}

// GetMatchingNewRef returns the new identifier matched to the specified old
// identifier, if any.
func (diff *DeepDiff) GetMatchingNewRef(oldRef instance.Ref) (instance.Ref, bool) {
	newRef, ok := diff.oldToNew[oldRef]
	return newRef, ok
}

// GetMatchingOldRef returns the old identifier matched to the specified new
// identifier, if any.
func (diff *DeepDiff) GetMatchingOldRef(newRef instance.Ref) (instance.Ref, bool) {
	oldRef, ok := diff.newToOld[newRef]
	return oldRef, ok
}

// HasChanged returns true if the subtree matched at the specified old
// identifier differs from its new counterpart.
func (diff *DeepDiff) HasChanged(oldRef instance.Ref) bool {
	return diff.changed[oldRef]
}

// IsSkipped returns true if the old identifier was excluded from
// consideration.
func (diff *DeepDiff) IsSkipped(oldRef instance.Ref) bool {
	return diff.skipped[oldRef]
}

// GetChildren classifies the children of the matched pair anchored at the
// specified old identifier into added, removed, changed, and unchanged.
// Skipped old children appear in none of the lists.
func (diff *DeepDiff) GetChildren(oldDom *instance.Dom, newDom *instance.Dom, oldRef instance.Ref) (*ChildrenDiff, error) {
	newRef, ok := diff.oldToNew[oldRef]
	if !ok {
		return nil, errors.Errorf("no matching new ref for %s", oldRef)
	}
	oldInst := oldDom.Get(oldRef)
	newInst := newDom.Get(newRef)
	if oldInst == nil || newInst == nil {
		return nil, errors.New("matched pair references missing instances")
	}

	result := &ChildrenDiff{}
	for _, childRef := range oldInst.Children() {
		if diff.skipped[childRef] {
			continue
		}
		if _, ok := diff.oldToNew[childRef]; !ok {
			result.Removed = append(result.Removed, childRef)
		} else if diff.changed[childRef] {
			result.Changed = append(result.Changed, childRef)
		} else {
			result.Unchanged = append(result.Unchanged, childRef)
		}
	}
	for _, childRef := range newInst.Children() {
		if _, ok := diff.newToOld[childRef]; !ok {
			result.Added = append(result.Added, childRef)
		}
	}
	return result, nil
}
