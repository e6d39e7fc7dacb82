// Package snapshot implements the enriched instance tree, the structural
// diff between trees, the filesystem snapshot primitive, and the syncback
// driver that ties them together through the middleware registry.
package snapshot

import (
	"github.com/Crown-Wars/rojo/pkg/instance"
)

// InstanceSnapshot is a frozen description of an instance subtree together
// with the metadata to attach when it is inserted into a tree.
type InstanceSnapshot struct {
	// ClassName is the class of the instance.
	ClassName string
	// Name is the name of the instance.
	Name string
	// Properties is the instance's property bag.
	Properties instance.Properties
	// Children are the snapshots of the instance's children, in order.
	Children []*InstanceSnapshot
	// Metadata is the metadata to register for the instance.
	Metadata *InstanceMetadata
}

// NewInstanceSnapshot creates an empty snapshot with default metadata.
func NewInstanceSnapshot() *InstanceSnapshot {
	return &InstanceSnapshot{
		Properties: make(instance.Properties),
		Metadata:   NewMetadata(),
	}
}

// FromDom creates a snapshot of the subtree rooted at the specified
// instance. All nodes receive fresh default metadata.
func FromDom(dom *instance.Dom, ref instance.Ref) *InstanceSnapshot {
	target := dom.Get(ref)
	if target == nil {
		return nil
	}
	result := &InstanceSnapshot{
		ClassName:  target.Class,
		Name:       target.Name,
		Properties: target.Properties.Clone(),
		Metadata:   NewMetadata(),
	}
	for _, child := range target.Children() {
		result.Children = append(result.Children, FromDom(dom, child))
	}
	return result
}

// FilteredFromDom creates a snapshot of the subtree rooted at the specified
// instance, excluding properties matched by the filter map at every level.
func FilteredFromDom(dom *instance.Dom, ref instance.Ref, filters PropertyFilters) *InstanceSnapshot {
	target := dom.Get(ref)
	if target == nil {
		return nil
	}
	properties := make(instance.Properties, len(target.Properties))
	for name, value := range target.Properties {
		if filters.Ignores(name) {
			continue
		}
		properties[name] = value
	}
	result := &InstanceSnapshot{
		ClassName:  target.Class,
		Name:       target.Name,
		Properties: properties,
		Metadata:   NewMetadata(),
	}
	for _, child := range target.Children() {
		result.Children = append(result.Children, FilteredFromDom(dom, child, filters))
	}
	return result
}
