// Package instance implements the plain hierarchical object graph that the
// snapshot and syncback engines operate over: typed property values,
// instances with ordered children, and the Dom container that owns them.
package instance

import (
	"github.com/Crown-Wars/rojo/pkg/identifier"
)

// Ref is an opaque, stable, non-reusable identifier for an instance within a
// single Dom. Two Doms use disjoint identifier spaces; cross-tree
// correspondence is always mediated by a diff.
type Ref string

// NilRef is the zero Ref, representing the absence of an instance.
const NilRef Ref = ""

// newRef generates a fresh Ref. Identifier generation can only fail if the
// system's random source is broken, which is not a recoverable condition.
func newRef() Ref {
	value, err := identifier.New(identifier.PrefixInstance)
	if err != nil {
		panic("unable to generate instance identifier: " + err.Error())
	}
	return Ref(value)
}

// Instance is a single node in the object graph: a class, a name, a property
// bag, and ordered children. Children ordering is preserved but carries no
// semantic meaning for equality.
type Instance struct {
	ref      Ref
	parent   Ref
	children []Ref
	// Class is the class name of the instance.
	Class string
	// Name is the name of the instance.
	Name string
	// Properties is the instance's property bag.
	Properties Properties
}

// Ref returns the instance's identifier.
func (i *Instance) Ref() Ref {
	return i.ref
}

// Parent returns the identifier of the instance's parent, or NilRef for the
// root.
func (i *Instance) Parent() Ref {
	return i.parent
}

// Children returns the identifiers of the instance's children in order. The
// returned slice must not be mutated.
func (i *Instance) Children() []Ref {
	return i.children
}

// Dom owns a single-rooted instance graph.
type Dom struct {
	root      Ref
	instances map[Ref]*Instance
}

// NewDom creates a Dom with a root instance of the specified class and name.
func NewDom(class, name string) *Dom {
	root := &Instance{
		ref:        newRef(),
		Class:      class,
		Name:       name,
		Properties: make(Properties),
	}
	return &Dom{
		root:      root.ref,
		instances: map[Ref]*Instance{root.ref: root},
	}
}

// Root returns the identifier of the root instance.
func (d *Dom) Root() Ref {
	return d.root
}

// Get returns the instance with the specified identifier, or nil if no such
// instance exists.
func (d *Dom) Get(ref Ref) *Instance {
	return d.instances[ref]
}

// Insert creates a new instance under the specified parent and returns its
// identifier. The properties map is taken over by the Dom. It panics if the
// parent does not exist, which indicates a programming error.
func (d *Dom) Insert(parent Ref, class, name string, properties Properties) Ref {
	parentInstance := d.instances[parent]
	if parentInstance == nil {
		panic("insert under nonexistent parent")
	}
	if properties == nil {
		properties = make(Properties)
	}
	child := &Instance{
		ref:        newRef(),
		parent:     parent,
		Class:      class,
		Name:       name,
		Properties: properties,
	}
	d.instances[child.ref] = child
	parentInstance.children = append(parentInstance.children, child.ref)
	return child.ref
}

// Destroy removes the instance with the specified identifier and all of its
// descendants. Destroying a nonexistent instance is a no-op. Destroying the
// root removes every instance, the root included.
func (d *Dom) Destroy(ref Ref) {
	target := d.instances[ref]
	if target == nil {
		return
	}

	// Detach from the parent's child list.
	if parent := d.instances[target.parent]; parent != nil {
		for index, child := range parent.children {
			if child == ref {
				parent.children = append(parent.children[:index], parent.children[index+1:]...)
				break
			}
		}
	}

	// Remove the subtree.
	queue := []Ref{ref}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if target := d.instances[next]; target != nil {
			queue = append(queue, target.children...)
			delete(d.instances, next)
		}
	}
}

// Descendants returns the identifiers of the instance and all of its
// descendants in breadth-first order.
func (d *Dom) Descendants(ref Ref) []Ref {
	var results []Ref
	queue := []Ref{ref}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		target := d.instances[next]
		if target == nil {
			continue
		}
		results = append(results, next)
		queue = append(queue, target.children...)
	}
	return results
}
