package snapshot

import (
	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// Syncback priority ranks used when choosing a middleware for a fresh
// instance. Larger wins; ties are broken by stable registry order.
const (
	// PriorityManyReadable ranks a representation that keeps descendants
	// individually readable on disk, considered when descendants matter.
	PriorityManyReadable = 60
	// PrioritySingleReadable ranks a single readable file for a class the
	// middleware understands natively.
	PrioritySingleReadable = 50
	// PriorityModel ranks an opaque model file able to serialize any
	// subtree.
	PriorityModel = 40
	// PriorityModelDirectory ranks a directory carrying an init file for a
	// non-Folder class.
	PriorityModelDirectory = 10
	// PriorityDirectoryCheckFallback ranks a plain directory when
	// descendants are not considered.
	PriorityDirectoryCheckFallback = 1
)

// Middleware is a named handler for one shape of instance-to-filesystem
// mapping.
type Middleware interface {
	// ID returns the middleware's registry identifier.
	ID() string
	// MatchOnlyDirectories returns true if the middleware claims only
	// directories on forward snapshot.
	MatchOnlyDirectories() bool
	// DefaultGlobs returns the filename globs the middleware claims on
	// forward snapshot.
	DefaultGlobs() []string
	// InitNames returns names of files inside a directory that, if present,
	// promote the directory to this middleware's class.
	InitNames() []string
	// Snapshot builds a forward snapshot of the specified path, or returns
	// nil with no error if the middleware makes no claim.
	Snapshot(context *InstanceContext, v vfs.Vfs, path string) (*InstanceSnapshot, error)
	// SyncbackSerializesChildren returns true if the middleware's file
	// contents already encode descendants, in which case the directory
	// walker must not recurse into the node's children.
	SyncbackSerializesChildren() bool
	// SyncbackPriority ranks the middleware for a fresh instance. The
	// boolean result indicates whether the middleware applies at all.
	SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool)
	// SyncbackNewPath computes where to place a freshly created instance.
	SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error)
	// Syncback performs the reverse operation.
	Syncback(ctx *SyncbackContext) (*SyncbackNode, error)
}

// registry is the process-wide ordered middleware registry. It is populated
// during package initialization and immutable afterwards.
var registry []Middleware

// registryByID indexes the registry by middleware identifier.
var registryByID = make(map[string]Middleware)

// Register adds a middleware to the registry. Registration order is
// significant: it breaks priority ties and orders init-file scanning.
func Register(middleware Middleware) {
	if _, ok := registryByID[middleware.ID()]; ok {
		panic("duplicate middleware registration: " + middleware.ID())
	}
	registry = append(registry, middleware)
	registryByID[middleware.ID()] = middleware
}

// Get returns the middleware with the specified identifier, or nil.
func Get(id string) Middleware {
	return registryByID[id]
}

// Middlewares returns the registry in registration order. The returned
// slice must not be mutated.
func Middlewares() []Middleware {
	return registry
}

// InitName associates an init file name with the middleware that claims it.
type InitName struct {
	// Name is the init file's name.
	Name string
	// MiddlewareID is the claiming middleware's identifier.
	MiddlewareID string
}

// InitNames returns all registered init names in registry order.
func InitNames() []InitName {
	var results []InitName
	for _, middleware := range registry {
		for _, name := range middleware.InitNames() {
			results = append(results, InitName{Name: name, MiddlewareID: middleware.ID()})
		}
	}
	return results
}

// BestSyncbackMiddleware selects the middleware to use for a fresh
// instance. Candidates are middlewares offering a priority for the instance
// given considerDescendants; the highest priority wins, with ties broken by
// registry order, except that a previous choice wins any tie it
// participates in. It returns empty if no middleware applies.
func BestSyncbackMiddleware(dom *instance.Dom, inst *instance.Instance, considerDescendants bool, previous string) string {
	best := ""
	bestPriority := 0
	for _, middleware := range registry {
		priority, ok := middleware.SyncbackPriority(dom, inst, considerDescendants)
		if !ok {
			continue
		}
		if best == "" || priority > bestPriority {
			best = middleware.ID()
			bestPriority = priority
		} else if priority == bestPriority && middleware.ID() == previous {
			best = previous
		}
	}
	return best
}

// BestSyncbackMiddlewareNoChildSerialization behaves like
// BestSyncbackMiddleware but excludes middlewares whose file contents
// serialize children. It is used when selecting init middlewares for
// directories, which must retain the ability to contain siblings.
func BestSyncbackMiddlewareNoChildSerialization(dom *instance.Dom, inst *instance.Instance, considerDescendants bool, previous string) string {
	best := ""
	bestPriority := 0
	for _, middleware := range registry {
		if middleware.SyncbackSerializesChildren() {
			continue
		}
		priority, ok := middleware.SyncbackPriority(dom, inst, considerDescendants)
		if !ok {
			continue
		}
		if best == "" || priority > bestPriority {
			best = middleware.ID()
			bestPriority = priority
		} else if priority == bestPriority && middleware.ID() == previous {
			best = previous
		}
	}
	return best
}
