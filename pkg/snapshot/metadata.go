package snapshot

import (
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// InstigatingSourceKind identifies what brought an instance into being.
type InstigatingSourceKind uint8

const (
	// SourcePath indicates an instance instigated directly by a filesystem
	// path.
	SourcePath InstigatingSourceKind = iota
	// SourceProjectNode indicates an instance instigated by a node inside a
	// project file.
	SourceProjectNode
)

// InstigatingSource identifies the filesystem location or project-file
// position that caused an instance to exist.
type InstigatingSource struct {
	kind InstigatingSourceKind
	// path is the instigating filesystem path. For project nodes it is the
	// path of the project file.
	path string
	// nodeName is the name of the project node, for project-node sources.
	nodeName string
}

// PathSource creates an InstigatingSource for a filesystem path.
func PathSource(path string) *InstigatingSource {
	return &InstigatingSource{kind: SourcePath, path: path}
}

// ProjectNodeSource creates an InstigatingSource for a node inside a project
// file.
func ProjectNodeSource(projectPath, nodeName string) *InstigatingSource {
	return &InstigatingSource{kind: SourceProjectNode, path: projectPath, nodeName: nodeName}
}

// Kind returns the kind of the source.
func (s *InstigatingSource) Kind() InstigatingSourceKind {
	return s.kind
}

// IsPath returns true if the source is a plain filesystem path.
func (s *InstigatingSource) IsPath() bool {
	return s != nil && s.kind == SourcePath
}

// Path returns the instigating path. For project-node sources this is the
// project file's path.
func (s *InstigatingSource) Path() string {
	return s.path
}

// PathIgnoreRule is a glob-based rule excluding paths from snapshotting.
type PathIgnoreRule struct {
	// pattern is the doublestar pattern to match.
	pattern string
	// base is the path that the pattern is rooted at.
	base string
}

// NewPathIgnoreRule validates and creates a new ignore rule rooted at the
// specified base path.
func NewPathIgnoreRule(pattern, base string) (*PathIgnoreRule, error) {
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}
	// Attempt a match against a dummy path to validate pattern syntax, since
	// this is the only mechanism doublestar provides for validation.
	if _, err := doublestar.Match(pattern, "a"); err != nil {
		return nil, errors.Wrap(err, "unable to parse pattern")
	}
	return &PathIgnoreRule{pattern: pattern, base: base}, nil
}

// Passes returns true if the path is NOT excluded by the rule.
func (r *PathIgnoreRule) Passes(path string) bool {
	target := path
	if r.base != "" {
		if rel := strings.TrimPrefix(path, r.base); rel != path {
			target = strings.TrimPrefix(rel, "/")
		}
	}
	if match, _ := doublestar.Match(r.pattern, target); match {
		return false
	}
	// Also match against the base name so that simple patterns behave the
	// way users expect.
	if !strings.ContainsRune(r.pattern, '/') {
		if match, _ := doublestar.Match(r.pattern, pathpkg.Base(path)); match {
			return false
		}
	}
	return true
}

// PropertyFilter describes how a property participates in comparison or
// serialization.
type PropertyFilter uint8

const (
	// FilterIgnore excludes the property entirely.
	FilterIgnore PropertyFilter = iota
)

// PropertyFilters maps property names to filters.
type PropertyFilters map[string]PropertyFilter

// Ignores returns true if the property is excluded by the filter map.
func (f PropertyFilters) Ignores(name string) bool {
	_, ok := f[name]
	return ok
}

// DefaultFiltersDiff returns the default property filters applied during
// diff equality.
func DefaultFiltersDiff() PropertyFilters {
	return PropertyFilters{
		"SourceAssetId": FilterIgnore,
		"UniqueId":      FilterIgnore,
		"HistoryId":     FilterIgnore,
		"ScriptGuid":    FilterIgnore,
		"LinkedSource":  FilterIgnore,
	}
}

// DefaultFiltersSave returns the default property filters stripped prior to
// serialization.
func DefaultFiltersSave() PropertyFilters {
	return PropertyFilters{
		"SourceAssetId": FilterIgnore,
		"UniqueId":      FilterIgnore,
		"HistoryId":     FilterIgnore,
		"ScriptGuid":    FilterIgnore,
	}
}

// SyncbackRules carries the syncback-specific pieces of inherited
// configuration.
type SyncbackRules struct {
	// IgnorePaths are glob patterns for paths that syncback must not touch.
	IgnorePaths []string
	// PropertyFiltersDiff are properties ignored during diff equality.
	PropertyFiltersDiff PropertyFilters
	// PropertyFiltersSave are properties stripped prior to serialization.
	PropertyFiltersSave PropertyFilters
}

// InstanceContext is inherited configuration shared by all instances in a
// snapshot subtree. It is immutable once constructed and shared by pointer.
type InstanceContext struct {
	// PathIgnoreRules are rules excluding paths from forward snapshotting.
	PathIgnoreRules []*PathIgnoreRule
	// Syncback carries syncback rules.
	Syncback SyncbackRules
}

// NewInstanceContext creates a context with default rules and filters.
func NewInstanceContext() *InstanceContext {
	return &InstanceContext{
		Syncback: SyncbackRules{
			PropertyFiltersDiff: DefaultFiltersDiff(),
			PropertyFiltersSave: DefaultFiltersSave(),
		},
	}
}

// ShouldSnapshotPath returns true if the path passes all ignore rules.
func (c *InstanceContext) ShouldSnapshotPath(path string) bool {
	for _, rule := range c.PathIgnoreRules {
		if !rule.Passes(path) {
			return false
		}
	}
	return true
}

// ShouldSyncbackPath returns true if syncback is allowed to touch the path.
func (c *InstanceContext) ShouldSyncbackPath(path string) bool {
	for _, pattern := range c.Syncback.IgnorePaths {
		if match, _ := doublestar.Match(pattern, path); match {
			return false
		}
		if !strings.ContainsRune(pattern, '/') {
			if match, _ := doublestar.Match(pattern, pathpkg.Base(path)); match {
				return false
			}
		}
	}
	return true
}

// MiddlewareContext is opaque per-middleware state carried across syncback.
// Each middleware downcasts it via a type assertion; a mismatch indicates a
// programming error.
type MiddlewareContext interface {
	IsMiddlewareContext()
}

// InstanceMetadata is provenance attached to each instance in an enriched
// tree.
type InstanceMetadata struct {
	// IgnoreUnknownInstances indicates whether unexpected children should be
	// preserved rather than removed.
	IgnoreUnknownInstances bool
	// InstigatingSource identifies what brought the instance into being. A
	// nil value means the instance has no filesystem origin of its own.
	InstigatingSource *InstigatingSource
	// RelevantPaths are paths whose modification should invalidate the
	// instance. It always includes the instigating path.
	RelevantPaths []string
	// MiddlewareID selects the handler responsible for the instance. An
	// empty value means no handler has claimed it.
	MiddlewareID string
	// MiddlewareContext is opaque per-middleware state.
	MiddlewareContext MiddlewareContext
	// FsSnapshot is the set of files and directories the instance currently
	// owns on disk.
	FsSnapshot *FsSnapshot
	// Context is inherited configuration.
	Context *InstanceContext
}

// NewMetadata creates metadata with a default context and no provenance.
func NewMetadata() *InstanceMetadata {
	return &InstanceMetadata{Context: NewInstanceContext()}
}

// Clone creates a shallow copy of the metadata. The context is shared; path
// slices are copied so that the clone can be mutated independently.
func (m *InstanceMetadata) Clone() *InstanceMetadata {
	result := *m
	result.RelevantPaths = append([]string(nil), m.RelevantPaths...)
	return &result
}

// SnapshotSourcePath returns the path that a re-snapshot of the instance
// should read. For project-node sources it returns empty unless
// allowProject is true, in which case it returns the project file's path.
func (m *InstanceMetadata) SnapshotSourcePath(allowProject bool) string {
	if m.InstigatingSource == nil {
		return ""
	}
	if m.InstigatingSource.IsPath() {
		return m.InstigatingSource.Path()
	}
	if allowProject {
		return m.InstigatingSource.Path()
	}
	return ""
}
