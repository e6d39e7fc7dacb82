package snapshot

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/logging"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// SnapshotOverride carries forced choices handed down from an enclosing
// middleware during syncback.
type SnapshotOverride struct {
	// KnownClass is a class name forced by the enclosing context.
	KnownClass string
}

// KnownClassOr returns the forced class, or the fallback when no override
// is present.
func (o *SnapshotOverride) KnownClassOr(fallback string) string {
	if o == nil || o.KnownClass == "" {
		return fallback
	}
	return o.KnownClass
}

// SyncbackContext carries everything a middleware needs to perform one
// syncback step.
type SyncbackContext struct {
	// Vfs is the filesystem to reconcile against.
	Vfs vfs.Vfs
	// Diff is the correspondence between the old and new trees.
	Diff *DeepDiff
	// Path is the filesystem path under consideration.
	Path string
	// HasOld indicates whether an old counterpart exists.
	HasOld bool
	// OldTree is the enriched tree being updated, present when HasOld.
	OldTree *Tree
	// OldRef identifies the old counterpart, present when HasOld.
	OldRef instance.Ref
	// OldMiddlewareContext is the old counterpart's middleware context.
	OldMiddlewareContext MiddlewareContext
	// NewDom is the read-only new tree.
	NewDom *instance.Dom
	// NewRef identifies the instance in the new tree.
	NewRef instance.Ref
	// Metadata is the metadata of the node under consideration.
	Metadata *InstanceMetadata
	// Overrides carries forced choices, if any.
	Overrides *SnapshotOverride
	// Logger receives trace and skip diagnostics.
	Logger *logging.Logger
}

// ChildrenFunc computes the syncback children of a node after the node
// itself has been written to disk and applied to the tree. It returns the
// child nodes to process and the old identifiers to remove.
type ChildrenFunc func(ctx *SyncbackContext) ([]*SyncbackNode, []instance.Ref, error)

// SyncbackNode is the unit of work processed by the syncback driver.
type SyncbackNode struct {
	// OldRef identifies the old counterpart, or NilRef for fresh nodes.
	OldRef instance.Ref
	// NewRef identifies the node in the new tree.
	NewRef instance.Ref
	// ParentRef identifies the parent in the enriched tree. It is set by
	// the driver before processing.
	ParentRef instance.Ref
	// Path is the node's filesystem path.
	Path string
	// InstanceSnapshot is the content to apply to the enriched tree. Its
	// metadata carries the node's fs snapshot.
	InstanceSnapshot *InstanceSnapshot
	// UseSnapshotChildren indicates that the snapshot's children replace
	// the old subtree wholesale.
	UseSnapshotChildren bool
	// GetChildren computes child work items, invoked after the node has
	// been reconciled and applied. It may be nil.
	GetChildren ChildrenFunc
}

// SyncbackPlan binds a middleware to the pair of nodes it will reconcile.
type SyncbackPlan struct {
	// Middleware is the selected handler.
	Middleware Middleware
	// Path is the target filesystem path.
	Path string
	// HasOld indicates whether an old counterpart exists.
	HasOld bool
	// OldTree is the enriched tree, present when HasOld.
	OldTree *Tree
	// OldRef identifies the old counterpart, present when HasOld.
	OldRef instance.Ref
	// NewDom is the read-only new tree.
	NewDom *instance.Dom
	// NewRef identifies the instance in the new tree.
	NewRef instance.Ref
	// Context is the inherited configuration for fresh metadata.
	Context *InstanceContext
}

// PlanFromNew plans syncback of a fresh instance under the specified parent
// path. It returns nil with no error when no middleware claims the
// instance, which callers log and skip.
func PlanFromNew(parentPath string, newDom *instance.Dom, newRef instance.Ref, context *InstanceContext) (*SyncbackPlan, error) {
	inst := newDom.Get(newRef)
	if inst == nil {
		return nil, errors.New("missing ref")
	}
	id := BestSyncbackMiddleware(newDom, inst, true, "")
	if id == "" {
		return nil, nil
	}
	middleware := Get(id)
	path, err := middleware.SyncbackNewPath(parentPath, inst.Name, inst)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to compute path for new instance %s", inst.Name)
	}
	return &SyncbackPlan{
		Middleware: middleware,
		Path:       path,
		NewDom:     newDom,
		NewRef:     newRef,
		Context:    context,
	}, nil
}

// PlanFromUpdate plans syncback of an existing instance against its new
// counterpart. It returns nil with no error when the old instance has no
// middleware or no filesystem source of its own, both of which mean the
// node is managed elsewhere.
func PlanFromUpdate(oldTree *Tree, oldRef instance.Ref, newDom *instance.Dom, newRef instance.Ref) (*SyncbackPlan, error) {
	metadata := oldTree.GetMetadata(oldRef)
	if metadata == nil {
		return nil, errors.New("missing metadata for old ref")
	}
	if metadata.MiddlewareID == "" {
		return nil, nil
	}
	path := metadata.SnapshotSourcePath(false)
	if path == "" {
		return nil, nil
	}
	middleware := Get(metadata.MiddlewareID)
	if middleware == nil {
		return nil, errors.Errorf("unknown middleware %q", metadata.MiddlewareID)
	}
	return &SyncbackPlan{
		Middleware: middleware,
		Path:       path,
		HasOld:     true,
		OldTree:    oldTree,
		OldRef:     oldRef,
		NewDom:     newDom,
		NewRef:     newRef,
		Context:    metadata.Context,
	}, nil
}

// Syncback executes the plan's middleware and returns the resulting node.
func (p *SyncbackPlan) Syncback(v vfs.Vfs, diff *DeepDiff, logger *logging.Logger, overrides *SnapshotOverride) (*SyncbackNode, error) {
	ctx := &SyncbackContext{
		Vfs:       v,
		Diff:      diff,
		Path:      p.Path,
		NewDom:    p.NewDom,
		NewRef:    p.NewRef,
		Overrides: overrides,
		Logger:    logger,
	}
	if p.HasOld {
		metadata := p.OldTree.GetMetadata(p.OldRef)
		ctx.HasOld = true
		ctx.OldTree = p.OldTree
		ctx.OldRef = p.OldRef
		ctx.OldMiddlewareContext = metadata.MiddlewareContext
		ctx.Metadata = metadata
	} else {
		metadata := NewMetadata()
		metadata.Context = p.Context
		ctx.Metadata = metadata
	}
	node, err := p.Middleware.Syncback(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "syncback of %s failed", p.Path)
	}
	return node, nil
}

// Syncback reverse-synchronizes the subtree anchored at oldID against the
// new subtree anchored at newID, reconciling the filesystem through the
// provided Vfs and updating the tree in place.
func (t *Tree) Syncback(v vfs.Vfs, logger *logging.Logger, oldID instance.Ref, newDom *instance.Dom, newID instance.Ref) error {
	diff := NewDeepDiff(t.inner, oldID, newDom, newID, t.SyncbackGetFilters, nil)
	return t.SyncbackProcess(v, logger, diff, oldID, newDom)
}

// SyncbackProcess drives syncback for a precomputed diff: it climbs to the
// nearest syncable ancestor, dispatches its middleware, and then processes
// the resulting node stack, reconciling each node's filesystem snapshot and
// applying its instance snapshot before expanding children.
func (t *Tree) SyncbackProcess(v vfs.Vfs, logger *logging.Logger, diff *DeepDiff, baseTarget instance.Ref, newDom *instance.Dom) error {
	var processing []*SyncbackNode

	// Climb from the base target to the nearest ancestor that has a
	// middleware, a corresponding new ref, and a path-sourced instigating
	// source. Children of project files are sourced from project nodes and
	// are skipped upward: the enclosing project file itself is the unit of
	// syncback.
	syncable := t.GetInstance(baseTarget)
	if syncable == nil {
		return errors.New("missing ref")
	}
	var oldPath string
	for {
		metadata := t.GetMetadata(syncable.Ref())
		_, hasMatch := diff.GetMatchingNewRef(syncable.Ref())
		logger.Tracef("considering %s (middleware %q, match %v)", syncable.Name, metadata.MiddlewareID, hasMatch)
		if metadata.MiddlewareID != "" && hasMatch {
			if source := metadata.InstigatingSource; source.IsPath() {
				oldPath = source.Path()
				break
			}
		}
		syncable = t.GetInstance(syncable.Parent())
		if syncable == nil {
			return errors.New("no syncable ancestor")
		}
	}

	oldID := syncable.Ref()
	metadata := t.GetMetadata(oldID)
	newRef, _ := diff.GetMatchingNewRef(oldID)

	middleware := Get(metadata.MiddlewareID)
	if middleware == nil {
		return errors.Errorf("unknown middleware %q", metadata.MiddlewareID)
	}
	node, err := middleware.Syncback(&SyncbackContext{
		Vfs:                  v,
		Diff:                 diff,
		Path:                 oldPath,
		HasOld:               true,
		OldTree:              t,
		OldRef:               oldID,
		OldMiddlewareContext: metadata.MiddlewareContext,
		NewDom:               newDom,
		NewRef:               newRef,
		Metadata:             metadata,
		Logger:               logger,
	})
	if err != nil {
		return errors.Wrapf(err, "syncback of %s failed", oldPath)
	}
	node.ParentRef = syncable.Parent()
	processing = append(processing, node)

	for len(processing) > 0 {
		item := processing[len(processing)-1]
		processing = processing[:len(processing)-1]

		snapshot := item.InstanceSnapshot
		fsSnapshot := snapshot.Metadata.FsSnapshot

		var oldFsSnapshot *FsSnapshot
		if item.OldRef != instance.NilRef {
			if oldMetadata := t.GetMetadata(item.OldRef); oldMetadata != nil {
				oldFsSnapshot = oldMetadata.FsSnapshot
			}
		}

		// Skip nodes whose filesystem snapshot would mutate a path excluded
		// by syncback ignore rules. Paths carried over unchanged from the
		// old snapshot are not mutations. This is logged, not raised.
		if fsSnapshot != nil && snapshot.Metadata.Context != nil {
			violates := false
			for path, contents := range fsSnapshot.Files() {
				if snapshot.Metadata.Context.ShouldSyncbackPath(path) {
					continue
				}
				if oldContents, ok := oldFsSnapshot.FileContents(path); ok && bytes.Equal(oldContents, contents) {
					continue
				}
				violates = true
				break
			}
			if !violates {
				for _, path := range fsSnapshot.Dirs() {
					if snapshot.Metadata.Context.ShouldSyncbackPath(path) || oldFsSnapshot.HasDir(path) {
						continue
					}
					violates = true
					break
				}
			}
			if violates {
				logger.Infof("skipping syncback of %s because it is excluded by syncback ignore path rules", snapshot.Name)
				continue
			}
		}

		if err := Reconcile(v, oldFsSnapshot, fsSnapshot); err != nil {
			return errors.Wrapf(err, "unable to reconcile %s", item.Path)
		}

		var insertRef instance.Ref
		if item.OldRef != instance.NilRef {
			if item.UseSnapshotChildren {
				// Wholesale replacement: the snapshot's children already
				// describe the entire subtree, so no further expansion
				// happens for this node. Reinsertion happens under the old
				// instance's actual parent, which may sit deeper than the
				// node that produced this work item.
				parentRef := item.ParentRef
				if old := t.GetInstance(item.OldRef); old != nil && old.Parent() != instance.NilRef {
					parentRef = old.Parent()
				}
				t.Remove(item.OldRef)
				t.Insert(parentRef, snapshot)
				continue
			}
			t.UpdateProps(item.OldRef, snapshot)
			t.UpdateMetadata(item.OldRef, snapshot.Metadata)
			insertRef = item.OldRef
		} else {
			insertRef = t.Insert(item.ParentRef, snapshot)
		}

		if item.GetChildren == nil {
			continue
		}

		childCtx := &SyncbackContext{
			Vfs:      v,
			Diff:     diff,
			Path:     item.Path,
			NewDom:   newDom,
			NewRef:   item.NewRef,
			Metadata: t.GetMetadata(insertRef),
			Logger:   logger,
		}
		if item.OldRef != instance.NilRef {
			childCtx.HasOld = true
			childCtx.OldTree = t
			childCtx.OldRef = item.OldRef
			childCtx.OldMiddlewareContext = t.GetMetadata(insertRef).MiddlewareContext
		}

		children, removed, err := item.GetChildren(childCtx)
		if err != nil {
			return errors.Wrapf(err, "unable to compute syncback children of %s", item.Path)
		}

		for _, child := range children {
			child.ParentRef = insertRef
			processing = append(processing, child)
		}
		for _, id := range removed {
			// A removed node's on-disk footprint is deleted along with it,
			// unless syncback ignore rules exclude any of its paths.
			if metadata := t.GetMetadata(id); metadata != nil && metadata.FsSnapshot != nil {
				excluded := false
				if metadata.Context != nil {
					for _, path := range metadata.FsSnapshot.Paths() {
						if !metadata.Context.ShouldSyncbackPath(path) {
							excluded = true
							break
						}
					}
				}
				if excluded {
					logger.Infof("leaving files of removed instance %s in place because they are excluded by syncback ignore path rules", t.GetInstance(id).Name)
				} else if err := Reconcile(v, metadata.FsSnapshot, nil); err != nil {
					return errors.Wrapf(err, "unable to remove files of %s", t.GetInstance(id).Name)
				}
			}
			t.Remove(id)
		}
	}

	return nil
}
