package middleware

import (
	pathpkg "path"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// DirectoryContext is the directory middleware's private state: the init
// file choice recorded at snapshot time and carried across syncback.
type DirectoryContext struct {
	// InitMiddleware is the identifier of the middleware that claimed the
	// directory's init file, or empty.
	InitMiddleware string
	// InitContext is the init middleware's own context.
	InitContext snapshot.MiddlewareContext
	// InitPath is the init file's path.
	InitPath string
}

func (c *DirectoryContext) IsMiddlewareContext() {}

// directoryMiddleware maps directories to instances. A directory is a
// Folder by default, or inherits the class produced by one of its init
// files.
type directoryMiddleware struct{}

// ID implements snapshot.Middleware.ID.
func (m *directoryMiddleware) ID() string {
	return "directory"
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *directoryMiddleware) MatchOnlyDirectories() bool {
	return true
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *directoryMiddleware) DefaultGlobs() []string {
	return []string{"**/"}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *directoryMiddleware) InitNames() []string {
	return nil
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *directoryMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	snap, err := snapshotDirNoMeta(context, v, path)
	if err != nil || snap == nil {
		return snap, err
	}

	if meta, err := dirMeta(v, path); err != nil {
		return nil, err
	} else if meta != nil {
		if err := meta.Apply(snap); err != nil {
			return nil, err
		}
	}

	snap.Metadata.MiddlewareID = m.ID()
	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren. Directory children are
// reconciled by the directory's own child closure; reporting true also keeps
// the directory middleware out of init-file selection.
func (m *directoryMiddleware) SyncbackSerializesChildren() bool {
	return true
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority.
func (m *directoryMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	if inst.Class == "Folder" {
		if considerDescendants {
			return snapshot.PriorityManyReadable, true
		}
		return snapshot.PriorityDirectoryCheckFallback, true
	}
	return snapshot.PriorityModelDirectory, true
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *directoryMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	if !snapshot.IsValidFileName(name) {
		return "", errors.Errorf("name %q is not legal to write to the file system", name)
	}
	return pathpkg.Join(parentPath, name), nil
}

// Syncback implements snapshot.Middleware.Syncback.
func (m *directoryMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	if ctx.HasOld {
		return syncbackDirUpdate(ctx)
	}
	return syncbackDirNew(ctx)
}

// directoryRelevantPaths computes the relevant paths of a directory: the
// directory itself, its meta file, and every registered init name.
func directoryRelevantPaths(path string) []string {
	paths := []string{path, pathpkg.Join(path, "init.meta.json")}
	for _, init := range snapshot.InitNames() {
		paths = append(paths, pathpkg.Join(path, init.Name))
	}
	return paths
}

// syncbackDirUpdate reconciles a directory that already exists in the old
// tree against its new counterpart.
func syncbackDirUpdate(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	path := ctx.Path

	newInst := ctx.NewDom.Get(ctx.NewRef)
	if newInst == nil {
		return nil, errors.New("missing ref")
	}

	var dirContext *DirectoryContext
	if ctx.OldMiddlewareContext != nil {
		typed, ok := ctx.OldMiddlewareContext.(*DirectoryContext)
		if !ok {
			return nil, errors.New("middleware context was of wrong type")
		}
		dirContext = typed
	}

	metadata := ctx.Metadata.Clone()
	metadata.MiddlewareID = "directory"
	metadata.InstigatingSource = snapshot.PathSource(path)
	metadata.RelevantPaths = directoryRelevantPaths(path)
	metadata.MiddlewareContext = nil

	fs := snapshot.NewFsSnapshot().WithDir(path)

	// Decide the init middleware for the new content, preferring the old
	// choice. The chosen middleware must not serialize children, or the
	// directory would lose the ability to contain siblings.
	oldInitMiddleware := ""
	oldInitPath := ""
	if dirContext != nil {
		oldInitMiddleware = dirContext.InitMiddleware
		oldInitPath = dirContext.InitPath
	}
	if oldInitMiddleware != "" && oldInitPath == "" {
		return nil, errors.New("missing path for existing init middleware")
	}

	// A directory already anchored by a project init keeps it: project files
	// are hand-authored, so the choice is forced rather than re-selected.
	var initMiddleware string
	if oldInitMiddleware == "project" {
		initMiddleware = "project"
	} else {
		initMiddleware = snapshot.BestSyncbackMiddlewareNoChildSerialization(ctx.NewDom, newInst, false, oldInitMiddleware)
	}

	var initChildren snapshot.ChildrenFunc
	if initMiddleware != "" {
		initPath := oldInitPath
		initHasOld := oldInitMiddleware != "" && oldInitPath != ""
		if !initHasOld {
			computed, err := snapshot.Get(initMiddleware).SyncbackNewPath(path, "init", newInst)
			if err != nil {
				return nil, err
			}
			initPath = computed
		}

		initMetadata := snapshot.NewMetadata()
		initMetadata.Context = metadata.Context
		initCtx := &snapshot.SyncbackContext{
			Vfs:      ctx.Vfs,
			Diff:     ctx.Diff,
			Path:     initPath,
			NewDom:   ctx.NewDom,
			NewRef:   ctx.NewRef,
			Metadata: initMetadata,
			Logger:   ctx.Logger,
		}
		if initHasOld {
			initCtx.HasOld = true
			initCtx.OldTree = ctx.OldTree
			initCtx.OldRef = ctx.OldRef
			if dirContext != nil {
				initCtx.OldMiddlewareContext = dirContext.InitContext
			}
		}

		initNode, err := snapshot.Get(initMiddleware).Syncback(initCtx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create instance on filesystem")
		}

		metadata.MiddlewareContext = &DirectoryContext{
			InitMiddleware: initNode.InstanceSnapshot.Metadata.MiddlewareID,
			InitContext:    initNode.InstanceSnapshot.Metadata.MiddlewareContext,
			InitPath:       initNode.InstanceSnapshot.Metadata.SnapshotSourcePath(true),
		}
		initChildren = initNode.GetChildren

		if sub := initNode.InstanceSnapshot.Metadata.FsSnapshot; sub != nil {
			merged, err := fs.Merge(sub)
			if err != nil {
				return nil, err
			}
			fs = merged
		}
	} else {
		meta, err := reconcileMetaFile(
			ctx.Vfs,
			pathpkg.Join(path, "init.meta.json"),
			newInst,
			nil,
			ctx.Overrides.KnownClassOr("Folder"),
			metadata.Context.Syncback.PropertyFiltersSave,
		)
		if err != nil {
			return nil, err
		}
		fs = fs.WithFileContentsOpt(pathpkg.Join(path, "init.meta.json"), meta)

		// The old init file no longer matches the new content. Its removal
		// normally falls out of reconciliation, but when ignore rules
		// exclude the removal the file is left in place as-is.
		if oldInitPath != "" && !metadata.Context.ShouldSyncbackPath(oldInitPath) {
			if contents, err := ctx.Vfs.Read(oldInitPath); err == nil {
				fs = fs.WithAddedFile(oldInitPath, contents)
				ctx.Logger.Infof("leaving %s in place because it is excluded by syncback ignore path rules", oldInitPath)
			}
		}
	}

	metadata.FsSnapshot = fs

	snap := &snapshot.InstanceSnapshot{
		ClassName:  newInst.Class,
		Name:       newInst.Name,
		Properties: newInst.Properties.Clone(),
		Metadata:   metadata,
	}

	return &snapshot.SyncbackNode{
		OldRef:           ctx.OldRef,
		NewRef:           ctx.NewRef,
		Path:             path,
		InstanceSnapshot: snap,
		GetChildren: func(childCtx *snapshot.SyncbackContext) ([]*snapshot.SyncbackNode, []instance.Ref, error) {
			var children []*snapshot.SyncbackNode
			var removed []instance.Ref

			if initChildren != nil {
				initKids, initRemoved, err := initChildren(childCtx)
				if err != nil {
					return nil, nil, err
				}
				children = append(children, initKids...)
				removed = append(removed, initRemoved...)
			}

			if initMiddleware != "project" {
				delta, err := childCtx.Diff.GetChildren(childCtx.OldTree.Inner(), childCtx.NewDom, childCtx.OldRef)
				if err != nil {
					return nil, nil, errors.Wrap(err, "diff failed")
				}

				for _, addedRef := range delta.Added {
					plan, err := snapshot.PlanFromNew(path, childCtx.NewDom, addedRef, metadata.Context)
					if err != nil {
						return nil, nil, err
					}
					if plan == nil {
						childCtx.Logger.Infof("no middleware claims new instance %s; skipping", childCtx.NewDom.Get(addedRef).Name)
						continue
					}
					node, err := plan.Syncback(childCtx.Vfs, childCtx.Diff, childCtx.Logger, nil)
					if err != nil {
						return nil, nil, err
					}
					children = append(children, node)
				}

				for _, changedRef := range delta.Changed {
					newChildRef, ok := childCtx.Diff.GetMatchingNewRef(changedRef)
					if !ok {
						return nil, nil, errors.New("missing ref")
					}
					childMetadata := childCtx.OldTree.GetMetadata(changedRef)
					if childMetadata == nil || childMetadata.SnapshotSourcePath(false) == "" {
						childCtx.Logger.Tracef(
							"skipping %s as directory child because it is sourced from a project",
							childCtx.NewDom.Get(newChildRef).Name)
						continue
					}

					plan, err := snapshot.PlanFromUpdate(childCtx.OldTree, changedRef, childCtx.NewDom, newChildRef)
					if err != nil {
						return nil, nil, err
					}
					if plan == nil {
						continue
					}
					node, err := plan.Syncback(childCtx.Vfs, childCtx.Diff, childCtx.Logger, nil)
					if err != nil {
						return nil, nil, err
					}
					children = append(children, node)
				}

				removed = append(removed, delta.Removed...)
			}

			return children, removed, nil
		},
	}, nil
}

// syncbackDirNew creates a directory for an instance with no old
// counterpart.
func syncbackDirNew(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	path := ctx.Path

	newInst := ctx.NewDom.Get(ctx.NewRef)
	if newInst == nil {
		return nil, errors.New("missing ref")
	}

	metadata := ctx.Metadata.Clone()
	metadata.MiddlewareID = "directory"
	metadata.InstigatingSource = snapshot.PathSource(path)
	metadata.RelevantPaths = directoryRelevantPaths(path)
	metadata.MiddlewareContext = nil

	fs := snapshot.NewFsSnapshot().WithDir(path)

	initMiddleware := snapshot.BestSyncbackMiddlewareNoChildSerialization(ctx.NewDom, newInst, false, "")

	var initChildren snapshot.ChildrenFunc
	if initMiddleware != "" {
		initPath, err := snapshot.Get(initMiddleware).SyncbackNewPath(path, "init", newInst)
		if err != nil {
			return nil, err
		}

		initMetadata := snapshot.NewMetadata()
		initMetadata.Context = metadata.Context
		initNode, err := snapshot.Get(initMiddleware).Syncback(&snapshot.SyncbackContext{
			Vfs:      ctx.Vfs,
			Diff:     ctx.Diff,
			Path:     initPath,
			NewDom:   ctx.NewDom,
			NewRef:   ctx.NewRef,
			Metadata: initMetadata,
			Logger:   ctx.Logger,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create instance on filesystem")
		}

		metadata.MiddlewareContext = &DirectoryContext{
			InitMiddleware: initNode.InstanceSnapshot.Metadata.MiddlewareID,
			InitContext:    initNode.InstanceSnapshot.Metadata.MiddlewareContext,
			InitPath:       initNode.InstanceSnapshot.Metadata.SnapshotSourcePath(true),
		}
		initChildren = initNode.GetChildren

		if sub := initNode.InstanceSnapshot.Metadata.FsSnapshot; sub != nil {
			merged, err := fs.Merge(sub)
			if err != nil {
				return nil, err
			}
			fs = merged
		}
	} else {
		meta, err := reconcileMetaFile(
			ctx.Vfs,
			pathpkg.Join(path, "init.meta.json"),
			newInst,
			nil,
			ctx.Overrides.KnownClassOr("Folder"),
			metadata.Context.Syncback.PropertyFiltersSave,
		)
		if err != nil {
			return nil, err
		}
		fs = fs.WithFileContentsOpt(pathpkg.Join(path, "init.meta.json"), meta)
	}

	metadata.FsSnapshot = fs

	snap := &snapshot.InstanceSnapshot{
		ClassName:  newInst.Class,
		Name:       newInst.Name,
		Properties: newInst.Properties.Clone(),
		Metadata:   metadata,
	}

	return &snapshot.SyncbackNode{
		NewRef:           ctx.NewRef,
		Path:             path,
		InstanceSnapshot: snap,
		GetChildren: func(childCtx *snapshot.SyncbackContext) ([]*snapshot.SyncbackNode, []instance.Ref, error) {
			var children []*snapshot.SyncbackNode
			var removed []instance.Ref

			if initChildren != nil {
				initKids, initRemoved, err := initChildren(childCtx)
				if err != nil {
					return nil, nil, err
				}
				children = append(children, initKids...)
				removed = append(removed, initRemoved...)
			}

			if initMiddleware != "project" {
				for _, childRef := range childCtx.NewDom.Get(childCtx.NewRef).Children() {
					plan, err := snapshot.PlanFromNew(path, childCtx.NewDom, childRef, metadata.Context)
					if err != nil {
						return nil, nil, err
					}
					if plan == nil {
						childCtx.Logger.Infof("no middleware claims new instance %s; skipping", childCtx.NewDom.Get(childRef).Name)
						continue
					}
					node, err := plan.Syncback(childCtx.Vfs, childCtx.Diff, childCtx.Logger, nil)
					if err != nil {
						return nil, nil, err
					}
					children = append(children, node)
				}
			}

			return children, removed, nil
		},
	}, nil
}

// dirMeta retrieves the meta file that applies to a directory, if it
// exists.
func dirMeta(v vfs.Vfs, path string) (*MetadataFile, error) {
	metaPath := pathpkg.Join(path, "init.meta.json")
	contents, err := v.Read(metaPath)
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return MetadataFileFromSlice(contents, metaPath)
}

// snapshotDirNoMeta snapshots a directory without applying meta files.
// This is separate because the directory's class may change due to an init
// file before metadata should be applied.
func snapshotDirNoMeta(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	// Build the init-name lookup so that init files are not snapshotted a
	// second time as ordinary children.
	initNames := make(map[string]string)
	for _, init := range snapshot.InitNames() {
		initNames[init.Name] = init.MiddlewareID
	}

	var snapshotParent *snapshot.InstanceSnapshot
	var snapshotChildren []*snapshot.InstanceSnapshot
	skipDefaultChildren := false

	// Scan for init files in registry order; the first match wins.
scan:
	for _, middleware := range snapshot.Middlewares() {
		for _, name := range middleware.InitNames() {
			initPath := pathpkg.Join(path, name)
			if _, err := v.Metadata(initPath); err != nil {
				if vfs.IsNotExist(err) {
					continue
				}
				return nil, err
			}
			initSnapshot, err := middleware.Snapshot(context, v, initPath)
			if err != nil {
				return nil, err
			}
			if initSnapshot == nil {
				continue
			}
			if middleware.ID() == "project" {
				// The project's children are authoritative.
				skipDefaultChildren = true
				snapshotChildren = initSnapshot.Children
			}
			snapshotParent = initSnapshot
			break scan
		}
	}

	if !skipDefaultChildren {
		entries, err := v.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !context.ShouldSnapshotPath(entry.Path) {
				continue
			}
			if _, ok := initNames[entry.Name]; ok {
				continue
			}
			child, err := SnapshotFromVfs(context, v, entry.Path)
			if err != nil {
				return nil, err
			}
			if child != nil {
				snapshotChildren = append(snapshotChildren, child)
			}
		}
	}

	instanceName := pathpkg.Base(path)

	metadata := snapshot.NewMetadata()
	metadata.Context = context
	metadata.InstigatingSource = snapshot.PathSource(path)
	metadata.RelevantPaths = directoryRelevantPaths(path)
	metadata.FsSnapshot = snapshot.NewFsSnapshot().WithDir(path)
	if snapshotParent != nil && snapshotParent.Metadata.FsSnapshot != nil {
		merged, err := metadata.FsSnapshot.Merge(snapshotParent.Metadata.FsSnapshot)
		if err != nil {
			return nil, err
		}
		metadata.FsSnapshot = merged
	}

	if snapshotParent == nil {
		snap := snapshot.NewInstanceSnapshot()
		snap.ClassName = "Folder"
		snap.Name = instanceName
		snap.Children = snapshotChildren
		snap.Metadata = metadata
		return snap, nil
	}

	// An init file claimed the directory: its class and properties become
	// the directory's, and its own middleware choice is recorded so that
	// syncback can prefer it later.
	if snapshotParent.Metadata.MiddlewareID != "" {
		initSource := snapshotParent.Metadata.InstigatingSource
		if !initSource.IsPath() {
			return nil, errors.New("invalid instigating source from init snapshot")
		}
		metadata.MiddlewareContext = &DirectoryContext{
			InitMiddleware: snapshotParent.Metadata.MiddlewareID,
			InitContext:    snapshotParent.Metadata.MiddlewareContext,
			InitPath:       initSource.Path(),
		}
	}

	snapshotParent.Name = instanceName
	snapshotParent.Children = snapshotChildren
	snapshotParent.Metadata = metadata
	return snapshotParent, nil
}
