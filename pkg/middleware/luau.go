package middleware

import (
	pathpkg "path"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// scriptMiddleware handles one member of the script family. Each member
// maps a file extension to a script class, with the file's contents carried
// in the Source property.
type scriptMiddleware struct {
	// id is the middleware identifier.
	id string
	// class is the script class produced by the middleware.
	class string
	// extension is the full file extension, e.g. "server.luau".
	extension string
}

// ID implements snapshot.Middleware.ID.
func (m *scriptMiddleware) ID() string {
	return m.id
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *scriptMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *scriptMiddleware) DefaultGlobs() []string {
	return []string{"**/*." + m.extension}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *scriptMiddleware) InitNames() []string {
	return []string{"init." + m.extension}
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *scriptMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	snap := snapshot.NewInstanceSnapshot()
	snap.ClassName = m.class
	snap.Name = stem(path, m.extension)
	snap.Properties["Source"] = instance.String(contents)
	snap.Metadata = leafMetadata(context, m.id, path, m.extension, contents)
	if err := applyAdjacentMeta(v, path, m.extension, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *scriptMiddleware) SyncbackSerializesChildren() bool {
	return false
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority.
func (m *scriptMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	if inst.Class != m.class {
		return 0, false
	}
	return snapshot.PrioritySingleReadable, true
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *scriptMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, m.extension)
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback.
func (m *scriptMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	return syncbackLeaf(ctx, m.id, m.extension, m.class, "Source", func(inst *instance.Instance) ([]byte, error) {
		source, ok := inst.Properties["Source"].(instance.String)
		if !ok {
			return nil, errors.Errorf("script %s has no Source property", inst.Name)
		}
		return []byte(source), nil
	})
}

// syncbackLeaf implements the shared skeleton of leaf syncback: compare
// canonical hashes when an old counterpart exists and return a no-op when
// they match, otherwise serialize the instance into its file and describe
// any remaining deviations (class changes, extra properties beyond the one
// the format encodes) in a sibling meta file.
func syncbackLeaf(ctx *snapshot.SyncbackContext, middlewareID, extension, baseClass, primaryProperty string, serialize func(inst *instance.Instance) ([]byte, error)) (*snapshot.SyncbackNode, error) {
	newInst := ctx.NewDom.Get(ctx.NewRef)
	if newInst == nil {
		return nil, errors.New("missing ref")
	}

	saveFilters := ctx.Metadata.Context.Syncback.PropertyFiltersSave

	if ctx.HasOld {
		newHashes := snapshot.HashTree(ctx.NewDom, ctx.NewRef, saveFilters)
		oldHashes := snapshot.HashTree(ctx.OldTree.Inner(), ctx.OldRef, nil)
		if newHashes[ctx.NewRef] == oldHashes[ctx.OldRef] {
			snap := snapshot.FilteredFromDom(ctx.NewDom, ctx.NewRef, saveFilters)
			snap.Metadata = noOpLeafMetadata(ctx, middlewareID, extension)
			return &snapshot.SyncbackNode{
				OldRef:           ctx.OldRef,
				NewRef:           ctx.NewRef,
				Path:             ctx.Path,
				InstanceSnapshot: snap,
			}, nil
		}
	}

	serialized, err := serialize(newInst)
	if err != nil {
		return nil, err
	}

	metaPath := metaPathFor(ctx.Path, extension)
	meta, err := reconcileMetaFile(
		ctx.Vfs,
		metaPath,
		newInst,
		map[string]bool{primaryProperty: true},
		baseClass,
		saveFilters,
	)
	if err != nil {
		return nil, err
	}

	metadata := snapshot.NewMetadata()
	metadata.Context = ctx.Metadata.Context
	metadata.MiddlewareID = middlewareID
	metadata.InstigatingSource = snapshot.PathSource(ctx.Path)
	metadata.RelevantPaths = []string{ctx.Path, metaPath}
	metadata.FsSnapshot = snapshot.NewFsSnapshot().
		WithAddedFile(ctx.Path, serialized).
		WithFileContentsOpt(metaPath, meta)

	snap := snapshot.FilteredFromDom(ctx.NewDom, ctx.NewRef, saveFilters)
	snap.Children = nil
	snap.Metadata = metadata

	var oldRef instance.Ref
	if ctx.HasOld {
		oldRef = ctx.OldRef
	}

	if len(newInst.Children()) > 0 {
		ctx.Logger.Debugf("children of %s are not representable next to its file", newInst.Name)
	}

	return &snapshot.SyncbackNode{
		OldRef:           oldRef,
		NewRef:           ctx.NewRef,
		Path:             ctx.Path,
		InstanceSnapshot: snap,
	}, nil
}
