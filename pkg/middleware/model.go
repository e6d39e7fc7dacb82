package middleware

import (
	pathpkg "path"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// modelMiddleware handles model files whose contents encode an entire
// instance subtree through a registered codec. It covers both the binary
// and the XML model formats.
type modelMiddleware struct {
	// id is the middleware and codec format identifier.
	id string
	// extension is the file extension.
	extension string
}

// ID implements snapshot.Middleware.ID.
func (m *modelMiddleware) ID() string {
	return m.id
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *modelMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *modelMiddleware) DefaultGlobs() []string {
	return []string{"**/*." + m.extension}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *modelMiddleware) InitNames() []string {
	return []string{"init." + m.extension}
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *modelMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	codec := Codec(m.id)
	if codec == nil {
		return nil, errors.Errorf("no codec registered for %s", m.id)
	}

	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}
	dom, err := codec.Decode(contents)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed %s file: %s", m.id, path)
	}

	children := dom.Get(dom.Root()).Children()
	if len(children) != 1 {
		return nil, errors.Errorf(
			"only supports model files with one top-level instance; check the model file at path %s", path)
	}

	snap := snapshot.FromDom(dom, children[0])
	snap.Name = stem(path, m.extension)
	snap.Metadata = leafMetadata(context, m.id, path, m.extension, contents)
	if err := applyAdjacentMeta(v, path, m.extension, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *modelMiddleware) SyncbackSerializesChildren() bool {
	return true
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority. Model
// files can serialize any subtree, but only when their codec is available.
func (m *modelMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	if Codec(m.id) == nil {
		return 0, false
	}
	return snapshot.PriorityModel, true
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *modelMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, m.extension)
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback.
func (m *modelMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	codec := Codec(m.id)
	if codec == nil {
		return nil, errors.Errorf("no codec registered for %s", m.id)
	}

	saveFilters := ctx.Metadata.Context.Syncback.PropertyFiltersSave
	filtered, filteredRoot := cloneAndFilter(ctx.NewDom, ctx.NewRef, saveFilters)

	// When an old counterpart exists, compare canonical subtree hashes to
	// avoid rewriting files whose content is unchanged.
	if ctx.HasOld {
		ctx.Logger.Tracef("comparing %s trees to avoid extra writes", m.id)
		newHashes := snapshot.HashTree(filtered, filteredRoot, nil)
		oldHashes := snapshot.HashTree(ctx.OldTree.Inner(), ctx.OldRef, nil)
		if newHashes[filteredRoot] == oldHashes[ctx.OldRef] {
			snap := snapshot.FromDom(filtered, filteredRoot)
			snap.Metadata = noOpLeafMetadata(ctx, m.id, m.extension)
			return &snapshot.SyncbackNode{
				OldRef:           ctx.OldRef,
				NewRef:           ctx.NewRef,
				Path:             ctx.Path,
				InstanceSnapshot: snap,
			}, nil
		}
	}

	serialized, err := codec.Encode(filtered, filteredRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize new %s", m.id)
	}

	metadata := snapshot.NewMetadata()
	metadata.Context = ctx.Metadata.Context
	metadata.MiddlewareID = m.id
	metadata.InstigatingSource = snapshot.PathSource(ctx.Path)
	metadata.RelevantPaths = []string{ctx.Path, metaPathFor(ctx.Path, m.extension)}
	metadata.FsSnapshot = snapshot.NewFsSnapshot().WithAddedFile(ctx.Path, serialized)

	snap := snapshot.FromDom(filtered, filteredRoot)
	snap.Metadata = metadata

	var oldRef instance.Ref
	if ctx.HasOld {
		oldRef = ctx.OldRef
	}

	return &snapshot.SyncbackNode{
		OldRef:              oldRef,
		NewRef:              ctx.NewRef,
		Path:                ctx.Path,
		InstanceSnapshot:    snap,
		UseSnapshotChildren: ctx.HasOld,
	}, nil
}
