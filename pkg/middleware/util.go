package middleware

import (
	pathpkg "path"
	"strings"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// stem strips a middleware extension from a file's base name.
func stem(path, extension string) string {
	name := pathpkg.Base(path)
	return strings.TrimSuffix(name, "."+extension)
}

// metaPathFor computes the sibling meta file path for a leaf file.
func metaPathFor(path, extension string) string {
	return pathpkg.Join(pathpkg.Dir(path), stem(path, extension)+".meta.json")
}

// leafMetadata builds metadata for a leaf file snapshot: a path instigating
// source, relevant paths covering the file and its sibling meta file, the
// claiming middleware's identifier, and the on-disk ownership record.
func leafMetadata(context *snapshot.InstanceContext, middlewareID, path, extension string, contents []byte) *snapshot.InstanceMetadata {
	metadata := snapshot.NewMetadata()
	metadata.Context = context
	metadata.MiddlewareID = middlewareID
	metadata.InstigatingSource = snapshot.PathSource(path)
	metadata.RelevantPaths = []string{path, metaPathFor(path, extension)}
	metadata.FsSnapshot = snapshot.NewFsSnapshot().WithAddedFile(path, contents)
	return metadata
}

// applyAdjacentMeta overlays a sibling meta file onto a leaf snapshot, if
// one exists, and records the meta file in the snapshot's on-disk
// ownership.
func applyAdjacentMeta(v vfs.Vfs, path, extension string, snap *snapshot.InstanceSnapshot) error {
	metaPath := metaPathFor(path, extension)
	contents, err := v.Read(metaPath)
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil
		}
		return err
	}
	meta, err := MetadataFileFromSlice(contents, metaPath)
	if err != nil {
		return err
	}
	if snap.Metadata.FsSnapshot != nil {
		snap.Metadata.FsSnapshot.WithAddedFile(metaPath, contents)
	}
	return meta.Apply(snap)
}

// noOpLeafMetadata builds the metadata returned by a no-op leaf syncback.
// It starts from the context's metadata, which for a standalone node is the
// old node's metadata and already complete. When the leaf is invoked as a
// directory's init middleware, the context metadata starts fresh, so the
// identifying fields and the file's current disk ownership are filled in;
// without them the enclosing directory would drop the init file.
func noOpLeafMetadata(ctx *snapshot.SyncbackContext, middlewareID, extension string) *snapshot.InstanceMetadata {
	metadata := ctx.Metadata.Clone()
	if metadata.MiddlewareID == "" {
		metadata.MiddlewareID = middlewareID
	}
	if metadata.InstigatingSource == nil {
		metadata.InstigatingSource = snapshot.PathSource(ctx.Path)
		metadata.RelevantPaths = []string{ctx.Path, metaPathFor(ctx.Path, extension)}
	}
	if metadata.FsSnapshot == nil {
		if contents, err := ctx.Vfs.Read(ctx.Path); err == nil {
			metadata.FsSnapshot = snapshot.NewFsSnapshot().WithAddedFile(ctx.Path, contents)
		}
	}
	return metadata
}

// cloneAndFilter copies the subtree rooted at the specified instance into a
// fresh container, excluding properties matched by the filter map. The
// parent mapping is seeded only with the root, and children are inserted as
// their parent is visited. It returns the container and the copied root.
func cloneAndFilter(src *instance.Dom, root instance.Ref, filters snapshot.PropertyFilters) (*instance.Dom, instance.Ref) {
	dom := instance.NewDom("DataModel", "")

	parents := map[instance.Ref]instance.Ref{root: dom.Root()}
	queue := []instance.Ref{root}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		inst := src.Get(ref)
		properties := make(instance.Properties, len(inst.Properties))
		for name, value := range inst.Properties {
			if filters.Ignores(name) {
				continue
			}
			properties[name] = value
		}

		inserted := dom.Insert(parents[ref], inst.Class, inst.Name, properties)
		for _, child := range inst.Children() {
			parents[child] = inserted
		}
		queue = append(queue, inst.Children()...)
	}

	return dom, dom.Get(dom.Root()).Children()[0]
}
