package middleware

import (
	pathpkg "path"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// textMiddleware maps plain text files to StringValue instances.
type textMiddleware struct{}

// ID implements snapshot.Middleware.ID.
func (m *textMiddleware) ID() string {
	return "text"
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *textMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *textMiddleware) DefaultGlobs() []string {
	return []string{"**/*.txt"}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *textMiddleware) InitNames() []string {
	return nil
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *textMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	snap := snapshot.NewInstanceSnapshot()
	snap.ClassName = "StringValue"
	snap.Name = stem(path, "txt")
	snap.Properties["Value"] = instance.String(contents)
	snap.Metadata = leafMetadata(context, m.ID(), path, "txt", contents)
	if err := applyAdjacentMeta(v, path, "txt", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *textMiddleware) SyncbackSerializesChildren() bool {
	return false
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority.
func (m *textMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	if inst.Class != "StringValue" {
		return 0, false
	}
	return snapshot.PrioritySingleReadable, true
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *textMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, "txt")
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback.
func (m *textMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	return syncbackLeaf(ctx, m.ID(), "txt", "StringValue", "Value", func(inst *instance.Instance) ([]byte, error) {
		value, ok := inst.Properties["Value"].(instance.String)
		if !ok {
			return nil, errors.Errorf("string value %s has no Value property", inst.Name)
		}
		return []byte(value), nil
	})
}
