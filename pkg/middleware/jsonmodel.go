package middleware

import (
	"encoding/json"
	pathpkg "path"
	"sort"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// jsonModelNode is the JSON shape of one instance in a model file.
type jsonModelNode struct {
	Name       string                 `json:"name,omitempty"`
	ClassName  string                 `json:"className"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Children   []jsonModelNode        `json:"children,omitempty"`
}

// jsonModelMiddleware maps *.model.json files to instance subtrees.
type jsonModelMiddleware struct{}

// ID implements snapshot.Middleware.ID.
func (m *jsonModelMiddleware) ID() string {
	return "json_model"
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *jsonModelMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *jsonModelMiddleware) DefaultGlobs() []string {
	return []string{"**/*.model.json"}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *jsonModelMiddleware) InitNames() []string {
	return nil
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *jsonModelMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	standardized, err := hujson.Standardize(contents)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed json model file: %s", path)
	}
	var root jsonModelNode
	if err := json.Unmarshal(standardized, &root); err != nil {
		return nil, errors.Wrapf(err, "malformed json model file: %s", path)
	}

	snap, err := jsonModelToSnapshot(&root, path)
	if err != nil {
		return nil, err
	}
	snap.Name = stem(path, "model.json")
	snap.Metadata = leafMetadata(context, m.ID(), path, "model.json", contents)
	if err := applyAdjacentMeta(v, path, "model.json", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// jsonModelToSnapshot converts a decoded model node to a snapshot.
func jsonModelToSnapshot(node *jsonModelNode, path string) (*snapshot.InstanceSnapshot, error) {
	if node.ClassName == "" {
		return nil, errors.Errorf("json model node missing className in %s", path)
	}
	snap := snapshot.NewInstanceSnapshot()
	snap.ClassName = node.ClassName
	snap.Name = node.Name
	for name, raw := range node.Properties {
		value, err := instance.ValueFromJSON(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid property %s in %s", name, path)
		}
		snap.Properties[name] = value
	}
	for index := range node.Children {
		child, err := jsonModelToSnapshot(&node.Children[index], path)
		if err != nil {
			return nil, err
		}
		snap.Children = append(snap.Children, child)
	}
	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *jsonModelMiddleware) SyncbackSerializesChildren() bool {
	return true
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority. The
// JSON model format is a lower-fidelity fallback than the binary model
// format, so it never wins selection when a model codec is registered.
func (m *jsonModelMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	return snapshot.PriorityModel - 1, true
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *jsonModelMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, "model.json")
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback.
func (m *jsonModelMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	saveFilters := ctx.Metadata.Context.Syncback.PropertyFiltersSave
	filtered, filteredRoot := cloneAndFilter(ctx.NewDom, ctx.NewRef, saveFilters)

	if ctx.HasOld {
		newHashes := snapshot.HashTree(filtered, filteredRoot, nil)
		oldHashes := snapshot.HashTree(ctx.OldTree.Inner(), ctx.OldRef, nil)
		if newHashes[filteredRoot] == oldHashes[ctx.OldRef] {
			snap := snapshot.FromDom(filtered, filteredRoot)
			snap.Metadata = noOpLeafMetadata(ctx, m.ID(), "model.json")
			return &snapshot.SyncbackNode{
				OldRef:           ctx.OldRef,
				NewRef:           ctx.NewRef,
				Path:             ctx.Path,
				InstanceSnapshot: snap,
			}, nil
		}
	}

	node, err := domToJSONModel(filtered, filteredRoot)
	if err != nil {
		return nil, err
	}
	serialized, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize new json model")
	}
	serialized = append(serialized, '\n')

	metadata := snapshot.NewMetadata()
	metadata.Context = ctx.Metadata.Context
	metadata.MiddlewareID = m.ID()
	metadata.InstigatingSource = snapshot.PathSource(ctx.Path)
	metadata.RelevantPaths = []string{ctx.Path, metaPathFor(ctx.Path, "model.json")}
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

// domToJSONModel converts an instance subtree into the JSON model shape,
// with properties in sorted name order.
func domToJSONModel(dom *instance.Dom, ref instance.Ref) (*jsonModelNode, error) {
	target := dom.Get(ref)
	if target == nil {
		return nil, errors.New("missing ref")
	}

	node := &jsonModelNode{
		Name:      target.Name,
		ClassName: target.Class,
	}
	if len(target.Properties) > 0 {
		node.Properties = make(map[string]interface{}, len(target.Properties))
		names := make([]string, 0, len(target.Properties))
		for name := range target.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			node.Properties[name] = instance.ValueToJSON(target.Properties[name])
		}
	}
	for _, childRef := range target.Children() {
		child, err := domToJSONModel(dom, childRef)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, *child)
	}
	return node, nil
}
