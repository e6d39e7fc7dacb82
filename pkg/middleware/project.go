package middleware

import (
	"encoding/json"
	pathpkg "path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// projectNode is one node of a project file's tree. Keys beginning with a
// dollar sign configure the node; all other keys are child nodes.
type projectNode struct {
	ClassName              string
	Path                   string
	Properties             map[string]interface{}
	IgnoreUnknownInstances *bool
	Children               map[string]*projectNode
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON, splitting
// configuration keys from child nodes.
func (n *projectNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Children = make(map[string]*projectNode)
	for key, value := range raw {
		switch key {
		case "$className":
			if err := json.Unmarshal(value, &n.ClassName); err != nil {
				return err
			}
		case "$path":
			if err := json.Unmarshal(value, &n.Path); err != nil {
				return err
			}
		case "$properties":
			if err := json.Unmarshal(value, &n.Properties); err != nil {
				return err
			}
		case "$ignoreUnknownInstances":
			if err := json.Unmarshal(value, &n.IgnoreUnknownInstances); err != nil {
				return err
			}
		default:
			if strings.HasPrefix(key, "$") {
				return errors.Errorf("unknown project field %s", key)
			}
			child := &projectNode{}
			if err := json.Unmarshal(value, child); err != nil {
				return err
			}
			n.Children[key] = child
		}
	}
	return nil
}

// projectFile is the parsed form of a project file.
type projectFile struct {
	Name string       `json:"name"`
	Tree *projectNode `json:"tree"`
}

// projectMiddleware maps project files to instance subtrees. A project
// file's contents are hand-authored: the file itself is the unit of
// syncback, and only its path-referenced children are written back.
type projectMiddleware struct{}

// ID implements snapshot.Middleware.ID.
func (m *projectMiddleware) ID() string {
	return "project"
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *projectMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *projectMiddleware) DefaultGlobs() []string {
	return []string{"**/*.project.json"}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *projectMiddleware) InitNames() []string {
	return []string{"init.project.json"}
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *projectMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	standardized, err := hujson.Standardize(contents)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed project file: %s", path)
	}
	var project projectFile
	if err := json.Unmarshal(standardized, &project); err != nil {
		return nil, errors.Wrapf(err, "malformed project file: %s", path)
	}
	if project.Tree == nil {
		return nil, errors.Errorf("project file has no tree: %s", path)
	}

	name := project.Name
	if name == "" {
		name = stem(path, "project.json")
	}

	snap, err := snapshotProjectNode(context, v, path, name, project.Tree)
	if err != nil {
		return nil, err
	}

	snap.Name = name
	snap.Metadata.MiddlewareID = m.ID()
	snap.Metadata.InstigatingSource = snapshot.PathSource(path)
	snap.Metadata.RelevantPaths = append(snap.Metadata.RelevantPaths, path)

	owned := snapshot.NewFsSnapshot().WithAddedFile(path, contents)
	if snap.Metadata.FsSnapshot != nil {
		merged, err := snap.Metadata.FsSnapshot.Merge(owned)
		if err != nil {
			return nil, err
		}
		owned = merged
	}
	snap.Metadata.FsSnapshot = owned
	return snap, nil
}

// collectProjectChildren walks the changed children beneath a
// project-managed node. Children with filesystem sources of their own are
// planned for syncback; pure project nodes are descended through, since
// their own descendants may still be path-referenced. Additions and
// removals beneath a project file require hand edits and are logged.
func collectProjectChildren(ctx *snapshot.SyncbackContext, oldRef instance.Ref) ([]*snapshot.SyncbackNode, error) {
	var children []*snapshot.SyncbackNode

	delta, err := ctx.Diff.GetChildren(ctx.OldTree.Inner(), ctx.NewDom, oldRef)
	if err != nil {
		return nil, errors.Wrap(err, "diff failed")
	}

	for _, addedRef := range delta.Added {
		ctx.Logger.Infof(
			"instance %s was added under a project file and must be added to the project by hand",
			ctx.NewDom.Get(addedRef).Name)
	}
	for _, removedRef := range delta.Removed {
		ctx.Logger.Infof(
			"instance %s was removed under a project file and must be removed from the project by hand",
			ctx.OldTree.GetInstance(removedRef).Name)
	}

	for _, changedRef := range delta.Changed {
		newChildRef, ok := ctx.Diff.GetMatchingNewRef(changedRef)
		if !ok {
			return nil, errors.New("missing ref")
		}
		plan, err := snapshot.PlanFromUpdate(ctx.OldTree, changedRef, ctx.NewDom, newChildRef)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			// A pure project node: descend, since path-referenced content
			// may live further down.
			deeper, err := collectProjectChildren(ctx, changedRef)
			if err != nil {
				return nil, err
			}
			children = append(children, deeper...)
			continue
		}
		node, err := plan.Syncback(ctx.Vfs, ctx.Diff, ctx.Logger, nil)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}

	return children, nil
}

// snapshotProjectNode builds the snapshot for one project node.
func snapshotProjectNode(context *snapshot.InstanceContext, v vfs.Vfs, projectPath, nodeName string, node *projectNode) (*snapshot.InstanceSnapshot, error) {
	var snap *snapshot.InstanceSnapshot

	if node.Path != "" {
		resolved := pathpkg.Join(pathpkg.Dir(projectPath), node.Path)
		target, err := SnapshotFromVfs(context, v, resolved)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to snapshot project path %s", resolved)
		}
		if target == nil {
			return nil, errors.Errorf("no middleware claims project path %s", resolved)
		}
		snap = target
	} else {
		if node.ClassName == "" {
			return nil, errors.Errorf("project node %s has neither $className nor $path", nodeName)
		}
		snap = snapshot.NewInstanceSnapshot()
		snap.ClassName = node.ClassName
		snap.Metadata.Context = context
		snap.Metadata.InstigatingSource = snapshot.ProjectNodeSource(projectPath, nodeName)
		snap.Metadata.RelevantPaths = []string{projectPath}
	}

	snap.Name = nodeName
	if node.ClassName != "" && node.Path != "" {
		snap.ClassName = node.ClassName
	}
	for name, raw := range node.Properties {
		value, err := instance.ValueFromJSON(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid property %s in project node %s", name, nodeName)
		}
		snap.Properties[name] = value
	}
	if node.IgnoreUnknownInstances != nil {
		snap.Metadata.IgnoreUnknownInstances = *node.IgnoreUnknownInstances
	}

	// Child order in a project file is not semantically meaningful, but
	// deterministic traversal requires a stable order.
	names := make([]string, 0, len(node.Children))
	for name := range node.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child, err := snapshotProjectNode(context, v, projectPath, name, node.Children[name])
		if err != nil {
			return nil, err
		}
		snap.Children = append(snap.Children, child)
	}

	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *projectMiddleware) SyncbackSerializesChildren() bool {
	return true
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority.
// Project files are never created by syncback.
func (m *projectMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	return 0, false
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *projectMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, "project.json")
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback. The project file
// itself is left untouched; changed children with filesystem sources of
// their own are written back, while structural changes to project-managed
// nodes are logged and skipped.
func (m *projectMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	if !ctx.HasOld {
		return nil, errors.New("project files cannot be created during syncback")
	}

	newInst := ctx.NewDom.Get(ctx.NewRef)
	if newInst == nil {
		return nil, errors.New("missing ref")
	}

	metadata := ctx.Metadata.Clone()
	metadata.MiddlewareID = m.ID()
	metadata.InstigatingSource = snapshot.PathSource(ctx.Path)
	if len(metadata.RelevantPaths) == 0 {
		metadata.RelevantPaths = []string{ctx.Path}
	}

	// When invoked as a directory's init middleware, the metadata starts
	// fresh and the project file's current ownership has to be recorded so
	// that reconciliation leaves the file alone.
	if metadata.FsSnapshot == nil {
		if contents, err := ctx.Vfs.Read(ctx.Path); err == nil {
			metadata.FsSnapshot = snapshot.NewFsSnapshot().WithAddedFile(ctx.Path, contents)
		}
	}

	snap := &snapshot.InstanceSnapshot{
		ClassName:  newInst.Class,
		Name:       newInst.Name,
		Properties: newInst.Properties.Clone(),
		Metadata:   metadata,
	}

	return &snapshot.SyncbackNode{
		OldRef:           ctx.OldRef,
		NewRef:           ctx.NewRef,
		Path:             ctx.Path,
		InstanceSnapshot: snap,
		GetChildren: func(childCtx *snapshot.SyncbackContext) ([]*snapshot.SyncbackNode, []instance.Ref, error) {
			children, err := collectProjectChildren(childCtx, childCtx.OldRef)
			if err != nil {
				return nil, nil, err
			}
			return children, nil, nil
		},
	}, nil
}
