package middleware

import (
	"encoding/json"
	pathpkg "path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// jsonMiddleware maps plain JSON files to data modules: ModuleScript
// instances whose Source returns the decoded data as a Luau table.
type jsonMiddleware struct{}

// ID implements snapshot.Middleware.ID.
func (m *jsonMiddleware) ID() string {
	return "json"
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *jsonMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *jsonMiddleware) DefaultGlobs() []string {
	return []string{"**/*.json"}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *jsonMiddleware) InitNames() []string {
	return nil
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *jsonMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	standardized, err := hujson.Standardize(contents)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed json file: %s", path)
	}
	var data interface{}
	if err := json.Unmarshal(standardized, &data); err != nil {
		return nil, errors.Wrapf(err, "malformed json file: %s", path)
	}

	snap := dataModuleSnapshot(data, stem(path, "json"))
	snap.Metadata = leafMetadata(context, m.ID(), path, "json", contents)
	if err := applyAdjacentMeta(v, path, "json", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *jsonMiddleware) SyncbackSerializesChildren() bool {
	return false
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority. Data
// modules are filesystem-authoritative: they are never selected for fresh
// instances.
func (m *jsonMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	return 0, false
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *jsonMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, "json")
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback. Data modules cannot be
// regenerated from their derived Source, so unchanged nodes are no-ops and
// changed nodes are left as they are on disk, with the skip logged.
func (m *jsonMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	return syncbackDataModule(ctx)
}

// syncbackDataModule implements the shared data-module syncback behavior.
func syncbackDataModule(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	if !ctx.HasOld {
		return nil, errors.New("data modules cannot be created during syncback")
	}

	newHashes := snapshot.HashTree(ctx.NewDom, ctx.NewRef, ctx.Metadata.Context.Syncback.PropertyFiltersSave)
	oldHashes := snapshot.HashTree(ctx.OldTree.Inner(), ctx.OldRef, nil)
	if newHashes[ctx.NewRef] != oldHashes[ctx.OldRef] {
		newInst := ctx.NewDom.Get(ctx.NewRef)
		ctx.Logger.Infof("changes to data module %s cannot be written back to its source file and were skipped", newInst.Name)
	}

	// Keep the old tree's content and disk ownership untouched.
	snap := snapshot.FromDom(ctx.OldTree.Inner(), ctx.OldRef)
	snap.Children = nil
	snap.Metadata = ctx.Metadata.Clone()
	return &snapshot.SyncbackNode{
		OldRef:           ctx.OldRef,
		NewRef:           ctx.NewRef,
		Path:             ctx.Path,
		InstanceSnapshot: snap,
	}, nil
}

// dataModuleSnapshot builds a ModuleScript snapshot whose Source returns
// the provided data as a Luau literal.
func dataModuleSnapshot(data interface{}, name string) *snapshot.InstanceSnapshot {
	builder := &strings.Builder{}
	builder.WriteString("return ")
	writeLuauLiteral(builder, data, 0)
	builder.WriteString("\n")

	snap := snapshot.NewInstanceSnapshot()
	snap.ClassName = "ModuleScript"
	snap.Name = name
	snap.Properties["Source"] = instance.String(builder.String())
	return snap
}

// writeLuauLiteral renders decoded JSON-shaped data as a Luau literal.
func writeLuauLiteral(builder *strings.Builder, data interface{}, depth int) {
	indent := strings.Repeat("\t", depth)
	switch typed := data.(type) {
	case nil:
		builder.WriteString("nil")
	case bool:
		builder.WriteString(strconv.FormatBool(typed))
	case float64:
		builder.WriteString(strconv.FormatFloat(typed, 'g', -1, 64))
	case string:
		builder.WriteString(strconv.Quote(typed))
	case []interface{}:
		builder.WriteString("{\n")
		for _, element := range typed {
			builder.WriteString(indent + "\t")
			writeLuauLiteral(builder, element, depth+1)
			builder.WriteString(",\n")
		}
		builder.WriteString(indent + "}")
	case map[string]interface{}:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		builder.WriteString("{\n")
		for _, key := range keys {
			builder.WriteString(indent + "\t[" + strconv.Quote(key) + "] = ")
			writeLuauLiteral(builder, typed[key], depth+1)
			builder.WriteString(",\n")
		}
		builder.WriteString(indent + "}")
	default:
		builder.WriteString("nil")
	}
}
