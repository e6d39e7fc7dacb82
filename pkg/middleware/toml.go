package middleware

import (
	pathpkg "path"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// tomlMiddleware maps TOML files to data modules, mirroring the JSON data
// module behavior.
type tomlMiddleware struct{}

// ID implements snapshot.Middleware.ID.
func (m *tomlMiddleware) ID() string {
	return "toml"
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *tomlMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *tomlMiddleware) DefaultGlobs() []string {
	return []string{"**/*.toml"}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *tomlMiddleware) InitNames() []string {
	return nil
}

// Snapshot implements snapshot.Middleware.Snapshot.
func (m *tomlMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	var data map[string]interface{}
	if err := toml.Unmarshal(contents, &data); err != nil {
		return nil, errors.Wrapf(err, "malformed toml file: %s", path)
	}

	snap := dataModuleSnapshot(normalizeTomlValue(data), stem(path, "toml"))
	snap.Metadata = leafMetadata(context, m.ID(), path, "toml", contents)
	if err := applyAdjacentMeta(v, path, "toml", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// normalizeTomlValue converts TOML decoding output into the JSON-shaped
// values understood by the Luau literal writer.
func normalizeTomlValue(data interface{}) interface{} {
	switch typed := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(typed))
		for key, value := range typed {
			result[key] = normalizeTomlValue(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, 0, len(typed))
		for _, value := range typed {
			result = append(result, normalizeTomlValue(value))
		}
		return result
	case int64:
		return float64(typed)
	default:
		return typed
	}
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *tomlMiddleware) SyncbackSerializesChildren() bool {
	return false
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority.
func (m *tomlMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	return 0, false
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *tomlMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, "toml")
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback.
func (m *tomlMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	return syncbackDataModule(ctx)
}
