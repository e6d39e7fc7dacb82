package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// containsPath reports whether the path list contains the target.
func containsPath(paths []string, target string) bool {
	for _, path := range paths {
		if path == target {
			return true
		}
	}
	return false
}

// TestDirectoryEmptyFolder tests snapshotting an empty directory.
func TestDirectoryEmptyFolder(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/foo"))

	snap, err := snapshot.Get("directory").Snapshot(snapshot.NewInstanceContext(), m, "/foo")
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Equal(t, "foo", snap.Name)
	require.Equal(t, "Folder", snap.ClassName)
	require.Empty(t, snap.Children)
	require.Equal(t, "directory", snap.Metadata.MiddlewareID)
	require.True(t, containsPath(snap.Metadata.RelevantPaths, "/foo"))
	require.True(t, containsPath(snap.Metadata.RelevantPaths, "/foo/init.meta.json"))
}

// TestDirectoryFolderInFolder tests snapshotting a nested directory.
func TestDirectoryFolderInFolder(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/foo/Child"))

	snap, err := snapshot.Get("directory").Snapshot(snapshot.NewInstanceContext(), m, "/foo")
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Equal(t, "Folder", snap.ClassName)
	require.Len(t, snap.Children, 1)
	require.Equal(t, "Child", snap.Children[0].Name)
	require.Equal(t, "Folder", snap.Children[0].ClassName)
}

// TestDirectoryInitPromotion tests that an init script promotes the
// directory's class and records the init choice.
func TestDirectoryInitPromotion(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/foo"))
	require.NoError(t, m.Write("/foo/init.server.luau", []byte("print(\"hi\")")))
	require.NoError(t, m.Write("/foo/helper.luau", []byte("return {}")))

	snap, err := snapshot.Get("directory").Snapshot(snapshot.NewInstanceContext(), m, "/foo")
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Equal(t, "Script", snap.ClassName)
	require.Equal(t, "foo", snap.Name)
	require.Len(t, snap.Children, 1)
	require.Equal(t, "helper", snap.Children[0].Name)
	require.Equal(t, "ModuleScript", snap.Children[0].ClassName)

	dirContext, ok := snap.Metadata.MiddlewareContext.(*DirectoryContext)
	require.True(t, ok, "directory context not recorded")
	require.Equal(t, "luau_server", dirContext.InitMiddleware)
	require.Equal(t, "/foo/init.server.luau", dirContext.InitPath)
}

// TestDirectoryMetaOverlay tests init.meta.json class and property
// overrides.
func TestDirectoryMetaOverlay(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/foo"))
	require.NoError(t, m.Write("/foo/init.meta.json", []byte(`{
		// Comments are tolerated.
		"className": "Model",
		"properties": {"Tag": "keep"}
	}`)))

	snap, err := snapshot.Get("directory").Snapshot(snapshot.NewInstanceContext(), m, "/foo")
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Equal(t, "Model", snap.ClassName)
	value, ok := snap.Properties["Tag"]
	require.True(t, ok)
	require.Equal(t, "keep", value.String())
}

// TestDirectoryIgnoreRules tests that ignore rules exclude children from
// snapshotting.
func TestDirectoryIgnoreRules(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/foo"))
	require.NoError(t, m.Write("/foo/keep.luau", []byte("return 1")))
	require.NoError(t, m.Write("/foo/skip.luau", []byte("return 2")))

	context := snapshot.NewInstanceContext()
	rule, err := snapshot.NewPathIgnoreRule("skip.luau", "/foo")
	require.NoError(t, err)
	context.PathIgnoreRules = append(context.PathIgnoreRules, rule)

	snap, err := snapshot.Get("directory").Snapshot(context, m, "/foo")
	require.NoError(t, err)
	require.Len(t, snap.Children, 1)
	require.Equal(t, "keep", snap.Children[0].Name)
}
