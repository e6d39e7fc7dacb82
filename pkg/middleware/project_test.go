package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// TestProjectSnapshot tests project file parsing with class nodes and path
// references.
func TestProjectSnapshot(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/game/src"))
	require.NoError(t, m.Write("/game/src/util.luau", []byte("return {}\n")))
	require.NoError(t, m.Write("/game/default.project.json", []byte(`{
		"name": "game",
		"tree": {
			"$className": "DataModel",
			"ReplicatedStorage": {
				"$className": "ReplicatedStorage",
				"Shared": {"$path": "src"}
			}
		}
	}`)))

	snap, err := snapshot.Get("project").Snapshot(snapshot.NewInstanceContext(), m, "/game/default.project.json")
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Equal(t, "game", snap.Name)
	require.Equal(t, "DataModel", snap.ClassName)
	require.Equal(t, "project", snap.Metadata.MiddlewareID)

	require.Len(t, snap.Children, 1)
	storage := snap.Children[0]
	require.Equal(t, "ReplicatedStorage", storage.Name)
	require.Equal(t, "ReplicatedStorage", storage.ClassName)
	require.False(t, storage.Metadata.InstigatingSource.IsPath(),
		"pure project node should be project-sourced")

	require.Len(t, storage.Children, 1)
	shared := storage.Children[0]
	require.Equal(t, "Shared", shared.Name)
	require.Equal(t, "Folder", shared.ClassName)
	require.True(t, shared.Metadata.InstigatingSource.IsPath(),
		"path-referenced node should be path-sourced")
	require.Len(t, shared.Children, 1)
	require.Equal(t, "util", shared.Children[0].Name)
}

// TestProjectInitPromotesDirectory tests that init.project.json supplies a
// directory's class and authoritative children.
func TestProjectInitPromotesDirectory(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/game"))
	require.NoError(t, m.Write("/game/stray.luau", []byte("return 1\n")))
	require.NoError(t, m.Write("/game/init.project.json", []byte(`{
		"name": "inner",
		"tree": {
			"$className": "DataModel",
			"Workspace": {"$className": "Workspace"}
		}
	}`)))

	snap, err := snapshot.Get("directory").Snapshot(snapshot.NewInstanceContext(), m, "/game")
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Equal(t, "DataModel", snap.ClassName)
	require.Equal(t, "game", snap.Name)

	// The project's children are authoritative: the stray script is not
	// enumerated.
	require.Len(t, snap.Children, 1)
	require.Equal(t, "Workspace", snap.Children[0].Name)

	dirContext, ok := snap.Metadata.MiddlewareContext.(*DirectoryContext)
	require.True(t, ok)
	require.Equal(t, "project", dirContext.InitMiddleware)
}
