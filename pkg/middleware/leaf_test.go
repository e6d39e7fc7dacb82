package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// TestScriptSnapshotFamily tests class and name mapping for the script
// family.
func TestScriptSnapshotFamily(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/src"))
	require.NoError(t, m.Write("/src/a.server.luau", []byte("print(1)")))
	require.NoError(t, m.Write("/src/b.client.luau", []byte("print(2)")))
	require.NoError(t, m.Write("/src/c.luau", []byte("return 3")))

	context := snapshot.NewInstanceContext()
	tests := []struct {
		path  string
		class string
		name  string
	}{
		{"/src/a.server.luau", "Script", "a"},
		{"/src/b.client.luau", "LocalScript", "b"},
		{"/src/c.luau", "ModuleScript", "c"},
	}
	for i, test := range tests {
		snap, err := SnapshotFromVfs(context, m, test.path)
		require.NoError(t, err)
		require.NotNil(t, snap, "test index %d: no middleware claimed the script", i)
		require.Equal(t, test.class, snap.ClassName, "test index %d", i)
		require.Equal(t, test.name, snap.Name, "test index %d", i)
	}
}

// TestScriptAdjacentMeta tests sibling meta overlay on a leaf snapshot.
func TestScriptAdjacentMeta(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.CreateDir("/src"))
	require.NoError(t, m.Write("/src/a.luau", []byte("return 1")))
	require.NoError(t, m.Write("/src/a.meta.json", []byte(`{"properties": {"Tag": "special"}}`)))

	snap, err := SnapshotFromVfs(snapshot.NewInstanceContext(), m, "/src/a.luau")
	require.NoError(t, err)
	require.True(t, snap.Properties["Tag"].Equal(instance.String("special")))
	require.True(t, containsPath(snap.Metadata.RelevantPaths, "/src/a.meta.json"))
}

// TestTextSnapshot tests the text middleware's snapshot of a plain text file.
func TestTextSnapshot(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.Write("/note.txt", []byte("hello")))

	snap, err := SnapshotFromVfs(snapshot.NewInstanceContext(), m, "/note.txt")
	require.NoError(t, err)
	require.Equal(t, "StringValue", snap.ClassName)
	require.True(t, snap.Properties["Value"].Equal(instance.String("hello")))
}

// TestCsvRoundTrip tests localization table decoding and deterministic
// re-encoding.
func TestCsvRoundTrip(t *testing.T) {
	m := vfs.NewMemory()
	source := "Key,Source,Context,Example,es\nHELLO,Hello,,,Hola\n"
	require.NoError(t, m.Write("/strings.csv", []byte(source)))

	snap, err := SnapshotFromVfs(snapshot.NewInstanceContext(), m, "/strings.csv")
	require.NoError(t, err)
	require.Equal(t, "LocalizationTable", snap.ClassName)

	contents := snap.Properties["Contents"].String()
	require.Contains(t, contents, `"key":"HELLO"`)
	require.Contains(t, contents, `"es":"Hola"`)

	// Re-serialize through the syncback serializer and confirm stability.
	dom := instance.NewDom("LocalizationTable", "strings")
	dom.Get(dom.Root()).Properties["Contents"] = snap.Properties["Contents"]
	encoded, err := serializeLocalizationTable(dom.Get(dom.Root()))
	require.NoError(t, err)
	require.Equal(t, source, string(encoded))
}

// TestJsonDataModule tests JSON decoding into a Luau data module.
func TestJsonDataModule(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.Write("/config.json", []byte(`{"speed": 16, "name": "fast", "flags": [true]}`)))

	snap, err := SnapshotFromVfs(snapshot.NewInstanceContext(), m, "/config.json")
	require.NoError(t, err)
	require.Equal(t, "ModuleScript", snap.ClassName)
	require.Equal(t, "config", snap.Name)

	source := snap.Properties["Source"].String()
	require.True(t, strings.HasPrefix(source, "return {"))
	require.Contains(t, source, `["speed"] = 16`)
	require.Contains(t, source, `["name"] = "fast"`)
}

// TestTomlDataModule tests TOML decoding into a Luau data module.
func TestTomlDataModule(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.Write("/settings.toml", []byte("speed = 16\nname = \"fast\"\n")))

	snap, err := SnapshotFromVfs(snapshot.NewInstanceContext(), m, "/settings.toml")
	require.NoError(t, err)
	require.Equal(t, "ModuleScript", snap.ClassName)

	source := snap.Properties["Source"].String()
	require.Contains(t, source, `["speed"] = 16`)
	require.Contains(t, source, `["name"] = "fast"`)
}

// TestJsonModelSnapshot tests the JSON model middleware.
func TestJsonModelSnapshot(t *testing.T) {
	m := vfs.NewMemory()
	require.NoError(t, m.Write("/part.model.json", []byte(`{
		"className": "Folder",
		"children": [
			{"name": "Inner", "className": "StringValue", "properties": {"Value": "x"}}
		]
	}`)))

	snap, err := SnapshotFromVfs(snapshot.NewInstanceContext(), m, "/part.model.json")
	require.NoError(t, err)
	require.Equal(t, "Folder", snap.ClassName)
	require.Equal(t, "part", snap.Name)
	require.Len(t, snap.Children, 1)
	require.Equal(t, "Inner", snap.Children[0].Name)
	require.True(t, snap.Children[0].Properties["Value"].Equal(instance.String("x")))
}
