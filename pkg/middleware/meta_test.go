package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// TestMetadataFileParseAndApply tests tolerant parsing and snapshot
// overlay.
func TestMetadataFileParseAndApply(t *testing.T) {
	meta, err := MetadataFileFromSlice([]byte(`{
		// A comment, which strict JSON would reject.
		"className": "Model",
		"properties": {"Tag": "x", "Level": 3, "Active": true},
		"ignoreUnknownInstances": true,
	}`), "/foo/init.meta.json")
	require.NoError(t, err)

	snap := snapshot.NewInstanceSnapshot()
	snap.ClassName = "Folder"
	require.NoError(t, meta.Apply(snap))

	require.Equal(t, "Model", snap.ClassName)
	require.True(t, snap.Properties["Tag"].Equal(instance.String("x")))
	require.True(t, snap.Properties["Level"].Equal(instance.Number(3)))
	require.True(t, snap.Properties["Active"].Equal(instance.Bool(true)))
	require.True(t, snap.Metadata.IgnoreUnknownInstances)
}

// TestMetadataFileRejectsShapes tests rejection of unsupported property
// shapes.
func TestMetadataFileRejectsShapes(t *testing.T) {
	_, err := MetadataFileFromSlice([]byte(`{"properties": {"Bad": [1, 2]}}`), "/foo/init.meta.json")
	require.Error(t, err)
}

// TestReconcileMetaFile tests synthesis of minimal meta files.
func TestReconcileMetaFile(t *testing.T) {
	m := vfs.NewMemory()
	dom := instance.NewDom("Folder", "plain")

	// A plain Folder with no properties needs no meta file.
	contents, err := reconcileMetaFile(m, "/A/init.meta.json", dom.Get(dom.Root()), nil, "Folder", nil)
	require.NoError(t, err)
	require.Nil(t, contents)

	// A class deviation is recorded.
	model := instance.NewDom("Model", "fancy")
	contents, err = reconcileMetaFile(m, "/A/init.meta.json", model.Get(model.Root()), nil, "Folder", nil)
	require.NoError(t, err)
	require.NotNil(t, contents)
	require.True(t, strings.Contains(string(contents), `"className": "Model"`))

	// Save-filtered properties are stripped.
	model.Get(model.Root()).Properties["UniqueId"] = instance.UniqueId("abc")
	contents, err = reconcileMetaFile(m, "/A/init.meta.json", model.Get(model.Root()), nil, "Folder", snapshot.DefaultFiltersSave())
	require.NoError(t, err)
	require.False(t, strings.Contains(string(contents), "UniqueId"))
}
