package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// encodeModel serializes a single-root model through the XML codec.
func encodeModel(t *testing.T, build func(dom *instance.Dom, parent instance.Ref)) []byte {
	t.Helper()
	dom := instance.NewDom("DataModel", "")
	build(dom, dom.Root())
	children := dom.Get(dom.Root()).Children()
	require.Len(t, children, 1)
	contents, err := (&xmlModelCodec{}).Encode(dom, children[0])
	require.NoError(t, err)
	return contents
}

// TestModelSnapshotSingleRoot tests snapshotting a well-formed model file.
func TestModelSnapshotSingleRoot(t *testing.T) {
	contents := encodeModel(t, func(dom *instance.Dom, parent instance.Ref) {
		dom.Insert(parent, "Folder", "ignored-on-disk-name", nil)
	})

	m := vfs.NewMemory()
	require.NoError(t, m.Write("/foo.rbxmx", contents))

	snap, err := snapshot.Get("rbxmx").Snapshot(snapshot.NewInstanceContext(), m, "/foo.rbxmx")
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Equal(t, "foo", snap.Name)
	require.Equal(t, "Folder", snap.ClassName)
	require.Empty(t, snap.Children)
	require.Equal(t, "rbxmx", snap.Metadata.MiddlewareID)
}

// TestModelSnapshotMultiRoot tests rejection of model files with more than
// one top-level instance.
func TestModelSnapshotMultiRoot(t *testing.T) {
	combined := `<roblox version="4">
  <Item class="Folder">
    <Properties><string name="Name">a</string></Properties>
  </Item>
  <Item class="Folder">
    <Properties><string name="Name">b</string></Properties>
  </Item>
</roblox>`

	m := vfs.NewMemory()
	require.NoError(t, m.Write("/foo.rbxmx", []byte(combined)))

	_, err := snapshot.Get("rbxmx").Snapshot(snapshot.NewInstanceContext(), m, "/foo.rbxmx")
	require.Error(t, err)
	require.Contains(t, err.Error(), "one top-level instance")
}

// TestXMLCodecRoundTrip tests that the XML codec round-trips classes,
// names, and typed properties.
func TestXMLCodecRoundTrip(t *testing.T) {
	contents := encodeModel(t, func(dom *instance.Dom, parent instance.Ref) {
		folder := dom.Insert(parent, "Folder", "root", instance.Properties{
			"Flag":  instance.Bool(true),
			"Count": instance.Number(3),
		})
		dom.Insert(folder, "StringValue", "child", instance.Properties{
			"Value": instance.String("hello"),
		})
	})

	decoded, err := (&xmlModelCodec{}).Decode(contents)
	require.NoError(t, err)
	roots := decoded.Get(decoded.Root()).Children()
	require.Len(t, roots, 1)

	root := decoded.Get(roots[0])
	require.Equal(t, "Folder", root.Class)
	require.Equal(t, "root", root.Name)
	require.True(t, root.Properties["Flag"].Equal(instance.Bool(true)))
	require.True(t, root.Properties["Count"].Equal(instance.Number(3)))

	require.Len(t, root.Children(), 1)
	child := decoded.Get(root.Children()[0])
	require.Equal(t, "StringValue", child.Class)
	require.True(t, child.Properties["Value"].Equal(instance.String("hello")))
}
