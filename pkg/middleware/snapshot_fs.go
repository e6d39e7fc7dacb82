package middleware

import (
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// SnapshotFromVfs dispatches forward snapshotting of a path to the first
// middleware that claims it. Directories are claimed by the directory
// middleware; files are claimed by glob in registry order. It returns nil
// with no error when no middleware claims the path; the directory
// middleware leaves such entries out of its children.
func SnapshotFromVfs(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	metadata, err := v.Metadata(path)
	if err != nil {
		return nil, err
	}

	if metadata.IsDir {
		return snapshot.Get("directory").Snapshot(context, v, path)
	}

	// Meta files are companions to the entries they describe, never
	// instances of their own.
	if strings.HasSuffix(pathpkg.Base(path), ".meta.json") {
		return nil, nil
	}

	for _, middleware := range snapshot.Middlewares() {
		if middleware.MatchOnlyDirectories() {
			continue
		}
		for _, glob := range middleware.DefaultGlobs() {
			if match, _ := doublestar.Match(glob, path); match {
				return middleware.Snapshot(context, v, path)
			}
		}
	}

	return nil, nil
}
