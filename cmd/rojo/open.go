package main

import (
	pathpkg "path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/config"
	"github.com/Crown-Wars/rojo/pkg/middleware"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// openTree snapshots a filesystem location (a directory, project file, or
// model file) into an enriched tree, applying any rojo.yml configuration
// found next to it.
func openTree(v vfs.Vfs, location string) (*snapshot.Tree, error) {
	location = filepath.ToSlash(location)

	base := pathpkg.Dir(location)
	if metadata, err := v.Metadata(location); err == nil && metadata.IsDir {
		base = location
	}

	configuration, err := config.Load(filepath.FromSlash(pathpkg.Join(base, "rojo.yml")))
	if err != nil {
		return nil, err
	}
	context, err := configuration.InstanceContext(base)
	if err != nil {
		return nil, err
	}

	snap, err := middleware.SnapshotFromVfs(context, v, location)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to snapshot %s", location)
	}
	if snap == nil {
		return nil, errors.Errorf("no middleware claims %s", location)
	}
	return snapshot.NewTree(snap), nil
}
