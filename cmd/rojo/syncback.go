package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Crown-Wars/rojo/pkg/logging"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

func syncbackMain(command *cobra.Command, arguments []string) {
	if len(arguments) != 2 {
		fatal(errors.New("syncback requires a project location and an input"))
	}

	v := vfs.NewOS()
	logger := logging.RootLogger.Sublogger("syncback")

	logger.Info("opening project tree...")
	oldTree, err := openTree(v, arguments[0])
	if err != nil {
		fatal(err)
	}

	logger.Info("opening input tree...")
	newTree, err := openTree(v, arguments[1])
	if err != nil {
		fatal(err)
	}
	newDom := newTree.Inner()

	if err := oldTree.Syncback(v, logger, oldTree.RootID(), newDom, newTree.RootID()); err != nil {
		fatal(err)
	}

	oldTree.FixUniqueIDCollisions()

	// Summarize the on-disk footprint now owned by the tree.
	var files int
	var bytes uint64
	for _, id := range oldTree.Descendants(oldTree.RootID()) {
		if metadata := oldTree.GetMetadata(id); metadata != nil && metadata.FsSnapshot != nil {
			files += len(metadata.FsSnapshot.Files())
			bytes += metadata.FsSnapshot.WrittenBytes()
		}
	}
	fmt.Printf("Synced back %d files (%s)\n", files, humanize.Bytes(bytes))
}

var syncbackCommand = &cobra.Command{
	Use:   "syncback <project> <input>",
	Short: "Apply an input tree back onto a project's filesystem layout",
	Long: "Applies the contents of an input tree back onto a project's " +
		"filesystem layout, preserving the project's file layout choices " +
		"where possible and writing only files whose contents changed.",
	Run: syncbackMain,
}
