package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/logging"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

func diffMain(command *cobra.Command, arguments []string) {
	if len(arguments) < 2 || len(arguments) > 3 {
		fatal(errors.New("diff requires an old input, a new input, and an optional object path"))
	}

	v := vfs.NewOS()
	logger := logging.RootLogger.Sublogger("diff")

	logger.Info("opening old tree...")
	oldTree, err := openTree(v, arguments[0])
	if err != nil {
		fatal(err)
	}

	logger.Info("opening new tree...")
	newTree, err := openTree(v, arguments[1])
	if err != nil {
		fatal(err)
	}
	newDom := newTree.Inner()

	diff := snapshot.NewDeepDiff(
		oldTree.Inner(), oldTree.RootID(),
		newDom, newTree.RootID(),
		oldTree.SyncbackGetFilters,
		oldTree.SyncbackShouldSkip,
	)

	oldRef := oldTree.RootID()
	newRef := newTree.RootID()
	if len(arguments) == 3 {
		for _, part := range strings.Split(arguments[2], ".") {
			oldRef, err = childNamed(oldTree.Inner(), oldRef, part)
			if err != nil {
				fatal(errors.Wrap(err, "old tree"))
			}
		}
		var ok bool
		newRef, ok = diff.GetMatchingNewRef(oldRef)
		if !ok {
			fatal(errors.New("the selected object has no counterpart in the new tree"))
		}
	}

	printDiff(oldTree, newDom, diff, oldRef, newRef, 0)
}

// childNamed resolves one step of a dotted object path.
func childNamed(dom *instance.Dom, parent instance.Ref, name string) (instance.Ref, error) {
	for _, childRef := range dom.Get(parent).Children() {
		if dom.Get(childRef).Name == name {
			return childRef, nil
		}
	}
	return instance.NilRef, errors.Errorf("no child named %q", name)
}

// printDiff renders the change tree rooted at a matched pair.
func printDiff(oldTree *snapshot.Tree, newDom *instance.Dom, diff *snapshot.DeepDiff, oldRef, newRef instance.Ref, depth int) {
	indent := strings.Repeat("  ", depth)
	oldInst := oldTree.GetInstance(oldRef)
	newInst := newDom.Get(newRef)

	if !diff.HasChanged(oldRef) {
		if depth == 0 {
			fmt.Printf("%s  %s (%s): no changes\n", indent, oldInst.Name, oldInst.Class)
		}
		return
	}

	label := fmt.Sprintf("%s (%s)", newInst.Name, newInst.Class)
	if oldInst.Class != newInst.Class || oldInst.Name != newInst.Name {
		label = fmt.Sprintf("%s (%s) -> %s (%s)", oldInst.Name, oldInst.Class, newInst.Name, newInst.Class)
	}
	color.Yellow("%s~ %s", indent, label)

	printPropertyDiff(oldInst, newInst, oldTree.SyncbackGetFilters(oldRef), indent)

	delta, err := diff.GetChildren(oldTree.Inner(), newDom, oldRef)
	if err != nil {
		fatal(err)
	}
	for _, addedRef := range delta.Added {
		added := newDom.Get(addedRef)
		color.Green("%s  + %s (%s)", indent, added.Name, added.Class)
	}
	for _, removedRef := range delta.Removed {
		removed := oldTree.GetInstance(removedRef)
		color.Red("%s  - %s (%s)", indent, removed.Name, removed.Class)
	}
	for _, changedRef := range delta.Changed {
		matchingNew, _ := diff.GetMatchingNewRef(changedRef)
		printDiff(oldTree, newDom, diff, changedRef, matchingNew, depth+1)
	}
}

// printPropertyDiff renders per-property changes for a matched pair.
func printPropertyDiff(oldInst, newInst *instance.Instance, filters snapshot.PropertyFilters, indent string) {
	for name, oldValue := range oldInst.Properties {
		if filters.Ignores(name) {
			continue
		}
		newValue, ok := newInst.Properties[name]
		if !ok {
			color.Red("%s    - %s = %s", indent, name, oldValue)
		} else if !oldValue.Equal(newValue) {
			color.Yellow("%s    ~ %s: %s -> %s", indent, name, oldValue, newValue)
		}
	}
	for name, newValue := range newInst.Properties {
		if filters.Ignores(name) {
			continue
		}
		if _, ok := oldInst.Properties[name]; !ok {
			color.Green("%s    + %s = %s", indent, name, newValue)
		}
	}
}

var diffCommand = &cobra.Command{
	Use:   "diff <old> <new> [path]",
	Short: "Display a diff between two inputs",
	Long: "Displays a diff between two inputs. Each input can be a project " +
		"directory, a project file, or a model file. The optional path argument " +
		"scopes the diff to a dotted object path within both trees.",
	Run: diffMain,
}
