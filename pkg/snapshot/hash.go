package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/Crown-Wars/rojo/pkg/instance"
)

// Hash is a canonical digest of an instance subtree.
type Hash [sha256.Size]byte

// HashTree computes canonical hashes for every instance in the subtree
// rooted at the specified identifier, with properties matched by the filter
// map excluded. Child ordering does not affect the result: child hashes are
// sorted before being folded into their parent's digest.
func HashTree(dom *instance.Dom, root instance.Ref, filters PropertyFilters) map[instance.Ref]Hash {
	hashes := make(map[instance.Ref]Hash)
	hashSubtree(dom, root, filters, hashes)
	return hashes
}

// hashSubtree computes the hash of one subtree bottom-up.
func hashSubtree(dom *instance.Dom, ref instance.Ref, filters PropertyFilters, hashes map[instance.Ref]Hash) Hash {
	target := dom.Get(ref)

	digest := sha256.New()
	writeField := func(value string) {
		var length [8]byte
		binary.LittleEndian.PutUint64(length[:], uint64(len(value)))
		digest.Write(length[:])
		digest.Write([]byte(value))
	}

	writeField(target.Class)
	writeField(target.Name)

	// Fold properties in sorted name order.
	names := make([]string, 0, len(target.Properties))
	for name := range target.Properties {
		if filters.Ignores(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := target.Properties[name]
		writeField(name)
		writeField(value.Kind().String())
		writeField(value.String())
	}

	// Fold child hashes in sorted order so that reordering children does
	// not change the parent's hash.
	children := target.Children()
	childHashes := make([][]byte, 0, len(children))
	for _, child := range children {
		hash := hashSubtree(dom, child, filters, hashes)
		childHashes = append(childHashes, hash[:])
	}
	sort.Slice(childHashes, func(i, j int) bool {
		for k := range childHashes[i] {
			if childHashes[i][k] != childHashes[j][k] {
				return childHashes[i][k] < childHashes[j][k]
			}
		}
		return false
	})
	for _, hash := range childHashes {
		digest.Write(hash)
	}

	var result Hash
	copy(result[:], digest.Sum(nil))
	hashes[ref] = result
	return result
}
