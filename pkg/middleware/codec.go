// Package middleware implements the concrete format handlers that map
// filesystem representations to instance subtrees and back, together with
// the forward snapshot dispatch that selects between them.
package middleware

import (
	"github.com/Crown-Wars/rojo/pkg/instance"
)

// ModelCodec is the narrow interface through which model file contents are
// read and written. Decode returns a container whose root's children are
// the file's top-level instances; Encode serializes the subtree rooted at
// the specified instance as the file's single top-level instance.
type ModelCodec interface {
	Decode(contents []byte) (*instance.Dom, error)
	Encode(dom *instance.Dom, root instance.Ref) ([]byte, error)
}

// codecs is the process-wide codec registry, keyed by model format.
var codecs = make(map[string]ModelCodec)

// RegisterCodec registers a codec for a model format, replacing any
// existing registration. The binary rbxm codec is expected to be registered
// by the embedding application.
func RegisterCodec(format string, codec ModelCodec) {
	codecs[format] = codec
}

// Codec returns the codec registered for a model format, or nil.
func Codec(format string) ModelCodec {
	return codecs[format]
}

func init() {
	RegisterCodec("rbxmx", &xmlModelCodec{})
}
