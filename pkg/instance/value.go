package instance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ValueKind identifies the type of a property value.
type ValueKind uint8

const (
	// KindString indicates a string value.
	KindString ValueKind = iota
	// KindBool indicates a boolean value.
	KindBool
	// KindNumber indicates a 64-bit floating point value.
	KindNumber
	// KindUniqueId indicates a unique identifier value.
	KindUniqueId
)

// String implements fmt.Stringer.String.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindBool:
		return "Bool"
	case KindNumber:
		return "Number"
	case KindUniqueId:
		return "UniqueId"
	default:
		return "Unknown"
	}
}

// Value is a typed property value.
type Value interface {
	// Kind returns the kind of the value.
	Kind() ValueKind
	// Equal returns true if the other value has the same kind and content.
	Equal(other Value) bool
	// String returns a canonical textual representation of the value. Two
	// values of the same kind are equal exactly when their representations
	// are equal.
	String() string
}

// String is a string property value.
type String string

// Kind implements Value.Kind.
func (v String) Kind() ValueKind { return KindString }

// Equal implements Value.Equal.
func (v String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && o == v
}

// String implements Value.String.
func (v String) String() string { return string(v) }

// Bool is a boolean property value.
type Bool bool

// Kind implements Value.Kind.
func (v Bool) Kind() ValueKind { return KindBool }

// Equal implements Value.Equal.
func (v Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && o == v
}

// String implements Value.String.
func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

// Number is a 64-bit floating point property value.
type Number float64

// Kind implements Value.Kind.
func (v Number) Kind() ValueKind { return KindNumber }

// Equal implements Value.Equal.
func (v Number) Equal(other Value) bool {
	o, ok := other.(Number)
	return ok && o == v
}

// String implements Value.String.
func (v Number) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }

// UniqueId is a unique identifier property value.
type UniqueId string

// Kind implements Value.Kind.
func (v UniqueId) Kind() ValueKind { return KindUniqueId }

// Equal implements Value.Equal.
func (v UniqueId) Equal(other Value) bool {
	o, ok := other.(UniqueId)
	return ok && o == v
}

// String implements Value.String.
func (v UniqueId) String() string { return string(v) }

// NewUniqueId generates a fresh UniqueId value as 32 hexadecimal digits.
func NewUniqueId() UniqueId {
	return UniqueId(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Properties is a property bag keyed by property name.
type Properties map[string]Value

// Clone creates a copy of the property bag. Values are immutable and are
// shared between the copies.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	result := make(Properties, len(p))
	for name, value := range p {
		result[name] = value
	}
	return result
}

// Equal returns true if both property bags contain the same properties with
// equal values. The ignore callback, if non-nil, excludes matching property
// names from the comparison on both sides.
func (p Properties) Equal(other Properties, ignore func(name string) bool) bool {
	count := func(bag Properties) int {
		n := 0
		for name := range bag {
			if ignore == nil || !ignore(name) {
				n++
			}
		}
		return n
	}
	if count(p) != count(other) {
		return false
	}
	for name, value := range p {
		if ignore != nil && ignore(name) {
			continue
		}
		otherValue, ok := other[name]
		if !ok || !value.Equal(otherValue) {
			return false
		}
	}
	return true
}

// ValueFromJSON converts a decoded JSON scalar into a Value. It returns an
// error for unsupported shapes (arrays and objects).
func ValueFromJSON(raw interface{}) (Value, error) {
	switch typed := raw.(type) {
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case float64:
		return Number(typed), nil
	default:
		return nil, fmt.Errorf("unsupported property value shape: %T", raw)
	}
}

// ValueToJSON converts a Value into a shape suitable for JSON encoding.
func ValueToJSON(value Value) interface{} {
	switch typed := value.(type) {
	case String:
		return string(typed)
	case Bool:
		return bool(typed)
	case Number:
		return float64(typed)
	case UniqueId:
		return string(typed)
	default:
		return value.String()
	}
}
