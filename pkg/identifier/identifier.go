package identifier

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strings"

	"github.com/eknkc/basex"
)

const (
	// PrefixInstance is the prefix used for instance reference identifiers.
	PrefixInstance = "inst"
	// PrefixTree is the prefix used for tree identifiers.
	PrefixTree = "tree"

	// requiredPrefixLength is the required length for identifier prefixes.
	requiredPrefixLength = 4
	// collisionResistantLength is the number of random bytes needed to ensure
	// collision-resistance in an identifier.
	collisionResistantLength = 32
	// targetBase62Length is the target length for the Base62-encoded portion
	// of the identifier. This is the maximum length that a byte array of
	// collisionResistantLength bytes will take to encode in Base62, computed
	// for n bytes as ceil(n*8*ln(2)/ln(62)).
	targetBase62Length = 43
)

// Base62Alphabet is the alphabet used for Base62 encoding.
const Base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// base62 is the Base62 encoding used for identifier suffixes.
var base62 *basex.Encoding

func init() {
	var err error
	base62, err = basex.NewEncoding(Base62Alphabet)
	if err != nil {
		panic("unable to initialize Base62 encoding")
	}
}

// matcher is a regular expression that matches valid identifiers.
var matcher = regexp.MustCompile("^[a-z]{4}_[0-9a-zA-Z]{43}$")

// New generates a new collision-resistant identifier with the specified
// prefix. The prefix must consist of four lowercase ASCII letters.
func New(prefix string) (string, error) {
	// Ensure that the prefix length is correct.
	if len(prefix) != requiredPrefixLength {
		return "", errors.New("incorrect prefix length")
	}

	// Ensure that each prefix character is allowed.
	for _, r := range prefix {
		if !('a' <= r && r <= 'z') {
			return "", errors.New("invalid prefix character")
		}
	}

	// Create the random value.
	random := make([]byte, collisionResistantLength)
	if _, err := rand.Read(random); err != nil {
		return "", err
	}

	// Encode the random value using Base62. As a sanity check, ensure that
	// the encoded value doesn't exceed the target length.
	encoded := base62.Encode(random)
	if len(encoded) > targetBase62Length {
		panic("encoded random data length longer than expected")
	}

	// Create a string builder and add the prefix and separator.
	builder := &strings.Builder{}
	builder.WriteString(prefix)
	builder.WriteRune('_')

	// If the encoded value has a length less than the target length, then
	// left-pad it with the zero value of our Base62 alphabet.
	for i := targetBase62Length - len(encoded); i > 0; i-- {
		builder.WriteByte(Base62Alphabet[0])
	}

	// Write the encoded value.
	builder.WriteString(encoded)

	// Success.
	return builder.String(), nil
}

// IsValid returns true if the provided value is a valid identifier.
func IsValid(value string) bool {
	return matcher.MatchString(value)
}
