// Package toolname encodes plugin tool identities into provider function names
// and decodes them back.
//
// DESIGN: Providers accept a single flat function name (64 characters at most
// for most chat-completion APIs). A tool is identified by the triple
// (identifier, apiName, type), so the codec joins the parts with a reserved
// four-underscore separator:
//
//	identifier____apiName[____type]
//
// The "default" type is never written. When the joined name reaches the length
// limit the apiName, and then the identifier, are replaced by a short MD5
// digest. Decoding reverses the digest by scanning known manifests; when no
// manifest matches, the hashed placeholder is kept.
package toolname

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const (
	// Separator joins the identifier, apiName and type segments.
	Separator = "____"

	// HashPrefix marks a segment replaced by its digest.
	HashPrefix = "MD5HASH_"

	// MaxLength is the function-name limit most providers enforce.
	MaxLength = 64

	hashLength = 12
)

// Tool types.
const (
	TypeDefault    = "default"
	TypeStandalone = "standalone"
	TypeMarkdown   = "markdown"
	TypeMCP        = "mcp"
	TypeBuiltin    = "builtin"
)

// Triple identifies one callable tool operation.
type Triple struct {
	Identifier string
	APIName    string
	Type       string
}

// Generate builds the wire name for a tool operation.
//
// The result is deterministic. The two-step fallback (hash apiName, then also
// hash identifier) is applied only when the naive name reaches MaxLength; the
// second step is not re-checked, so a long type can still overflow.
func Generate(identifier, apiName, typ string) string {
	suffix := ""
	if typ != "" && typ != TypeDefault {
		suffix = Separator + typ
	}

	name := identifier + Separator + apiName + suffix
	if len(name) < MaxLength {
		return name
	}

	hashedAPI := HashName(apiName)
	name = identifier + Separator + hashedAPI + suffix
	if len(name) < MaxLength {
		return name
	}

	return HashName(identifier) + Separator + hashedAPI + suffix
}

// Parse splits a wire name into its segments. Segments past the third are
// ignored. It reports false when the name has no apiName segment.
func Parse(wireName string) (Triple, bool) {
	parts := strings.Split(wireName, Separator)
	t := Triple{Identifier: parts[0], Type: TypeDefault}
	if len(parts) > 1 {
		t.APIName = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		t.Type = parts[2]
	}
	if t.APIName == "" {
		return t, false
	}
	return t, true
}

// HashName returns the hashed placeholder for a segment.
func HashName(s string) string {
	sum := md5.Sum([]byte(s))
	return HashPrefix + hex.EncodeToString(sum[:])[:hashLength]
}

// IsHashed reports whether a segment is a hashed placeholder.
func IsHashed(s string) bool {
	return strings.HasPrefix(s, HashPrefix)
}
