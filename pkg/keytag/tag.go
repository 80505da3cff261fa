package keytag

import (
	"strings"
)

// Tag is a stable descriptor for a key's static type. It is part of the
// hash preimage: two keys with identical payload bytes but different tags
// derive different addresses.
type Tag string

const (
	TagBool    Tag = "bool"
	TagU8      Tag = "u8"
	TagU16     Tag = "u16"
	TagU32     Tag = "u32"
	TagU64     Tag = "u64"
	TagU128    Tag = "u128"
	TagAddress Tag = "address"
	TagUTF8    Tag = "string"
	TagASCII   Tag = "ascii"
)

// TagBytes is the tag for raw byte-sequence keys.
var TagBytes = TagVector(TagU8)

// TagVector returns the tag for a homogeneous sequence of elem.
func TagVector(elem Tag) Tag {
	return "vector<" + elem + ">"
}

// TagStruct returns the tag for a named struct type, optionally
// parameterized. ns and name together must be stable for the lifetime of
// the namespace; renaming a key struct is a breaking migration.
func TagStruct(ns, name string, params ...Tag) Tag {
	t := Tag(ns + "::" + name)
	if len(params) == 0 {
		return t
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = string(p)
	}
	return t + "<" + Tag(strings.Join(parts, ",")) + ">"
}

// WrapTag namespaces t under the derivation scheme's own wrapper type, so
// that a host system hashing the same payload under a different scheme
// cannot collide with addresses derived here.
func WrapTag(t Tag) Tag {
	return "derivens::Key<" + t + ">"
}
