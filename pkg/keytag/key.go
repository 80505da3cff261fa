package keytag

import (
	"encoding/binary"
	"fmt"

	"github.com/agenthands/derivens/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

// Key is a typed value usable for address derivation. Canonical returns
// the payload bytes; equal keys always produce equal payloads, and the
// payload never depends on process state. Primitive keys never fail;
// struct keys surface marshaling problems as caller programming errors.
type Key interface {
	Tag() Tag
	Canonical() ([]byte, error)
}

// EncodeKey produces the full hashed representation of k:
//
//	le64(len(payload)) || payload || wrapped-tag
//
// The length prefix keeps (payload, tag) pairs unambiguous and the
// wrapped tag separates identical payloads of different static types.
func EncodeKey(k Key) ([]byte, error) {
	payload, err := k.Canonical()
	if err != nil {
		return nil, err
	}
	tag := []byte(WrapTag(k.Tag()))

	buf := make([]byte, 8, 8+len(payload)+len(tag))
	binary.LittleEndian.PutUint64(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, tag...)
	return buf, nil
}

type Bool bool

func (Bool) Tag() Tag { return TagBool }

func (b Bool) Canonical() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

type U8 uint8

func (U8) Tag() Tag { return TagU8 }

func (v U8) Canonical() ([]byte, error) {
	return []byte{byte(v)}, nil
}

type U16 uint16

func (U16) Tag() Tag { return TagU16 }

func (v U16) Canonical() ([]byte, error) {
	return binary.LittleEndian.AppendUint16(nil, uint16(v)), nil
}

type U32 uint32

func (U32) Tag() Tag { return TagU32 }

func (v U32) Canonical() ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
}

type U64 uint64

func (U64) Tag() Tag { return TagU64 }

func (v U64) Canonical() ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(v)), nil
}

// U128 is a 128-bit unsigned key, carried as two 64-bit halves. The
// payload is the 16-byte little-endian form: Lo first, then Hi.
type U128 struct {
	Hi uint64
	Lo uint64
}

func (U128) Tag() Tag { return TagU128 }

func (v U128) Canonical() ([]byte, error) {
	buf := binary.LittleEndian.AppendUint64(nil, v.Lo)
	return binary.LittleEndian.AppendUint64(buf, v.Hi), nil
}

// Bytes is a raw byte-sequence key. It encodes differently from UTF8 and
// ASCII keys carrying the same bytes.
type Bytes []byte

func (Bytes) Tag() Tag { return TagBytes }

func (b Bytes) Canonical() ([]byte, error) {
	return appendUleb(nil, uint64(len(b)), b), nil
}

// UTF8 is a text-string key.
type UTF8 string

func (UTF8) Tag() Tag { return TagUTF8 }

func (s UTF8) Canonical() ([]byte, error) {
	return appendUleb(nil, uint64(len(s)), []byte(s)), nil
}

// ASCII is a 7-bit text key. Use NewASCII to validate the payload.
type ASCII string

// NewASCII returns an ASCII key, rejecting bytes outside the 7-bit range.
func NewASCII(s string) (ASCII, error) {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return "", fmt.Errorf("%w: non-ascii byte 0x%02x at offset %d", core.ErrInvalidInput, s[i], i)
		}
	}
	return ASCII(s), nil
}

func (ASCII) Tag() Tag { return TagASCII }

func (s ASCII) Canonical() ([]byte, error) {
	return appendUleb(nil, uint64(len(s)), []byte(s)), nil
}

// Parent is an address-valued key (e.g. keying a child registry by
// another entity's identity).
type Parent core.ParentID

func (Parent) Tag() Tag { return TagAddress }

func (p Parent) Canonical() ([]byte, error) {
	out := make([]byte, core.AddressLen)
	copy(out, p[:])
	return out, nil
}

// Scalar constrains sequence elements to the fixed-width unsigned types.
type Scalar interface {
	uint8 | uint16 | uint32 | uint64
}

// Seq is a homogeneous sequence key. The element type is part of the tag,
// so an empty Seq[uint64] and an empty Seq[uint8] encode differently even
// though both payloads are a bare zero count.
type Seq[E Scalar] []E

func (Seq[E]) Tag() Tag {
	var zero E
	return TagVector(scalarTag(zero))
}

func (s Seq[E]) Canonical() ([]byte, error) {
	buf := appendUleb(nil, uint64(len(s)), nil)
	for _, e := range s {
		switch v := any(e).(type) {
		case uint8:
			buf = append(buf, v)
		case uint16:
			buf = binary.LittleEndian.AppendUint16(buf, v)
		case uint32:
			buf = binary.LittleEndian.AppendUint32(buf, v)
		case uint64:
			buf = binary.LittleEndian.AppendUint64(buf, v)
		}
	}
	return buf, nil
}

func scalarTag[E Scalar](zero E) Tag {
	switch any(zero).(type) {
	case uint8:
		return TagU8
	case uint16:
		return TagU16
	case uint32:
		return TagU32
	default:
		return TagU64
	}
}

// Struct is a named composite key. The payload is the canonical CBOR
// encoding of Value (Core Deterministic Encoding), so map ordering and
// float forms cannot produce two encodings of one logical key.
type Struct struct {
	StructTag Tag
	Value     any
}

// NewStruct builds a struct key. tag should come from TagStruct.
func NewStruct(tag Tag, value any) Struct {
	return Struct{StructTag: tag, Value: value}
}

func (s Struct) Tag() Tag { return s.StructTag }

func (s Struct) Canonical() ([]byte, error) {
	b, err := structEncMode.Marshal(s.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: key not canonically serializable: %v", core.ErrInvalidInput, err)
	}
	return b, nil
}

var structEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	structEncMode = em
}

// appendUleb appends the ULEB128 form of n, then tail.
func appendUleb(buf []byte, n uint64, tail []byte) []byte {
	for n >= 0x80 {
		buf = append(buf, byte(n)|0x80)
		n >>= 7
	}
	buf = append(buf, byte(n))
	return append(buf, tail...)
}
