package addr

import (
	"fmt"

	"github.com/agenthands/derivens/pkg/core"
	"github.com/agenthands/derivens/pkg/keytag"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ScopeDerivedAddress is the domain-separation byte prefixed to every
// derivation preimage. It keeps derived addresses out of any other hash
// domain a host system may run over the same parent identifiers.
const ScopeDerivedAddress = 0xf0

// Deriver computes child addresses. Derivation is pure: it never touches
// the ledger, so any party holding a parent identifier and a key can
// predict a child's address before the child exists.
type Deriver interface {
	// DeriveAddress returns the address of (parent, key):
	//
	//	sha2-256( scope || parent || encode(key) )
	//
	// Deterministic and bit-exact across processes; a hash algorithm
	// change is a breaking migration for every derived address.
	DeriveAddress(parent core.ParentID, key keytag.Key) (core.Address, error)

	// AddressCID renders an address as a CIDv1 (raw codec, sha2-256)
	// for interop with content-addressed tooling.
	AddressCID(a core.Address) (cid.Cid, error)

	// Verify checks that id is the derived identifier of (parent, key).
	Verify(id core.Identifier, parent core.ParentID, key keytag.Key) error
}

type deriver struct{}

// NewDeriver returns the namespace's address deriver.
func NewDeriver() Deriver {
	return &deriver{}
}

func (d *deriver) DeriveAddress(parent core.ParentID, key keytag.Key) (core.Address, error) {
	enc, err := keytag.EncodeKey(key)
	if err != nil {
		return core.Address{}, err
	}

	buf := make([]byte, 0, 1+core.AddressLen+len(enc))
	buf = append(buf, ScopeDerivedAddress)
	buf = append(buf, parent[:]...)
	buf = append(buf, enc...)

	mh, err := multihash.Sum(buf, multihash.SHA2_256, -1)
	if err != nil {
		return core.Address{}, fmt.Errorf("failed to compute multihash: %w", err)
	}

	dec, err := multihash.Decode(mh)
	if err != nil {
		return core.Address{}, fmt.Errorf("failed to decode multihash: %w", err)
	}
	return core.AddressFromBytes(dec.Digest)
}

func (d *deriver) AddressCID(a core.Address) (cid.Cid, error) {
	mh, err := multihash.Encode(a[:], multihash.SHA2_256)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

func (d *deriver) Verify(id core.Identifier, parent core.ParentID, key keytag.Key) error {
	want, err := d.DeriveAddress(parent, key)
	if err != nil {
		return err
	}
	if id.Addr != want {
		return fmt.Errorf("%w: identifier %s is not derived from %s with the given key", core.ErrCorrupt, id, parent)
	}
	return nil
}
