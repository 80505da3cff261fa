package core

import (
	"encoding/hex"
	"fmt"
)

// AddressLen is the width of every address in the namespace. It equals the
// digest width of the namespace hash; changing either is a breaking
// migration for all previously derived addresses.
const AddressLen = 32

// ParentID identifies the owning entity whose ledger records claims.
type ParentID [AddressLen]byte

// Address is a derived child address. It is a pure computed value, not an
// entity: the same parent and canonically-equal key always produce the
// same Address.
type Address [AddressLen]byte

// Identifier is a live handle minted for a claimed address. Its canonical
// address always equals the Address it was claimed at.
type Identifier struct {
	Addr Address
}

func (p ParentID) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (id Identifier) String() string {
	return id.Addr.String()
}

// ParentIDFromBytes copies b into a ParentID.
func ParentIDFromBytes(b []byte) (ParentID, error) {
	var p ParentID
	if len(b) != AddressLen {
		return p, fmt.Errorf("%w: parent id must be %d bytes, got %d", ErrInvalidInput, AddressLen, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// AddressFromBytes copies b into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, fmt.Errorf("%w: address must be %d bytes, got %d", ErrInvalidInput, AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}
