package record

import (
	"fmt"

	"github.com/agenthands/derivens/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

// Status is the claim state of a derived address. There is no "absent"
// status: an unclaimed address simply has no record, and a record never
// goes away once written.
type Status uint8

const (
	// StatusLive marks an address whose identifier is allocated to a
	// live child.
	StatusLive Status = 1
	// StatusStashed marks an address whose identifier was returned and
	// is parked for reuse by a later claim.
	StatusStashed Status = 2
)

// ClaimRecord is the on-disk value stored per derived address in a
// parent's ledger. Stash holds the parked identifier's address bytes and
// is present exactly when Status is StatusStashed.
type ClaimRecord struct {
	Version uint16 `cbor:"version"`
	Status  Status `cbor:"status"`
	Stash   []byte `cbor:"stash,omitempty"`
}

// Codec encodes and decodes ClaimRecords, validating on both ends.
type Codec interface {
	Encode(r *ClaimRecord) ([]byte, error)
	Decode(b []byte) (*ClaimRecord, error)
}

type codec struct {
	encMode cbor.EncMode
}

// NewCodec returns a new Codec implementation.
func NewCodec() Codec {
	// Canonical CBOR (Core Deterministic Encoding Requirements) so a
	// record has exactly one byte representation.
	em, _ := cbor.CanonicalEncOptions().EncMode()
	return &codec{encMode: em}
}

func (c *codec) Encode(r *ClaimRecord) ([]byte, error) {
	if err := validate(r); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return c.encMode.Marshal(r)
}

func (c *codec) Decode(b []byte) (*ClaimRecord, error) {
	var r ClaimRecord
	if err := cbor.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal claim record: %v", core.ErrCorrupt, err)
	}
	if err := validate(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}
	return &r, nil
}

func validate(r *ClaimRecord) error {
	if r.Version != 1 {
		return fmt.Errorf("unsupported claim record version %d", r.Version)
	}

	switch r.Status {
	case StatusLive:
		if len(r.Stash) != 0 {
			return fmt.Errorf("live record carries a stash of %d bytes", len(r.Stash))
		}
	case StatusStashed:
		if len(r.Stash) != core.AddressLen {
			return fmt.Errorf("stashed record has %d stash bytes, want %d", len(r.Stash), core.AddressLen)
		}
	default:
		return fmt.Errorf("unknown claim status %d", r.Status)
	}

	return nil
}
