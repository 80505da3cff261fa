package derivens

import (
	"context"

	"github.com/agenthands/derivens/pkg/core"
	"github.com/agenthands/derivens/pkg/keytag"
)

// Alias core types so callers only need this package for the common path.
type ParentID = core.ParentID
type Address = core.Address
type Identifier = core.Identifier

// Namespace is the primary interface: a deterministic derived-identifier
// namespace over per-parent claim ledgers.
//
// Claim and Restore mutate a parent's ledger and are serialized by the
// namespace (single writer). Exists and DeriveAddress are read-only and
// safe to call concurrently.
type Namespace interface {
	// Claim reserves the derived address of (parent, key) and returns a
	// fresh identifier bound to it. A second claim for the same pair
	// fails with ErrAlreadyClaimed: the ledger, not the child's
	// liveness, is the source of truth.
	Claim(ctx context.Context, parent ParentID, key keytag.Key) (Identifier, error)

	// Exists reports whether (parent, key) was ever claimed. It says
	// nothing about whether the child is still alive.
	Exists(ctx context.Context, parent ParentID, key keytag.Key) (bool, error)

	// Restore hands a previously claimed identifier back to the ledger
	// so a future Claim with the same key can reuse it. It fails with
	// ErrInvalidParent if the identifier's address was never claimed
	// under parent, and with ErrUnsupported while the restore gate is
	// off (in which case no ledger mutation is committed).
	Restore(ctx context.Context, parent ParentID, id Identifier) error

	// DeriveAddress computes the address of (parent, key) without
	// touching the ledger. Any party can predict a child's address
	// before the child exists.
	DeriveAddress(parent ParentID, key keytag.Key) (Address, error)

	Close() error
}
