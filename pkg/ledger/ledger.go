package ledger

import (
	"context"
	"fmt"

	"github.com/agenthands/derivens/pkg/core"
	"github.com/agenthands/derivens/pkg/record"
	"github.com/cockroachdb/pebble"
)

// PrefixClaims is the keyspace prefix for claim records. A ledger key is
// the prefix followed by the parent identifier and the derived address.
var PrefixClaims = []byte("cl:")

// Batch buffers ledger writes. Commit applies them atomically; Close
// without Commit discards them. Either way Close must be called.
type Batch interface {
	Commit() error
	Close() error
}

// Ledger is the per-parent claim store. There is deliberately no delete:
// once a record exists it stays, so membership answers "was this address
// ever claimed", independent of the child's liveness.
//
// Insert and Update take an optional Batch; with a nil batch the write is
// applied immediately and durably. Mutation requires the single-writer
// discipline the namespace manager enforces.
type Ledger interface {
	Exists(ctx context.Context, parent core.ParentID, a core.Address) (bool, error)
	Get(ctx context.Context, parent core.ParentID, a core.Address) (*record.ClaimRecord, bool, error)

	// Insert writes the first record for an address. It fails with
	// ErrAlreadyClaimed if any record exists.
	Insert(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error

	// Update replaces an existing record. It fails with ErrNotFound if
	// the address was never claimed.
	Update(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error

	NewBatch() Batch
	Close() error
}

type pebbleLedger struct {
	db    *pebble.DB
	codec record.Codec
}

// Open opens a Pebble-based ledger in the specified directory.
func Open(dir string) (Ledger, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &pebbleLedger{db: db, codec: record.NewCodec()}, nil
}

func (l *pebbleLedger) Close() error {
	return l.db.Close()
}

type pebbleBatch struct {
	b *pebble.Batch
}

func (pb *pebbleBatch) Commit() error { return pb.b.Commit(pebble.Sync) }
func (pb *pebbleBatch) Close() error  { return pb.b.Close() }

func (l *pebbleLedger) NewBatch() Batch {
	return &pebbleBatch{b: l.db.NewBatch()}
}

func (l *pebbleLedger) Exists(ctx context.Context, parent core.ParentID, a core.Address) (bool, error) {
	_, closer, err := l.db.Get(claimKey(parent, a))
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

func (l *pebbleLedger) Get(ctx context.Context, parent core.ParentID, a core.Address) (*record.ClaimRecord, bool, error) {
	val, closer, err := l.db.Get(claimKey(parent, a))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()

	r, err := l.codec.Decode(val)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (l *pebbleLedger) Insert(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error {
	ok, err := l.Exists(context.Background(), parent, a)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: record exists for %s under %s", core.ErrAlreadyClaimed, a, parent)
	}
	return l.set(b, parent, a, r)
}

func (l *pebbleLedger) Update(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error {
	ok, err := l.Exists(context.Background(), parent, a)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no record for %s under %s", core.ErrNotFound, a, parent)
	}
	return l.set(b, parent, a, r)
}

func (l *pebbleLedger) set(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error {
	val, err := l.codec.Encode(r)
	if err != nil {
		return err
	}

	key := claimKey(parent, a)
	if b != nil {
		pb, ok := b.(*pebbleBatch)
		if !ok {
			return fmt.Errorf("%w: batch does not belong to this ledger", core.ErrInvalidInput)
		}
		return pb.b.Set(key, val, nil)
	}
	return l.db.Set(key, val, pebble.Sync)
}

func claimKey(parent core.ParentID, a core.Address) []byte {
	key := make([]byte, 0, len(PrefixClaims)+2*core.AddressLen)
	key = append(key, PrefixClaims...)
	key = append(key, parent[:]...)
	return append(key, a[:]...)
}
