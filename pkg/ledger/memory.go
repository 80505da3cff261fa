package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/agenthands/derivens/pkg/core"
	"github.com/agenthands/derivens/pkg/record"
)

type memKey struct {
	parent core.ParentID
	addr   core.Address
}

// memoryLedger keeps the ledger in process memory. It implements the same
// contract as the pebble backend, including batch rollback, and is meant
// for embedding a namespace without a data directory.
type memoryLedger struct {
	mu     sync.RWMutex
	recs   map[memKey][]byte
	codec  record.Codec
	closed bool
}

// NewMemory returns an in-memory Ledger.
func NewMemory() Ledger {
	return &memoryLedger{
		recs:  make(map[memKey][]byte),
		codec: record.NewCodec(),
	}
}

func (l *memoryLedger) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

type memoryBatch struct {
	l       *memoryLedger
	pending map[memKey][]byte
}

func (mb *memoryBatch) set(k memKey, val []byte) {
	mb.pending[k] = val
}

func (mb *memoryBatch) Commit() error {
	mb.l.mu.Lock()
	defer mb.l.mu.Unlock()
	if mb.l.closed {
		return core.ErrClosed
	}
	for k, v := range mb.pending {
		mb.l.recs[k] = v
	}
	mb.pending = make(map[memKey][]byte)
	return nil
}

func (mb *memoryBatch) Close() error {
	mb.pending = nil
	return nil
}

func (l *memoryLedger) NewBatch() Batch {
	return &memoryBatch{l: l, pending: make(map[memKey][]byte)}
}

func (l *memoryLedger) Exists(ctx context.Context, parent core.ParentID, a core.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false, core.ErrClosed
	}
	_, ok := l.recs[memKey{parent: parent, addr: a}]
	return ok, nil
}

func (l *memoryLedger) Get(ctx context.Context, parent core.ParentID, a core.Address) (*record.ClaimRecord, bool, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, false, core.ErrClosed
	}
	val, ok := l.recs[memKey{parent: parent, addr: a}]
	l.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	r, err := l.codec.Decode(val)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (l *memoryLedger) Insert(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error {
	ok, err := l.Exists(context.Background(), parent, a)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: record exists for %s under %s", core.ErrAlreadyClaimed, a, parent)
	}
	return l.set(b, parent, a, r)
}

func (l *memoryLedger) Update(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error {
	ok, err := l.Exists(context.Background(), parent, a)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no record for %s under %s", core.ErrNotFound, a, parent)
	}
	return l.set(b, parent, a, r)
}

func (l *memoryLedger) set(b Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error {
	val, err := l.codec.Encode(r)
	if err != nil {
		return err
	}

	k := memKey{parent: parent, addr: a}
	if b != nil {
		mb, ok := b.(*memoryBatch)
		if !ok || mb.l != l {
			return fmt.Errorf("%w: batch does not belong to this ledger", core.ErrInvalidInput)
		}
		mb.set(k, val)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.ErrClosed
	}
	l.recs[k] = val
	return nil
}
