package derivens

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/agenthands/derivens/pkg/addr"
	"github.com/agenthands/derivens/pkg/core"
	"github.com/agenthands/derivens/pkg/keytag"
	"github.com/agenthands/derivens/pkg/ledger"
	"github.com/agenthands/derivens/pkg/record"
)

type namespace struct {
	cfg Config

	deriver  addr.Deriver
	claims   ledger.Ledger
	identity IdentityProvider

	mu     sync.Mutex // Single-writer invariant for Claim/Restore
	closed atomic.Bool
}

// Option customizes Open.
type Option func(*namespace)

// WithIdentity supplies the object-identity collaborator. If not
// provided, an in-process provider is used.
func WithIdentity(p IdentityProvider) Option {
	return func(n *namespace) {
		if p != nil {
			n.identity = p
		}
	}
}

// WithLedger supplies a pre-opened claim ledger, bypassing the ledger
// configuration. The namespace takes ownership and closes it.
func WithLedger(l ledger.Ledger) Option {
	return func(n *namespace) {
		if l != nil {
			n.claims = l
		}
	}
}

// Open initializes a derived-identifier namespace.
func Open(ctx context.Context, cfg Config, opts ...Option) (Namespace, error) {
	n := &namespace{
		cfg:     cfg,
		deriver: addr.NewDeriver(),
	}
	for _, o := range opts {
		o(n)
	}

	if n.identity == nil {
		n.identity = NewMemoryIdentity()
	}

	if n.claims == nil {
		switch cfg.Ledger.Backend {
		case "", "pebble":
			dir := cfg.Ledger.Dir
			if dir == "" {
				if cfg.Dir == "" {
					return nil, fmt.Errorf("%w: pebble ledger requires a directory", core.ErrInvalidInput)
				}
				dir = filepath.Join(cfg.Dir, "ledger")
			}
			l, err := ledger.Open(dir)
			if err != nil {
				return nil, fmt.Errorf("failed to open ledger: %w", err)
			}
			n.claims = l
		case "memory":
			n.claims = ledger.NewMemory()
		default:
			return nil, fmt.Errorf("%w: unsupported ledger backend: %s", core.ErrInvalidInput, cfg.Ledger.Backend)
		}
	}

	return n, nil
}

func (n *namespace) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed.Swap(true) {
		return nil
	}
	return n.claims.Close()
}

func (n *namespace) DeriveAddress(parent ParentID, key keytag.Key) (Address, error) {
	return n.deriver.DeriveAddress(parent, key)
}

func (n *namespace) Exists(ctx context.Context, parent ParentID, key keytag.Key) (bool, error) {
	if n.closed.Load() {
		return false, ErrClosed
	}
	a, err := n.deriver.DeriveAddress(parent, key)
	if err != nil {
		return false, err
	}
	return n.claims.Exists(ctx, parent, a)
}

func (n *namespace) Claim(ctx context.Context, parent ParentID, key keytag.Key) (Identifier, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed.Load() {
		return Identifier{}, ErrClosed
	}

	a, err := n.deriver.DeriveAddress(parent, key)
	if err != nil {
		return Identifier{}, err
	}

	rec, ok, err := n.claims.Get(ctx, parent, a)
	if err != nil {
		return Identifier{}, err
	}

	if !ok {
		return n.claimFresh(parent, a)
	}

	switch rec.Status {
	case record.StatusLive:
		return Identifier{}, fmt.Errorf("%w: %s under %s", ErrAlreadyClaimed, a, parent)
	case record.StatusStashed:
		if !n.cfg.Restore.Enabled {
			return Identifier{}, fmt.Errorf("%w: reuse of stashed identifiers is disabled", ErrUnsupported)
		}
		return n.claimStashed(parent, a, rec)
	default:
		return Identifier{}, fmt.Errorf("%w: unknown claim status %d", ErrCorrupt, rec.Status)
	}
}

// claimFresh handles the Absent -> ClaimedLive transition: mint an
// identifier bound to a, then record the claim.
func (n *namespace) claimFresh(parent ParentID, a Address) (Identifier, error) {
	id, err := n.identity.NewIdentifier(a)
	if err != nil {
		return Identifier{}, err
	}

	batch := n.claims.NewBatch()
	defer batch.Close()

	live := &record.ClaimRecord{Version: 1, Status: record.StatusLive}
	if err := n.claims.Insert(batch, parent, a, live); err != nil {
		return Identifier{}, errors.Join(err, n.identity.Release(id))
	}
	if err := batch.Commit(); err != nil {
		return Identifier{}, errors.Join(err, n.identity.Release(id))
	}
	return id, nil
}

// claimStashed handles ClaimedStashed -> ClaimedLive: pop the parked
// identifier and hand it back out. Only reachable with the restore gate
// enabled.
func (n *namespace) claimStashed(parent ParentID, a Address, rec *record.ClaimRecord) (Identifier, error) {
	if !bytes.Equal(rec.Stash, a[:]) {
		return Identifier{}, fmt.Errorf("%w: stash does not match derived address %s", ErrCorrupt, a)
	}

	id, err := n.identity.NewIdentifier(a)
	if err != nil {
		return Identifier{}, err
	}

	batch := n.claims.NewBatch()
	defer batch.Close()

	live := &record.ClaimRecord{Version: 1, Status: record.StatusLive}
	if err := n.claims.Update(batch, parent, a, live); err != nil {
		return Identifier{}, errors.Join(err, n.identity.Release(id))
	}
	if err := batch.Commit(); err != nil {
		return Identifier{}, errors.Join(err, n.identity.Release(id))
	}
	return id, nil
}

func (n *namespace) Restore(ctx context.Context, parent ParentID, id Identifier) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed.Load() {
		return ErrClosed
	}

	rec, ok, err := n.claims.Get(ctx, parent, id.Addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s was never claimed under %s", ErrInvalidParent, id, parent)
	}
	if rec.Status != record.StatusLive {
		return fmt.Errorf("%w: %s is already stashed", ErrInvalidInput, id)
	}

	batch := n.claims.NewBatch()
	defer batch.Close()

	stashed := &record.ClaimRecord{
		Version: 1,
		Status:  record.StatusStashed,
		Stash:   append([]byte(nil), id.Addr[:]...),
	}
	if err := n.claims.Update(batch, parent, id.Addr, stashed); err != nil {
		return err
	}

	if !n.cfg.Restore.Enabled {
		// The staged stash write dies with the batch: a gated-off call
		// must leave no observable mutation.
		return fmt.Errorf("%w: restore is disabled", ErrUnsupported)
	}

	if err := n.identity.Release(id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return batch.Commit()
}
