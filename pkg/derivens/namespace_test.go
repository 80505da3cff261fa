package derivens

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/agenthands/derivens/internal/testkit"
	"github.com/agenthands/derivens/pkg/core"
	"github.com/agenthands/derivens/pkg/keytag"
	"github.com/agenthands/derivens/pkg/ledger"
	"github.com/agenthands/derivens/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, restore bool, opts ...Option) Namespace {
	t.Helper()
	cfg := Config{
		Ledger:  LedgerConfig{Backend: "memory"},
		Restore: RestoreConfig{Enabled: restore},
	}
	ns, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ns.Close() })
	return ns
}

func TestClaimScenario(t *testing.T) {
	ctx := context.Background()
	ns := openMemory(t, false)
	parent := testkit.Parent(0x02)

	demoAddr, err := ns.DeriveAddress(parent, keytag.UTF8("demo"))
	require.NoError(t, err)

	d1, err := ns.Claim(ctx, parent, keytag.UTF8("demo"))
	require.NoError(t, err)
	assert.Equal(t, demoAddr, d1.Addr, "claim must bind the identifier to the derived address")

	d2, err := ns.Claim(ctx, parent, keytag.UTF8("another"))
	require.NoError(t, err)
	assert.NotEqual(t, d1.Addr, d2.Addr)

	ok, err := ns.Exists(ctx, parent, keytag.UTF8("demo"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ns.Exists(ctx, parent, keytag.UTF8("missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ns.Claim(ctx, parent, keytag.UTF8("demo"))
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestClaimIsTypeSensitive(t *testing.T) {
	ctx := context.Background()
	ns := openMemory(t, false)
	parent := testkit.Parent(0x02)

	// Same payload bytes under two static types are two children.
	_, err := ns.Claim(ctx, parent, keytag.UTF8("foo"))
	require.NoError(t, err)
	_, err = ns.Claim(ctx, parent, keytag.Bytes("foo"))
	require.NoError(t, err)

	ok, err := ns.Exists(ctx, parent, keytag.UTF8("foo"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	ns := openMemory(t, false)

	key := keytag.U64(1)
	a, err := ns.Claim(ctx, testkit.Parent(0x0a), key)
	require.NoError(t, err)
	b, err := ns.Claim(ctx, testkit.Parent(0x0b), key)
	require.NoError(t, err)

	assert.NotEqual(t, a.Addr, b.Addr)
}

func TestLedgerPermanence(t *testing.T) {
	ctx := context.Background()
	identity := NewMemoryIdentity()
	ns := openMemory(t, false, WithIdentity(identity))
	parent := testkit.Parent(0x02)

	id, err := ns.Claim(ctx, parent, keytag.UTF8("demo"))
	require.NoError(t, err)

	// Destroy the child via the identity collaborator. The ledger entry
	// must survive: membership means "was claimed", not "is alive".
	require.NoError(t, identity.Release(id))

	ok, err := ns.Exists(ctx, parent, keytag.UTF8("demo"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ns.Claim(ctx, parent, keytag.UTF8("demo"))
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestDeriveAddressNeedsNoClaim(t *testing.T) {
	ctx := context.Background()
	ns := openMemory(t, false)
	parent := testkit.Parent(0x02)
	key := keytag.UTF8("predicted")

	// Predict first, claim later: the prediction must hold.
	predicted, err := ns.DeriveAddress(parent, key)
	require.NoError(t, err)

	ok, err := ns.Exists(ctx, parent, key)
	require.NoError(t, err)
	require.False(t, ok, "prediction must not mutate the ledger")

	id, err := ns.Claim(ctx, parent, key)
	require.NoError(t, err)
	assert.Equal(t, predicted, id.Addr)
}

func TestClaimAfterClose(t *testing.T) {
	ctx := context.Background()
	ns := openMemory(t, false)
	require.NoError(t, ns.Close())

	_, err := ns.Claim(ctx, testkit.Parent(0x02), keytag.U64(1))
	assert.ErrorIs(t, err, ErrClosed)

	err = ns.Restore(ctx, testkit.Parent(0x02), Identifier{})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = ns.Exists(ctx, testkit.Parent(0x02), keytag.U64(1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestExistsAfterCloseOnPebble(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "derivens-ns-close-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ns, err := Open(ctx, Config{Dir: dir})
	require.NoError(t, err)

	parent := testkit.Parent(0x02)
	_, err = ns.Claim(ctx, parent, keytag.UTF8("demo"))
	require.NoError(t, err)
	require.NoError(t, ns.Close())

	// Must surface ErrClosed rather than reaching the closed db.
	_, err = ns.Exists(ctx, parent, keytag.UTF8("demo"))
	assert.ErrorIs(t, err, ErrClosed)
}

// failingLedger wraps a real ledger but refuses inserts, to exercise the
// claim rollback path.
type failingLedger struct {
	ledger.Ledger
	insertErr error
}

func (f *failingLedger) Insert(b ledger.Batch, parent core.ParentID, a core.Address, r *record.ClaimRecord) error {
	return f.insertErr
}

func TestClaimRollbackReleasesIdentity(t *testing.T) {
	ctx := context.Background()
	identity := NewMemoryIdentity()
	boom := errors.New("ledger write refused")
	led := &failingLedger{Ledger: ledger.NewMemory(), insertErr: boom}

	ns, err := Open(ctx, Config{}, WithLedger(led), WithIdentity(identity))
	require.NoError(t, err)
	defer ns.Close()

	parent := testkit.Parent(0x02)
	_, err = ns.Claim(ctx, parent, keytag.U64(1))
	assert.ErrorIs(t, err, boom)

	// The identifier minted before the failed insert was released: the
	// address can be minted again, so a retried claim is not wedged.
	a, err := ns.DeriveAddress(parent, keytag.U64(1))
	require.NoError(t, err)
	_, err = identity.NewIdentifier(a)
	assert.NoError(t, err)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Ledger: LedgerConfig{Backend: "bolt"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Default backend is pebble, which needs a directory.
	_, err = Open(ctx, Config{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPebbleBackedNamespace(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "derivens-ns-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := Config{Dir: dir}
	parent := testkit.Parent(0x02)

	ns, err := Open(ctx, cfg)
	require.NoError(t, err)

	id, err := ns.Claim(ctx, parent, keytag.UTF8("demo"))
	require.NoError(t, err)
	require.NoError(t, ns.Close())

	// The claim survives a process restart; only the ledger is the
	// source of truth, so the fresh identity provider does not matter.
	ns, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer ns.Close()

	ok, err := ns.Exists(ctx, parent, keytag.UTF8("demo"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ns.Claim(ctx, parent, keytag.UTF8("demo"))
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	again, err := ns.DeriveAddress(parent, keytag.UTF8("demo"))
	require.NoError(t, err)
	assert.Equal(t, id.Addr, again, "derivation must be stable across restarts")
}

func TestMemoryIdentity(t *testing.T) {
	identity := NewMemoryIdentity()
	var a core.Address
	a[0] = 1

	id, err := identity.NewIdentifier(a)
	require.NoError(t, err)
	assert.Equal(t, a, id.Addr)

	_, err = identity.NewIdentifier(a)
	assert.ErrorIs(t, err, core.ErrInvalidInput, "two live identifiers must never share an address")

	require.NoError(t, identity.Release(id))
	assert.ErrorIs(t, identity.Release(id), core.ErrNotFound)

	// After release the address can be minted again.
	_, err = identity.NewIdentifier(a)
	assert.NoError(t, err)
}
