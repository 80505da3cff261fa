package derivens

import (
	"fmt"
	"sync"

	"github.com/agenthands/derivens/pkg/core"
)

// IdentityProvider is the object-identity collaborator. NewIdentifier
// mints a fresh identifier whose canonical address equals addr; it must
// never produce two live identifiers sharing an address. Release marks an
// identifier as no longer live (the child was destroyed or handed back),
// which has no effect on the ledger.
type IdentityProvider interface {
	NewIdentifier(a core.Address) (core.Identifier, error)
	Release(id core.Identifier) error
}

// memoryIdentity is the default in-process provider. Hosts with a real
// object store supply their own IdentityProvider instead.
type memoryIdentity struct {
	mu   sync.Mutex
	live map[core.Address]struct{}
}

// NewMemoryIdentity returns an IdentityProvider tracking liveness in
// process memory.
func NewMemoryIdentity() IdentityProvider {
	return &memoryIdentity{live: make(map[core.Address]struct{})}
}

func (m *memoryIdentity) NewIdentifier(a core.Address) (core.Identifier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[a]; ok {
		return core.Identifier{}, fmt.Errorf("%w: a live identifier already exists at %s", core.ErrInvalidInput, a)
	}
	m.live[a] = struct{}{}
	return core.Identifier{Addr: a}, nil
}

func (m *memoryIdentity) Release(id core.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[id.Addr]; !ok {
		return fmt.Errorf("%w: no live identifier at %s", core.ErrNotFound, id.Addr)
	}
	delete(m.live, id.Addr)
	return nil
}
