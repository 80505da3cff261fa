package testkit

import (
	"math/rand"
	"time"

	"github.com/agenthands/derivens/pkg/core"
)

// RNG provides a deterministic random number generator.
// If seed is 0, it uses the current time.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomBytes generates a slice of random bytes of the given length.
func RandomBytes(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	return b
}

// RandomParent generates a random parent identifier.
func RandomParent(r *rand.Rand) core.ParentID {
	var p core.ParentID
	copy(p[:], RandomBytes(r, core.AddressLen))
	return p
}

// Parent returns a parent identifier whose last byte is b and all other
// bytes zero, mirroring short-form addresses like 0x2 in examples.
func Parent(b byte) core.ParentID {
	var p core.ParentID
	p[core.AddressLen-1] = b
	return p
}
