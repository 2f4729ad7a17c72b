package pool

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestRegistry returns a registry using cfg, or DefaultConfig when nil.
func newTestRegistry(t testing.TB, cfg *Config) *Registry {
	t.Helper()
	c := DefaultConfig
	if cfg != nil {
		c = *cfg
	}
	r, err := NewRegistry(c)
	require.NoError(t, err)
	return r
}

// openTestPool opens a pool of size bytes and returns the registry, handle
// and pool.
func openTestPool(t testing.TB, size int64, policy Policy) (*Registry, PoolHandle, *Pool) {
	t.Helper()
	return openTestPoolWithConfig(t, nil, size, policy)
}

func openTestPoolWithConfig(t testing.TB, cfg *Config, size int64, policy Policy) (*Registry, PoolHandle, *Pool) {
	t.Helper()
	r := newTestRegistry(t, cfg)
	h, err := r.Open(size, policy)
	require.NoError(t, err)
	p, err := r.Pool(h)
	require.NoError(t, err)
	return r, h, p
}

// assertInvariants checks the pool layout against its counters.
func assertInvariants(t testing.TB, p *Pool) {
	t.Helper()
	require.NoError(t, p.Check())
}

// mustAlloc allocates size bytes and fails the test on error.
func mustAlloc(t testing.TB, p *Pool, size int64) Allocation {
	t.Helper()
	a, err := p.Allocate(size)
	require.NoError(t, err, "allocate %d", size)
	assertInvariants(t, p)
	return a
}

// mustFree deallocates a and fails the test on error.
func mustFree(t testing.TB, p *Pool, a Allocation) {
	t.Helper()
	require.NoError(t, p.Deallocate(a), "deallocate %v", a)
	assertInvariants(t, p)
}

// layout renders the pool as a compact string such as "A300 A200 F500".
func layout(p *Pool) string {
	s := ""
	for seg := range p.All() {
		if s != "" {
			s += " "
		}
		if seg.Allocated {
			s += fmt.Sprintf("A%d", seg.Size)
		} else {
			s += fmt.Sprintf("F%d", seg.Size)
		}
	}
	return s
}

// failingBacking counts releases so tests can confirm cleanup.
type failingBacking struct {
	data     []byte
	released *int
}

func (b *failingBacking) Bytes() []byte { return b.data }

func (b *failingBacking) Release() error {
	*b.released++
	b.data = nil
	return nil
}

var errReserveRefused = errors.New("reserve refused")

// heapReserve reserves on the Go heap and counts releases.
func heapReserve(released *int) ReserveFunc {
	return func(size int64) (Backing, error) {
		return &failingBacking{data: make([]byte, size), released: released}, nil
	}
}
