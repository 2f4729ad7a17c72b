package pool

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := newTestRegistry(t, nil)

	require.ErrorIs(t, r.Teardown(), ErrNotInitialized, "teardown before init")

	require.NoError(t, r.Init())
	require.ErrorIs(t, r.Init(), ErrAlreadyInitialized)
	assert.True(t, r.Active())
	assert.Equal(t, DefaultConfig.RegistryInitCapacity, r.Capacity())

	require.NoError(t, r.Teardown())
	assert.False(t, r.Active())
	require.ErrorIs(t, r.Teardown(), ErrNotInitialized, "double teardown")

	// A session can be started again after teardown.
	require.NoError(t, r.Init())
	require.NoError(t, r.Teardown())
}

func TestRegistry_OpenInitializesLazily(t *testing.T) {
	r := newTestRegistry(t, nil)
	require.False(t, r.Active())

	h, err := r.Open(1000, FirstFit)
	require.NoError(t, err)
	assert.True(t, r.Active())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, int64(1000), r.Reserved())

	segs, err := r.Segments(h)
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Offset: 0, Size: 1000, Allocated: false}}, segs)

	require.ErrorIs(t, r.Teardown(), ErrPoolsStillOpen)
	require.NoError(t, r.Close(h))
	assert.Equal(t, int64(0), r.Reserved())
	require.NoError(t, r.Teardown())
}

func TestRegistry_OpenRejectsBadArguments(t *testing.T) {
	r := newTestRegistry(t, nil)

	_, err := r.Open(0, FirstFit)
	require.ErrorIs(t, err, ErrInvalidSize)
	_, err = r.Open(-5, BestFit)
	require.ErrorIs(t, err, ErrInvalidSize)
	_, err = r.Open(100, Policy(9))
	require.ErrorIs(t, err, ErrInvalidPolicy)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CloseRequiresPristinePool(t *testing.T) {
	r, h, p := openTestPool(t, 1000, BestFit)

	a := mustAlloc(t, p, 10)
	b := mustAlloc(t, p, 10)
	require.ErrorIs(t, r.Close(h), ErrNotEmpty)

	mustFree(t, p, a)
	require.ErrorIs(t, r.Close(h), ErrNotEmpty, "one allocation still live")

	mustFree(t, p, b)
	require.NoError(t, r.Close(h))
	assert.True(t, p.Closed())

	require.ErrorIs(t, r.Close(h), ErrInvalidHandle, "double close")
}

func TestRegistry_ClosedPoolRejectsOperations(t *testing.T) {
	r, h, p := openTestPool(t, 1000, FirstFit)
	require.NoError(t, r.Close(h))

	_, err := p.Allocate(10)
	require.ErrorIs(t, err, ErrInvalidHandle)
	require.ErrorIs(t, p.Check(), ErrInvalidHandle)
	assert.Empty(t, p.Segments())

	_, err = r.Allocate(h, 10)
	require.ErrorIs(t, err, ErrInvalidHandle)
	require.ErrorIs(t, r.Deallocate(h, Allocation{}), ErrInvalidHandle)
	_, err = r.Segments(h)
	require.ErrorIs(t, err, ErrInvalidHandle)
	_, err = r.Stats(h)
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestRegistry_StaleHandleAfterSlotReuse(t *testing.T) {
	r := newTestRegistry(t, nil)

	h1, err := r.Open(100, FirstFit)
	require.NoError(t, err)
	require.NoError(t, r.Close(h1))

	h2, err := r.Open(100, FirstFit)
	require.NoError(t, err)
	require.Equal(t, h1.slot, h2.slot, "table slot is reused")

	_, err = r.Pool(h1)
	require.ErrorIs(t, err, ErrInvalidHandle)
	_, err = r.Pool(h2)
	require.NoError(t, err)

	// Handles also die with the session.
	require.NoError(t, r.Close(h2))
	require.NoError(t, r.Teardown())
	h3, err := r.Open(100, FirstFit)
	require.NoError(t, err)
	_, err = r.Pool(h2)
	require.ErrorIs(t, err, ErrInvalidHandle)
	require.NoError(t, r.Close(h3))

	_, err = r.Pool(PoolHandle{})
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestRegistry_ManyPoolsAreIndependent(t *testing.T) {
	r := newTestRegistry(t, nil)

	handles := make([]PoolHandle, 50)
	for i := range handles {
		policy := FirstFit
		if i%2 == 1 {
			policy = BestFit
		}
		h, err := r.Open(int64(100+i), policy)
		require.NoError(t, err)
		handles[i] = h
	}
	assert.Equal(t, 50, r.Len())
	assert.Len(t, r.Handles(), 50)

	// Allocate a different amount from each pool.
	allocs := make([]Allocation, len(handles))
	for i, h := range handles {
		a, err := r.Allocate(h, int64(i+1))
		require.NoError(t, err)
		allocs[i] = a
	}
	for i, h := range handles {
		st, err := r.Stats(h)
		require.NoError(t, err)
		assert.Equal(t, int64(100+i), st.TotalSize)
		assert.Equal(t, int64(i+1), st.AllocatedBytes)
	}

	// An allocation from one pool is foreign to every other.
	require.ErrorIs(t, r.Deallocate(handles[0], allocs[1]), ErrInvalidHandle)

	for i, h := range handles {
		require.NoError(t, r.Deallocate(h, allocs[i]))
		require.NoError(t, r.Close(h))
	}
	require.NoError(t, r.Teardown())
}

// TestRegistry_TableGrowsMultiplicatively verifies the table doubles once
// occupancy passes 75%.
func TestRegistry_TableGrowsMultiplicatively(t *testing.T) {
	r := newTestRegistry(t, nil)

	var handles []PoolHandle
	capacities := []int{}
	for range 40 {
		h, err := r.Open(64, FirstFit)
		require.NoError(t, err)
		handles = append(handles, h)
		capacities = append(capacities, r.Capacity())
	}

	// 16 of 20 is 80%, so the 17th open grows the table to 40; 31 of 40
	// is 77.5%, so the 32nd grows it to 80.
	assert.Equal(t, 20, capacities[15])
	assert.Equal(t, 40, capacities[16])
	assert.Equal(t, 40, capacities[30])
	assert.Equal(t, 80, capacities[31])

	for _, h := range handles {
		require.NoError(t, r.Close(h))
	}
	assert.Equal(t, 80, r.Capacity(), "table does not shrink")
}

func TestRegistry_OutOfMemory(t *testing.T) {
	t.Run("reserve fails", func(t *testing.T) {
		cfg := DefaultConfig
		cfg.Reserve = func(size int64) (Backing, error) { return nil, errReserveRefused }
		r := newTestRegistry(t, &cfg)

		_, err := r.Open(100, FirstFit)
		require.ErrorIs(t, err, ErrOutOfMemory)
		require.ErrorIs(t, err, errReserveRefused)
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, int64(0), r.Reserved())
	})

	t.Run("short backing is released", func(t *testing.T) {
		released := 0
		cfg := DefaultConfig
		cfg.Reserve = func(size int64) (Backing, error) {
			return &failingBacking{data: make([]byte, size/2), released: &released}, nil
		}
		r := newTestRegistry(t, &cfg)

		_, err := r.Open(100, FirstFit)
		require.ErrorIs(t, err, ErrOutOfMemory)
		assert.Equal(t, 1, released)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("reserved byte limit", func(t *testing.T) {
		cfg := DefaultConfig
		cfg.MaxReserved = 1000
		r := newTestRegistry(t, &cfg)

		h1, err := r.Open(600, FirstFit)
		require.NoError(t, err)
		_, err = r.Open(500, FirstFit)
		require.ErrorIs(t, err, ErrOutOfMemory)
		h2, err := r.Open(400, FirstFit)
		require.NoError(t, err)

		require.NoError(t, r.Close(h1))
		h3, err := r.Open(500, FirstFit)
		require.NoError(t, err)
		require.NoError(t, r.Close(h2))
		require.NoError(t, r.Close(h3))
	})

	t.Run("pool table limit", func(t *testing.T) {
		cfg := DefaultConfig
		cfg.RegistryInitCapacity = 2
		cfg.MaxPools = 2
		r := newTestRegistry(t, &cfg)

		h1, err := r.Open(10, FirstFit)
		require.NoError(t, err)
		h2, err := r.Open(10, FirstFit)
		require.NoError(t, err)
		_, err = r.Open(10, FirstFit)
		require.ErrorIs(t, err, ErrOutOfMemory)
		assert.Equal(t, 2, r.Len())

		require.NoError(t, r.Close(h1))
		h3, err := r.Open(10, FirstFit)
		require.NoError(t, err)
		require.NoError(t, r.Close(h2))
		require.NoError(t, r.Close(h3))
	})
}

func TestRegistry_ReleasesBackingOnClose(t *testing.T) {
	released := 0
	cfg := DefaultConfig
	cfg.Reserve = heapReserve(&released)
	r := newTestRegistry(t, &cfg)

	h, err := r.Open(256, BestFit)
	require.NoError(t, err)
	p, err := r.Pool(h)
	require.NoError(t, err)

	a := mustAlloc(t, p, 16)
	buf, err := p.Bytes(a)
	require.NoError(t, err)
	copy(buf, "payload")
	mustFree(t, p, a)

	require.NoError(t, r.Close(h))
	assert.Equal(t, 1, released)
}

func TestRegistry_LogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newTestRegistry(t, &cfg)

	h, err := r.Open(128, FirstFit)
	require.NoError(t, err)
	p, err := r.Pool(h)
	require.NoError(t, err)
	_, err = p.Allocate(1000)
	require.ErrorIs(t, err, ErrNoFit)
	require.NoError(t, r.Close(h))
	require.NoError(t, r.Teardown())

	out := buf.String()
	for _, want := range []string{"registry initialized", "pool opened", "no fit", "pool closed", "registry torn down"} {
		assert.Contains(t, out, want)
	}
}

func TestNewRegistry_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero arena", func(c *Config) { c.ArenaInitCapacity = 0 }},
		{"zero gap index", func(c *Config) { c.GapIndexInitCapacity = 0 }},
		{"zero registry", func(c *Config) { c.RegistryInitCapacity = 0 }},
		{"fill zero", func(c *Config) { c.FillFactor = 0 }},
		{"fill over one", func(c *Config) { c.FillFactor = 1.5 }},
		{"additive growth", func(c *Config) { c.GrowthFactor = 1 }},
		{"negative limit", func(c *Config) { c.MaxPools = -1 }},
		{"arena limit below init", func(c *Config) { c.MaxArenaSlots = 10 }},
		{"gap limit below init", func(c *Config) { c.MaxGapEntries = 10 }},
		{"pool limit below init", func(c *Config) { c.MaxPools = 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig
			tt.mutate(&cfg)
			_, err := NewRegistry(cfg)
			require.Error(t, err)
		})
	}

	require.NoError(t, DefaultConfig.Validate())
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "first", want: FirstFit},
		{in: "First-Fit", want: FirstFit},
		{in: "best", want: BestFit},
		{in: "BEST_FIT", want: BestFit},
		{in: "worst", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "first-fit", FirstFit.String())
	assert.Equal(t, "best-fit", BestFit.String())
	assert.Equal(t, "Policy(7)", Policy(7).String())
}
