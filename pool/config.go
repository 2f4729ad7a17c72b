package pool

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/poolkit/internal/region"
)

// Backing is the reserved memory a pool hands allocations out of.
type Backing interface {
	Bytes() []byte
	Release() error
}

// ReserveFunc reserves size bytes of backing memory for a new pool.
type ReserveFunc func(size int64) (Backing, error)

// Config tunes the capacity management of a Registry and the pools it opens.
// Start from DefaultConfig and override fields as needed.
type Config struct {
	// Initial slot counts. Each table grows by GrowthFactor once its
	// occupancy exceeds FillFactor of its capacity.
	ArenaInitCapacity    int
	GapIndexInitCapacity int
	RegistryInitCapacity int

	FillFactor   float64 // occupancy ratio that triggers growth, in (0, 1]
	GrowthFactor float64 // capacity multiplier applied on growth, > 1

	// Hard limits, 0 means unlimited. Growth past a limit fails with
	// ErrOutOfMemory once the table is completely full. A MaxGapEntries cap
	// applies to Deallocate as well as Allocate, since a free that merges
	// with no neighbor adds a gap.
	MaxArenaSlots int
	MaxGapEntries int
	MaxPools      int
	MaxReserved   int64 // total backing bytes across all open pools

	// Reserve supplies backing memory. Nil uses an anonymous mapping.
	Reserve ReserveFunc

	// Logger receives lifecycle and growth events. Nil uses logger.L.
	Logger *slog.Logger
}

// DefaultConfig mirrors the classic pool allocator constants: 20 registry
// slots, 40 arena slots and 40 gap entries, growing x2 past 75% fill.
var DefaultConfig = Config{
	ArenaInitCapacity:    40,
	GapIndexInitCapacity: 40,
	RegistryInitCapacity: 20,
	FillFactor:           0.75,
	GrowthFactor:         2,
}

// Validate reports the first nonsensical setting.
func (c Config) Validate() error {
	switch {
	case c.ArenaInitCapacity < 1:
		return fmt.Errorf("pool: ArenaInitCapacity must be >= 1, got %d", c.ArenaInitCapacity)
	case c.GapIndexInitCapacity < 1:
		return fmt.Errorf("pool: GapIndexInitCapacity must be >= 1, got %d", c.GapIndexInitCapacity)
	case c.RegistryInitCapacity < 1:
		return fmt.Errorf("pool: RegistryInitCapacity must be >= 1, got %d", c.RegistryInitCapacity)
	case c.FillFactor <= 0 || c.FillFactor > 1:
		return fmt.Errorf("pool: FillFactor must be in (0, 1], got %v", c.FillFactor)
	case c.GrowthFactor <= 1:
		return fmt.Errorf("pool: GrowthFactor must be > 1, got %v", c.GrowthFactor)
	case c.MaxArenaSlots < 0 || c.MaxGapEntries < 0 || c.MaxPools < 0 || c.MaxReserved < 0:
		return fmt.Errorf("pool: limits must not be negative")
	case c.MaxArenaSlots > 0 && c.MaxArenaSlots < c.ArenaInitCapacity:
		return fmt.Errorf("pool: MaxArenaSlots %d below ArenaInitCapacity %d",
			c.MaxArenaSlots, c.ArenaInitCapacity)
	case c.MaxGapEntries > 0 && c.MaxGapEntries < c.GapIndexInitCapacity:
		return fmt.Errorf("pool: MaxGapEntries %d below GapIndexInitCapacity %d",
			c.MaxGapEntries, c.GapIndexInitCapacity)
	case c.MaxPools > 0 && c.MaxPools < c.RegistryInitCapacity:
		return fmt.Errorf("pool: MaxPools %d below RegistryInitCapacity %d",
			c.MaxPools, c.RegistryInitCapacity)
	}
	return nil
}

func reserveRegion(size int64) (Backing, error) {
	r, err := region.Reserve(size)
	if err != nil {
		return nil, err
	}
	return r, nil
}
