package pool

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/poolkit/internal/logger"
)

// Registry tracks the open pools of one allocator session.
//
// Init starts a session (Open does so lazily) and Teardown ends it once
// every pool is closed. A Registry is not safe for concurrent use; Open and
// Close are the only calls that touch it after a pool is handed out.
type Registry struct {
	cfg Config
	log *slog.Logger

	active   bool
	pools    []*Pool  // len(pools) is the table capacity
	gens     []uint32 // handle generation of each table slot
	open     int
	reserved int64 // backing bytes held by open pools
	grow     growth

	// Monotonic across sessions so handles never outlive their pool.
	nextID  uint64
	nextGen uint32
}

// NewRegistry returns an inactive registry using cfg.
func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Reserve == nil {
		cfg.Reserve = reserveRegion
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.L
	}
	return &Registry{
		cfg:  cfg,
		log:  cfg.Logger,
		grow: newGrowth(cfg, cfg.MaxPools),
	}, nil
}

// Init allocates the pool table.
func (r *Registry) Init() error {
	if r.active {
		return ErrAlreadyInitialized
	}
	r.pools = make([]*Pool, r.cfg.RegistryInitCapacity)
	r.gens = make([]uint32, r.cfg.RegistryInitCapacity)
	r.open, r.reserved = 0, 0
	r.active = true
	r.log.Info("registry initialized", "capacity", len(r.pools))
	return nil
}

// Teardown releases the pool table. Every pool must be closed first.
func (r *Registry) Teardown() error {
	if !r.active {
		return ErrNotInitialized
	}
	if r.open > 0 {
		return fmt.Errorf("%w: %d open", ErrPoolsStillOpen, r.open)
	}
	r.pools, r.gens = nil, nil
	r.active = false
	r.log.Info("registry torn down")
	return nil
}

// Active reports whether the registry is initialized.
func (r *Registry) Active() bool { return r.active }

// Len returns the number of open pools.
func (r *Registry) Len() int { return r.open }

// Capacity returns the current size of the pool table.
func (r *Registry) Capacity() int { return len(r.pools) }

// Reserved returns the backing bytes held by open pools.
func (r *Registry) Reserved() int64 { return r.reserved }

// Open creates a pool of size bytes with the given placement policy,
// initializing the registry if needed. On error nothing is left reserved.
func (r *Registry) Open(size int64, policy Policy) (PoolHandle, error) {
	if size <= 0 {
		return PoolHandle{}, fmt.Errorf("%w: pool of %d bytes", ErrInvalidSize, size)
	}
	if !policy.valid() {
		return PoolHandle{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, policy)
	}
	if !r.active {
		if err := r.Init(); err != nil {
			return PoolHandle{}, err
		}
	}

	capacity, err := r.grow.next(r.open, len(r.pools))
	if err != nil {
		return PoolHandle{}, fmt.Errorf("%w: pool table full at %d pools", err, len(r.pools))
	}
	if limit := r.cfg.MaxReserved; limit > 0 && r.reserved+size > limit {
		return PoolHandle{}, fmt.Errorf("%w: %d bytes reserved, %d more exceeds limit %d",
			ErrOutOfMemory, r.reserved, size, limit)
	}

	p, err := newPool(r.nextID+1, size, policy, r.cfg, r.log)
	if err != nil {
		return PoolHandle{}, err
	}

	if capacity > len(r.pools) {
		r.resize(capacity)
	}
	slot := r.freeSlot()

	r.nextID++
	r.nextGen++
	r.pools[slot] = p
	r.gens[slot] = r.nextGen
	r.open++
	r.reserved += size

	h := PoolHandle{slot: int32(slot), gen: r.nextGen}
	r.log.Info("pool opened", "handle", h, "id", p.id, "size", size, "policy", policy)
	return h, nil
}

// Close releases a pristine pool. A pool with live allocations, or whose
// free space is split into more than one gap, is left open.
func (r *Registry) Close(h PoolHandle) error {
	p, err := r.Pool(h)
	if err != nil {
		return err
	}
	if !p.pristine() {
		return fmt.Errorf("%w: %d allocations, %d gaps", ErrNotEmpty, p.allocs, p.gaps.len())
	}

	size := p.size
	if err := p.release(); err != nil {
		r.log.Warn("backing release failed", "handle", h, "error", err)
	}
	r.pools[h.slot] = nil
	r.open--
	r.reserved -= size
	r.log.Info("pool closed", "handle", h, "size", size)
	return nil
}

// Pool resolves h to its open pool.
func (r *Registry) Pool(h PoolHandle) (*Pool, error) {
	if !r.active || h.slot < 0 || int(h.slot) >= len(r.pools) {
		return nil, ErrInvalidHandle
	}
	p := r.pools[h.slot]
	if p == nil || r.gens[h.slot] != h.gen {
		return nil, ErrInvalidHandle
	}
	return p, nil
}

// Handles returns the handles of every open pool in table order.
func (r *Registry) Handles() []PoolHandle {
	out := make([]PoolHandle, 0, r.open)
	for i, p := range r.pools {
		if p != nil {
			out = append(out, PoolHandle{slot: int32(i), gen: r.gens[i]})
		}
	}
	return out
}

// Allocate is shorthand for resolving h and calling Pool.Allocate.
func (r *Registry) Allocate(h PoolHandle, size int64) (Allocation, error) {
	p, err := r.Pool(h)
	if err != nil {
		return Allocation{}, err
	}
	return p.Allocate(size)
}

// Deallocate is shorthand for resolving h and calling Pool.Deallocate.
func (r *Registry) Deallocate(h PoolHandle, a Allocation) error {
	p, err := r.Pool(h)
	if err != nil {
		return err
	}
	return p.Deallocate(a)
}

// Segments is shorthand for resolving h and calling Pool.Segments.
func (r *Registry) Segments(h PoolHandle) ([]Segment, error) {
	p, err := r.Pool(h)
	if err != nil {
		return nil, err
	}
	return p.Segments(), nil
}

// Stats is shorthand for resolving h and calling Pool.Stats.
func (r *Registry) Stats(h PoolHandle) (Stats, error) {
	p, err := r.Pool(h)
	if err != nil {
		return Stats{}, err
	}
	return p.Stats(), nil
}

func (r *Registry) resize(capacity int) {
	from := len(r.pools)
	pools := make([]*Pool, capacity)
	copy(pools, r.pools)
	gens := make([]uint32, capacity)
	copy(gens, r.gens)
	r.pools, r.gens = pools, gens
	r.log.Debug("pool table grown", "from", from, "to", capacity)
}

// freeSlot returns the lowest empty table slot. Capacity must be planned.
func (r *Registry) freeSlot() int {
	for i, p := range r.pools {
		if p == nil {
			return i
		}
	}
	panic("pool: registry table has no free slot after growth")
}
