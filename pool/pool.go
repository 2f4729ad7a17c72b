package pool

import (
	"fmt"
	"log/slog"
)

// Pool hands out variable-size allocations from one fixed backing region.
//
// A Pool is not safe for concurrent use; guard each pool with its own lock
// if it is shared between goroutines. Pools never contend with each other.
type Pool struct {
	id      uint64
	policy  Policy
	size    int64
	backing Backing
	mem     []byte

	arena arena
	list  segList
	gaps  gapIndex

	allocated int64 // bytes in allocated segments
	allocs    int   // number of allocated segments

	stats  OpStats
	log    *slog.Logger
	closed bool
}

// newPool reserves size bytes and seeds a single free segment covering them.
func newPool(id uint64, size int64, policy Policy, cfg Config, log *slog.Logger) (*Pool, error) {
	backing, err := cfg.Reserve(size)
	if err != nil {
		return nil, fmt.Errorf("%w: backing region of %d bytes: %w", ErrOutOfMemory, size, err)
	}
	mem := backing.Bytes()
	if int64(len(mem)) < size {
		_ = backing.Release()
		return nil, fmt.Errorf("%w: backing region holds %d of %d bytes", ErrOutOfMemory, len(mem), size)
	}

	p := &Pool{
		id:      id,
		policy:  policy,
		size:    size,
		backing: backing,
		mem:     mem[:size:size],
		log:     log,
	}
	p.arena = newArena(cfg.ArenaInitCapacity, newGrowth(cfg, cfg.MaxArenaSlots))
	p.list = segList{a: &p.arena, head: nilSlot}
	p.gaps = newGapIndex(&p.arena, cfg.GapIndexInitCapacity, newGrowth(cfg, cfg.MaxGapEntries))

	s := p.arena.acquire()
	seg := p.arena.at(s)
	seg.size = size
	seg.state = segFree
	p.list.seed(s)
	p.gaps.insert(s)
	return p, nil
}

// ID returns the pool's process-unique identifier.
func (p *Pool) ID() uint64 { return p.id }

// Policy returns the placement policy fixed at open.
func (p *Pool) Policy() Policy { return p.policy }

// Size returns the backing size in bytes.
func (p *Pool) Size() int64 { return p.size }

// AllocatedBytes returns the sum of all allocated segment sizes.
func (p *Pool) AllocatedBytes() int64 { return p.allocated }

// Allocations returns the number of live allocations.
func (p *Pool) Allocations() int { return p.allocs }

// Gaps returns the number of free segments.
func (p *Pool) Gaps() int { return p.gaps.len() }

// Closed reports whether the pool has been closed.
func (p *Pool) Closed() bool { return p.closed }

// pristine reports whether the pool is back to one free segment and nothing
// else, the only state in which it may be closed.
func (p *Pool) pristine() bool {
	return p.gaps.len() == 1 && p.allocs == 0
}

// lookup validates a and returns its arena slot.
func (p *Pool) lookup(a Allocation) (int32, error) {
	if p.closed || a.pool != p.id || a.slot < 0 || int(a.slot) >= p.arena.capacity() {
		return nilSlot, ErrInvalidHandle
	}
	seg := p.arena.at(a.slot)
	if !seg.occupied || seg.state != segAllocated || seg.gen != a.gen {
		return nilSlot, ErrInvalidHandle
	}
	return a.slot, nil
}

// Bytes returns the memory of a live allocation. The slice is only valid
// until the allocation is deallocated.
func (p *Pool) Bytes(a Allocation) ([]byte, error) {
	s, err := p.lookup(a)
	if err != nil {
		return nil, err
	}
	seg := p.arena.at(s)
	end := seg.offset + seg.size
	return p.mem[seg.offset:end:end], nil
}

// SizeOf returns the size of a live allocation.
func (p *Pool) SizeOf(a Allocation) (int64, error) {
	s, err := p.lookup(a)
	if err != nil {
		return 0, err
	}
	return p.arena.at(s).size, nil
}

func (p *Pool) growArena(capacity int) {
	if capacity <= p.arena.capacity() {
		return
	}
	from := p.arena.capacity()
	p.arena.resize(capacity)
	p.stats.ArenaGrowths++
	p.log.Debug("segment arena grown", "pool", p.id, "from", from, "to", capacity)
}

func (p *Pool) growGaps(capacity int) {
	if capacity <= p.gaps.capacity {
		return
	}
	from := p.gaps.capacity
	p.gaps.resize(capacity)
	p.stats.GapIndexGrowths++
	p.log.Debug("gap index grown", "pool", p.id, "from", from, "to", capacity)
}

// release frees the backing region and drops every owned structure.
func (p *Pool) release() error {
	err := p.backing.Release()
	p.backing, p.mem = nil, nil
	p.arena = arena{}
	p.list = segList{a: &p.arena, head: nilSlot}
	p.gaps = gapIndex{a: &p.arena}
	p.allocated, p.allocs = 0, 0
	p.closed = true
	return err
}
