// Package pool implements a segment-list memory pool allocator.
//
// # Overview
//
// A Pool owns one fixed backing region and hands out variable-size
// allocations from it. Free space is tracked two ways at once:
//
//   - an address-ordered doubly linked list of segments that tiles the whole
//     region, used for first-fit placement and for coalescing, and
//   - a gap index holding only the free segments, sorted by size descending,
//     used for best-fit placement.
//
// Segments live in a growable slot arena and link to each other by slot
// index, so growing the arena never invalidates a link.
//
// # Usage Example
//
//	reg, err := pool.NewRegistry(pool.DefaultConfig)
//	if err != nil {
//	    return err
//	}
//	h, err := reg.Open(1<<20, pool.BestFit)
//	if err != nil {
//	    return err
//	}
//	p, _ := reg.Pool(h)
//
//	a, err := p.Allocate(256)
//	if err != nil {
//	    return err // errors.Is(err, pool.ErrNoFit) when nothing fits
//	}
//	buf, _ := p.Bytes(a)
//	copy(buf, payload)
//
//	_ = p.Deallocate(a)
//	_ = reg.Close(h)
//	_ = reg.Teardown()
//
// # Placement
//
// FirstFit walks the segment list from the lowest address and takes the
// first free segment that is large enough. BestFit takes the smallest free
// segment that is large enough; among equal sizes it takes the one most
// recently returned to the gap index. Sizes are exact byte counts, no
// alignment padding is added.
//
// # Coalescing
//
// Deallocate merges the freed segment with a free successor, then merges the
// result into a free predecessor. No two neighboring segments are ever both
// free, so a pool whose allocations have all been released is a single gap
// again and can be closed.
//
// # Capacity
//
// The arena, the gap index and the registry table all start small and grow
// by Config.GrowthFactor once their occupancy passes Config.FillFactor
// (x2 past 75% by default). Any growth an operation needs is secured before
// the layout changes, so an ErrOutOfMemory leaves the pool untouched.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. Protect each pool with
// its own lock if it is shared; separate pools never contend.
//
// # Debugging
//
// Set POOLKIT_LOG_ALLOC=1 to send growth and no-fit events to stderr, or
// pass a logger in Config.Logger. Pool.Check verifies every layout invariant
// and Pool.WriteStats prints a summary.
package pool
