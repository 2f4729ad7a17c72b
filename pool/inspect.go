package pool

import (
	"fmt"
	"iter"
)

// Segments returns the pool layout in address order. It does not modify the
// pool and may be called between any other operations.
func (p *Pool) Segments() []Segment {
	out := make([]Segment, 0, p.list.n)
	for seg := range p.All() {
		out = append(out, seg)
	}
	return out
}

// All iterates the pool layout in address order. Each call starts a fresh
// walk. Mutating the pool during iteration is not supported.
func (p *Pool) All() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		if p.closed {
			return
		}
		for i := p.list.head; i != nilSlot; {
			seg := p.arena.at(i)
			if !yield(Segment{Offset: seg.offset, Size: seg.size, Allocated: seg.state == segAllocated}) {
				return
			}
			i = seg.next
		}
	}
}

// Check verifies every layout invariant: the segments tile the region
// exactly, no two neighbors are both free, the counters match the layout,
// and the gap index holds exactly the free segments in order.
func (p *Pool) Check() error {
	if p.closed {
		return ErrInvalidHandle
	}

	var (
		total, allocated int64
		allocs, free, n  int
		prev             = nilSlot
		prevFree         bool
	)
	for i := p.list.head; i != nilSlot; i = p.arena.at(i).next {
		if n >= p.arena.capacity() {
			return fmt.Errorf("%w: segment list longer than arena (cycle?)", ErrCorrupt)
		}
		seg := p.arena.at(i)
		switch {
		case !seg.occupied:
			return fmt.Errorf("%w: slot %d linked but unoccupied", ErrCorrupt, i)
		case seg.prev != prev:
			return fmt.Errorf("%w: slot %d prev=%d, want %d", ErrCorrupt, i, seg.prev, prev)
		case seg.offset != total:
			return fmt.Errorf("%w: slot %d at offset %d, want %d", ErrCorrupt, i, seg.offset, total)
		case seg.size <= 0:
			return fmt.Errorf("%w: slot %d has size %d", ErrCorrupt, i, seg.size)
		}

		if seg.state == segFree {
			if prevFree {
				return fmt.Errorf("%w: adjacent free segments at offset %d", ErrCorrupt, seg.offset)
			}
			pos := int(seg.gapPos)
			if pos < 0 || pos >= p.gaps.len() || p.gaps.entries[pos].slot != i {
				return fmt.Errorf("%w: free slot %d missing from gap index", ErrCorrupt, i)
			}
			if p.gaps.entries[pos].size != seg.size {
				return fmt.Errorf("%w: gap entry for slot %d has size %d, segment %d",
					ErrCorrupt, i, p.gaps.entries[pos].size, seg.size)
			}
			free++
		} else {
			if seg.gapPos != nilSlot {
				return fmt.Errorf("%w: allocated slot %d is in the gap index", ErrCorrupt, i)
			}
			allocated += seg.size
			allocs++
		}

		total += seg.size
		prevFree = seg.state == segFree
		prev = i
		n++
	}

	switch {
	case total != p.size:
		return fmt.Errorf("%w: segments cover %d bytes, pool has %d", ErrCorrupt, total, p.size)
	case n != p.list.n || n != p.arena.used:
		return fmt.Errorf("%w: %d linked segments, list counts %d, arena holds %d",
			ErrCorrupt, n, p.list.n, p.arena.used)
	case allocated != p.allocated:
		return fmt.Errorf("%w: allocated bytes %d, counter %d", ErrCorrupt, allocated, p.allocated)
	case allocs != p.allocs:
		return fmt.Errorf("%w: %d allocated segments, counter %d", ErrCorrupt, allocs, p.allocs)
	case free != p.gaps.len():
		return fmt.Errorf("%w: %d free segments, gap index holds %d", ErrCorrupt, free, p.gaps.len())
	case p.gaps.len() > p.gaps.capacity:
		return fmt.Errorf("%w: gap index holds %d entries over capacity %d",
			ErrCorrupt, p.gaps.len(), p.gaps.capacity)
	}

	for j := 1; j < p.gaps.len(); j++ {
		a, b := p.gaps.entries[j-1], p.gaps.entries[j]
		if a.size < b.size || (a.size == b.size && a.seq < b.seq) {
			return fmt.Errorf("%w: gap index out of order at %d", ErrCorrupt, j)
		}
	}
	return nil
}
