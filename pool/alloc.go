package pool

import "fmt"

// Allocate carves size bytes out of the pool using its placement policy.
//
// The chosen free segment is truncated to size and any remainder becomes a
// new free segment directly after it. Capacity for that remainder is secured
// before the layout is touched, so on any error the pool is unchanged.
func (p *Pool) Allocate(size int64) (Allocation, error) {
	if p.closed {
		return Allocation{}, ErrInvalidHandle
	}
	p.stats.AllocCalls++
	if size <= 0 {
		return Allocation{}, fmt.Errorf("%w: allocate %d bytes", ErrInvalidSize, size)
	}

	s, ok := p.selectSegment(size)
	if !ok {
		p.stats.NoFit++
		p.log.Debug("no fit", "pool", p.id, "need", size, "largest", p.gaps.largest())
		return Allocation{}, fmt.Errorf("%w: need %d bytes, largest gap %d",
			ErrNoFit, size, p.gaps.largest())
	}

	remainder := p.arena.at(s).size - size
	if remainder > 0 {
		arenaCap, err := p.arena.plan()
		if err != nil {
			return Allocation{}, fmt.Errorf("%w: segment arena full at %d slots",
				err, p.arena.capacity())
		}
		// The selected gap leaves the index before the remainder enters it.
		gapCap, err := p.gaps.plan(p.gaps.len() - 1)
		if err != nil {
			return Allocation{}, fmt.Errorf("%w: gap index full at %d entries",
				err, p.gaps.capacity)
		}
		p.growArena(arenaCap)
		p.growGaps(gapCap)
	}

	p.gaps.remove(s)
	seg := p.arena.at(s)
	seg.state = segAllocated
	seg.size = size
	seg.gen++

	if remainder > 0 {
		r := p.arena.acquire()
		rest := p.arena.at(r)
		rest.offset = seg.offset + size
		rest.size = remainder
		rest.state = segFree
		p.list.insertAfter(s, r)
		p.gaps.insert(r)
		p.stats.SplitCount++
	}

	p.allocs++
	p.allocated += size
	p.stats.BytesAllocated += size
	return Allocation{pool: p.id, slot: s, gen: seg.gen}, nil
}

// selectSegment picks the free segment to carve from.
func (p *Pool) selectSegment(size int64) (int32, bool) {
	switch p.policy {
	case BestFit:
		return p.gaps.bestFit(size)
	default:
		return p.list.firstFit(size)
	}
}
