package pool

import "fmt"

// Deallocate returns a to the pool and merges it with free neighbors.
//
// The successor is absorbed first, then the result is absorbed into a free
// predecessor, so after one pass no two adjacent segments are free.
//
// It fails with ErrInvalidHandle for a stale, foreign or already freed
// handle. With Config.MaxGapEntries set it can also fail with
// ErrOutOfMemory when a free that merges with neither neighbor needs a gap
// entry the capped index cannot hold. Either way the pool is unchanged.
func (p *Pool) Deallocate(a Allocation) error {
	s, err := p.lookup(a)
	if err != nil {
		return err
	}

	seg := p.arena.at(s)
	next, prev := seg.next, seg.prev
	mergeNext := next != nilSlot && p.arena.at(next).state == segFree
	mergePrev := prev != nilSlot && p.arena.at(prev).state == segFree

	occupancy := p.gaps.len()
	if mergeNext {
		occupancy--
	}
	if mergePrev {
		occupancy--
	}
	gapCap, err := p.gaps.plan(occupancy)
	if err != nil {
		return fmt.Errorf("%w: gap index full at %d entries", err, p.gaps.capacity)
	}
	p.growGaps(gapCap)
	p.stats.FreeCalls++

	seg.state = segFree
	p.allocs--
	p.allocated -= seg.size
	p.stats.BytesFreed += seg.size

	if mergeNext {
		p.gaps.remove(next)
		seg.size += p.arena.at(next).size
		p.list.unlink(next)
		p.arena.release(next)
		p.stats.CoalesceForward++
	}

	if mergePrev {
		p.gaps.remove(prev)
		p.arena.at(prev).size += seg.size
		p.list.unlink(s)
		p.arena.release(s)
		s = prev
		p.stats.CoalesceBackward++
	}

	p.gaps.insert(s)
	return nil
}
