package pool

import "sort"

// gapEntry is one free segment in the gap index.
type gapEntry struct {
	size int64
	slot int32
	seq  uint64 // insertion order, higher is more recent
}

// gapIndex keeps every free segment of a pool in a dense slice ordered by
// size descending. Equal sizes are ordered most recently inserted first.
// Each indexed segment records its position in gapPos, so removal needs no
// search.
type gapIndex struct {
	a        *arena
	entries  []gapEntry
	capacity int
	seq      uint64
	grow     growth
	growths  int
}

func newGapIndex(a *arena, capacity int, g growth) gapIndex {
	return gapIndex{
		a:        a,
		entries:  make([]gapEntry, 0, capacity),
		capacity: capacity,
		grow:     g,
	}
}

func (g *gapIndex) len() int {
	return len(g.entries)
}

// plan returns the capacity needed to insert one entry while the index holds
// occupancy entries.
func (g *gapIndex) plan(occupancy int) (int, error) {
	return g.grow.next(occupancy, g.capacity)
}

func (g *gapIndex) resize(capacity int) {
	if capacity <= g.capacity {
		return
	}
	entries := make([]gapEntry, len(g.entries), capacity)
	copy(entries, g.entries)
	g.entries = entries
	g.capacity = capacity
	g.growths++
}

// insert indexes free segment s. The caller must have planned capacity.
func (g *gapIndex) insert(s int32) {
	seg := g.a.at(s)
	g.seq++
	e := gapEntry{size: seg.size, slot: s, seq: g.seq}

	// Insertion sort step: shift right every smaller-or-equal entry.
	g.entries = append(g.entries, e)
	i := len(g.entries) - 1
	for i > 0 && g.entries[i-1].size <= e.size {
		g.entries[i] = g.entries[i-1]
		g.a.at(g.entries[i].slot).gapPos = int32(i)
		i--
	}
	g.entries[i] = e
	seg.gapPos = int32(i)
}

// remove drops free segment s and compacts the entries behind it.
func (g *gapIndex) remove(s int32) {
	seg := g.a.at(s)
	i := int(seg.gapPos)
	copy(g.entries[i:], g.entries[i+1:])
	g.entries = g.entries[:len(g.entries)-1]
	for j := i; j < len(g.entries); j++ {
		g.a.at(g.entries[j].slot).gapPos = int32(j)
	}
	seg.gapPos = nilSlot
}

// bestFit returns the smallest free segment of at least size bytes. Among
// equal sizes the one earliest in the index wins.
func (g *gapIndex) bestFit(size int64) (int32, bool) {
	// Qualifying entries form a prefix since sizes descend.
	k := sort.Search(len(g.entries), func(i int) bool {
		return g.entries[i].size < size
	})
	if k == 0 {
		return nilSlot, false
	}
	smallest := g.entries[k-1].size
	j := sort.Search(k, func(i int) bool {
		return g.entries[i].size <= smallest
	})
	return g.entries[j].slot, true
}

// largest returns the size of the biggest free segment, or 0.
func (g *gapIndex) largest() int64 {
	if len(g.entries) == 0 {
		return 0
	}
	return g.entries[0].size
}
