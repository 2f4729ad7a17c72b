package pool

// nilSlot marks the absence of a neighbor or of a gap index position.
const nilSlot int32 = -1

type segState uint8

const (
	segFree segState = iota
	segAllocated
)

// segment is one arena slot. Links are slot indices so they survive the
// slots slice being reallocated on growth.
type segment struct {
	offset   int64 // byte offset in the backing region
	size     int64
	prev     int32
	next     int32
	gapPos   int32  // position in the gap index, nilSlot unless free
	gen      uint32 // bumped each time the slot becomes allocated
	state    segState
	occupied bool
}

// arena is the growable store of segment slots for one pool.
// Unoccupied slots are kept on a stack and reused before new ones.
type arena struct {
	slots   []segment // len(slots) is the capacity
	free    []int32   // unoccupied slot indices, next to hand out on top
	used    int
	grow    growth
	growths int
}

func newArena(capacity int, g growth) arena {
	a := arena{grow: g}
	a.resize(capacity)
	a.growths = 0
	return a
}

func (a *arena) capacity() int {
	return len(a.slots)
}

// plan returns the capacity the arena needs before one more acquire.
func (a *arena) plan() (int, error) {
	return a.grow.next(a.used, len(a.slots))
}

// resize grows the arena to capacity slots. New slots sit below the existing
// free stack so previously released slots are reused first.
func (a *arena) resize(capacity int) {
	old := len(a.slots)
	if capacity <= old {
		return
	}
	slots := make([]segment, capacity)
	copy(slots, a.slots)
	for i := old; i < capacity; i++ {
		slots[i] = segment{prev: nilSlot, next: nilSlot, gapPos: nilSlot}
	}
	a.slots = slots

	free := make([]int32, 0, capacity)
	for i := capacity - 1; i >= old; i-- {
		free = append(free, int32(i))
	}
	a.free = append(free, a.free...)
	a.growths++
}

// acquire takes an unoccupied slot. The caller must have planned capacity.
func (a *arena) acquire() int32 {
	n := len(a.free)
	i := a.free[n-1]
	a.free = a.free[:n-1]

	s := &a.slots[i]
	gen := s.gen
	*s = segment{prev: nilSlot, next: nilSlot, gapPos: nilSlot, gen: gen, occupied: true}
	a.used++
	return i
}

// release returns slot i to the unoccupied stack.
func (a *arena) release(i int32) {
	s := &a.slots[i]
	gen := s.gen
	*s = segment{prev: nilSlot, next: nilSlot, gapPos: nilSlot, gen: gen}
	a.free = append(a.free, i)
	a.used--
}

func (a *arena) at(i int32) *segment {
	return &a.slots[i]
}
