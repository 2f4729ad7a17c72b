package pool

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// OpStats counts allocator operations over the life of a pool.
type OpStats struct {
	AllocCalls       int   // Total Allocate() calls
	FreeCalls        int   // Successful Deallocate() calls
	NoFit            int   // Allocations rejected with ErrNoFit
	SplitCount       int   // Allocations that left a remainder gap
	CoalesceForward  int   // Merges with the following free segment
	CoalesceBackward int   // Merges into the preceding free segment
	ArenaGrowths     int   // Segment arena capacity increases
	GapIndexGrowths  int   // Gap index capacity increases
	BytesAllocated   int64 // Total bytes handed out
	BytesFreed       int64 // Total bytes returned
}

// Stats is a point-in-time summary of a pool.
type Stats struct {
	Policy           Policy
	TotalSize        int64
	AllocatedBytes   int64
	AllocationCount  int
	GapCount         int
	LargestGap       int64
	Segments         int
	ArenaCapacity    int
	ArenaUsed        int
	GapIndexCapacity int
	Ops              OpStats
}

// FreeBytes returns the bytes not currently allocated.
func (s Stats) FreeBytes() int64 {
	return s.TotalSize - s.AllocatedBytes
}

// Fragmentation returns 1 - largest gap / free bytes: 0 when all free space
// is one gap, approaching 1 as it splinters.
func (s Stats) Fragmentation() float64 {
	free := s.FreeBytes()
	if free == 0 {
		return 0
	}
	return 1 - float64(s.LargestGap)/float64(free)
}

// Stats returns the current pool summary.
func (p *Pool) Stats() Stats {
	return Stats{
		Policy:           p.policy,
		TotalSize:        p.size,
		AllocatedBytes:   p.allocated,
		AllocationCount:  p.allocs,
		GapCount:         p.gaps.len(),
		LargestGap:       p.gaps.largest(),
		Segments:         p.list.n,
		ArenaCapacity:    p.arena.capacity(),
		ArenaUsed:        p.arena.used,
		GapIndexCapacity: p.gaps.capacity,
		Ops:              p.stats,
	}
}

// WriteStats prints a human-readable summary of the pool to w.
func (p *Pool) WriteStats(w io.Writer) error {
	s := p.Stats()
	pr := message.NewPrinter(language.English)

	lines := []struct {
		format string
		args   []any
	}{
		{"=== Pool %d (%s) ===\n", []any{p.id, s.Policy}},
		{"Size:          %d bytes\n", []any{s.TotalSize}},
		{"Allocated:     %d bytes in %d allocations\n", []any{s.AllocatedBytes, s.AllocationCount}},
		{"Free:          %d bytes in %d gaps (largest %d)\n", []any{s.FreeBytes(), s.GapCount, s.LargestGap}},
		{"Fragmentation: %.1f%%\n", []any{s.Fragmentation() * 100}},
		{"Arena:         %d/%d slots, grown %d times\n", []any{s.ArenaUsed, s.ArenaCapacity, s.Ops.ArenaGrowths}},
		{"Gap index:     %d/%d entries, grown %d times\n", []any{s.GapCount, s.GapIndexCapacity, s.Ops.GapIndexGrowths}},
		{"Operations:    %d allocs (%d no-fit, %d splits), %d frees\n",
			[]any{s.Ops.AllocCalls, s.Ops.NoFit, s.Ops.SplitCount, s.Ops.FreeCalls}},
		{"Coalescing:    %d forward, %d backward\n", []any{s.Ops.CoalesceForward, s.Ops.CoalesceBackward}},
	}
	for _, l := range lines {
		if _, err := pr.Fprintf(w, l.format, l.args...); err != nil {
			return err
		}
	}
	return nil
}
