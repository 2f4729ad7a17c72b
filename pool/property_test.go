package pool

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedPick returns the segment the policy should choose for size, from a
// layout snapshot taken before the allocation.
func expectedPick(segs []Segment, size int64, policy Policy) (Segment, bool) {
	var (
		pick  Segment
		found bool
	)
	for _, s := range segs {
		if s.Allocated || s.Size < size {
			continue
		}
		if policy == FirstFit {
			return s, true
		}
		if !found || s.Size < pick.Size {
			pick, found = s, true
		}
	}
	return pick, found
}

// Test_Property_RandomChurn runs seeded random alloc/free sequences and checks
// every invariant after each step.
func Test_Property_RandomChurn(t *testing.T) {
	const size = 1 << 16

	for _, policy := range []Policy{FirstFit, BestFit} {
		for _, seed := range []int64{1, 42, 1337} {
			t.Run(fmt.Sprintf("%s/seed=%d", policy, seed), func(t *testing.T) {
				r, h, p := openTestPool(t, size, policy)
				rng := rand.New(rand.NewSource(seed))
				live := make(map[Allocation]int64)
				var order []Allocation

				for step := range 2000 {
					if len(order) == 0 || rng.Intn(100) < 55 {
						want := int64(1 + rng.Intn(2048))
						before := p.Segments()
						pick, fits := expectedPick(before, want, policy)
						largest := p.Stats().LargestGap

						a, err := p.Allocate(want)
						if !fits {
							require.ErrorIs(t, err, ErrNoFit, "step %d", step)
							require.Less(t, largest, want)
							require.Equal(t, before, p.Segments(), "step %d: NoFit mutated the pool", step)
							continue
						}
						require.NoError(t, err, "step %d", step)

						buf, err := p.Bytes(a)
						require.NoError(t, err)
						require.Len(t, buf, int(want))

						if policy == FirstFit {
							require.Equal(t, pick.Offset, offsetOf(t, p, a), "step %d", step)
						} else {
							require.Equal(t, pick.Size, sizeAt(p, offsetOf(t, p, a), want), "step %d", step)
						}

						live[a] = want
						order = append(order, a)
					} else {
						i := rng.Intn(len(order))
						a := order[i]
						order[i] = order[len(order)-1]
						order = order[:len(order)-1]
						require.NoError(t, p.Deallocate(a), "step %d", step)
						delete(live, a)
					}

					require.NoError(t, p.Check(), "step %d", step)

					var sum int64
					for _, n := range live {
						sum += n
					}
					require.Equal(t, sum, p.AllocatedBytes(), "step %d", step)
					require.Equal(t, len(live), p.Allocations(), "step %d", step)
				}

				// Close is refused until every allocation is returned.
				if len(order) > 0 {
					require.ErrorIs(t, r.Close(h), ErrNotEmpty)
				}
				for _, a := range order {
					require.NoError(t, p.Deallocate(a))
				}
				require.NoError(t, p.Check())
				assert.Equal(t, []Segment{{Offset: 0, Size: size}}, p.Segments())
				require.NoError(t, r.Close(h))
				require.NoError(t, r.Teardown())
			})
		}
	}
}

// Test_Property_AllocFreeRoundTrip checks that freeing an allocation right
// after making it restores the exact previous layout.
func Test_Property_AllocFreeRoundTrip(t *testing.T) {
	for _, policy := range []Policy{FirstFit, BestFit} {
		t.Run(policy.String(), func(t *testing.T) {
			_, _, p := openTestPool(t, 8192, policy)
			rng := rand.New(rand.NewSource(7))

			// Build a fragmented layout to round-trip against.
			var keep []Allocation
			for range 40 {
				keep = append(keep, mustAlloc(t, p, int64(16+rng.Intn(128))))
			}
			for i := 0; i < len(keep); i += 3 {
				mustFree(t, p, keep[i])
			}

			for range 200 {
				want := int64(1 + rng.Intn(256))
				before := p.Segments()
				a, err := p.Allocate(want)
				if err != nil {
					require.ErrorIs(t, err, ErrNoFit)
					continue
				}
				mustFree(t, p, a)
				require.Equal(t, before, p.Segments())
			}
		})
	}
}

func offsetOf(t *testing.T, p *Pool, a Allocation) int64 {
	t.Helper()
	buf, err := p.Bytes(a)
	require.NoError(t, err)
	for seg := range p.All() {
		if seg.Allocated && seg.Size == int64(len(buf)) && &p.mem[seg.Offset] == &buf[0] {
			return seg.Offset
		}
	}
	t.Fatalf("allocation %v not found in layout", a)
	return -1
}

// sizeAt returns the size of the free segment the allocation at off was carved
// from: the allocation plus any free remainder directly after it.
func sizeAt(p *Pool, off, size int64) int64 {
	segs := p.Segments()
	for i, s := range segs {
		if s.Offset != off {
			continue
		}
		if i+1 < len(segs) && !segs[i+1].Allocated && s.Size == size {
			return s.Size + segs[i+1].Size
		}
		return s.Size
	}
	return -1
}
