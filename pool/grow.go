package pool

import "math"

// growth is the shared capacity policy of the arena, the gap index and the
// registry table.
type growth struct {
	fill   float64
	factor float64
	limit  int // 0 = unlimited
}

func newGrowth(cfg Config, limit int) growth {
	return growth{fill: cfg.FillFactor, factor: cfg.GrowthFactor, limit: limit}
}

// next returns the capacity a table holding used entries must have before it
// accepts one more. It returns capacity unchanged when no growth is due, and
// ErrOutOfMemory when the table is full and the limit forbids growing.
func (g growth) next(used, capacity int) (int, error) {
	if capacity > 0 && float64(used)/float64(capacity) <= g.fill && used < capacity {
		return capacity, nil
	}

	target := int(math.Ceil(float64(max(capacity, 1)) * g.factor))
	if target <= capacity {
		target = capacity + 1
	}
	if g.limit > 0 && target > g.limit {
		target = g.limit
	}
	if target <= capacity {
		// Past the fill threshold but capped; keep going until truly full.
		if used < capacity {
			return capacity, nil
		}
		return capacity, ErrOutOfMemory
	}
	return target, nil
}
