package pool

import (
	"fmt"
	"strings"
)

// Policy selects how a pool picks the free segment for a new allocation.
type Policy uint8

const (
	// FirstFit takes the lowest-addressed free segment that is large enough.
	FirstFit Policy = 1
	// BestFit takes the smallest free segment that is large enough.
	BestFit Policy = 2
)

func (p Policy) String() string {
	switch p {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// MarshalText renders the policy name, so Policy reads well in JSON.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts any spelling ParsePolicy does.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Policy) valid() bool {
	return p == FirstFit || p == BestFit
}

// ParsePolicy accepts "first", "first-fit", "best" or "best-fit" in any case.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "first-fit", "firstfit", "first_fit":
		return FirstFit, nil
	case "best", "best-fit", "bestfit", "best_fit":
		return BestFit, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

// PoolHandle identifies an open pool within its Registry.
// The zero value never refers to a pool.
type PoolHandle struct {
	slot int32
	gen  uint32
}

func (h PoolHandle) String() string {
	return fmt.Sprintf("pool#%d.%d", h.slot, h.gen)
}

// Allocation identifies an allocated segment within one pool.
// The zero value never refers to an allocation.
type Allocation struct {
	pool uint64
	slot int32
	gen  uint32
}

func (a Allocation) String() string {
	return fmt.Sprintf("alloc#%d/%d.%d", a.pool, a.slot, a.gen)
}

// Segment is one entry of a pool layout snapshot.
type Segment struct {
	Offset    int64 `json:"offset"`
	Size      int64 `json:"size"`
	Allocated bool  `json:"allocated"`
}

func (s Segment) String() string {
	state := "free"
	if s.Allocated {
		state = "alloc"
	}
	return fmt.Sprintf("%s(%d@%d)", state, s.Size, s.Offset)
}
