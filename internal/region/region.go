// Package region reserves the fixed backing memory that a pool carves
// allocations out of.
//
// On Linux, Darwin and FreeBSD the region is an anonymous private mapping, so
// untouched pages cost nothing until first write. Elsewhere it is an ordinary
// heap slice. Either way the region is zero-filled, never resized, and handed
// back only by Release.
package region

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned when Reserve is asked for a non-positive size.
var ErrInvalidSize = errors.New("region: size must be positive")

// Region is a reserved, fixed-size block of memory.
type Region struct {
	data    []byte
	release func([]byte) error
}

// Reserve returns a zeroed region of exactly size bytes.
func Reserve(size int64) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("region: size too large to reserve (%d bytes)", size)
	}
	data, release, err := reserve(int(size))
	if err != nil {
		return nil, fmt.Errorf("region: reserve %d bytes: %w", size, err)
	}
	return &Region{data: data, release: release}, nil
}

// Bytes returns the whole region. The slice is nil after Release.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the region size in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Release hands the memory back. Calling it more than once is a no-op.
func (r *Region) Release() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	return r.release(data)
}
