package pool

import "errors"

var (
	// ErrAlreadyInitialized indicates Init was called on an active registry.
	ErrAlreadyInitialized = errors.New("pool: registry already initialized")

	// ErrNotInitialized indicates Teardown was called on a registry that was
	// never initialized or has already been torn down.
	ErrNotInitialized = errors.New("pool: registry not initialized")

	// ErrPoolsStillOpen indicates Teardown was attempted while pools are open.
	ErrPoolsStillOpen = errors.New("pool: pools still open")

	// ErrOutOfMemory indicates a backing region, arena, gap index or registry
	// table could not be reserved or grown.
	ErrOutOfMemory = errors.New("pool: out of memory")

	// ErrNoFit indicates no free segment is large enough for the request.
	ErrNoFit = errors.New("pool: no free segment large enough")

	// ErrNotEmpty indicates Close was attempted on a pool with live allocations.
	ErrNotEmpty = errors.New("pool: pool not empty")

	// ErrInvalidHandle indicates a stale, foreign or already-freed handle.
	ErrInvalidHandle = errors.New("pool: invalid handle")

	// ErrInvalidSize indicates a non-positive pool or allocation size.
	ErrInvalidSize = errors.New("pool: size must be positive")

	// ErrInvalidPolicy indicates an unknown placement policy.
	ErrInvalidPolicy = errors.New("pool: unknown placement policy")
)

// ErrCorrupt is returned by Check when a layout invariant does not hold.
var ErrCorrupt = errors.New("pool: invariant violated")
