package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

var (
	// ErrOutOfMemory is returned when a memory provider cannot satisfy a region request, or when
	// acquiring a region would exceed a configured byte budget. It is not retriable without freeing
	// other resources.
	ErrOutOfMemory error = errors.New("out of memory")
	// ErrPoolExhausted is returned when a block is requested from a pool that has no free blocks. Call
	// Reserve before Create.
	ErrPoolExhausted error = errors.New("pool has no free blocks")
	// ErrInvalidPointer is returned when a pointer handed back to a pool was not produced by that pool
	// or does not sit on a block boundary.
	ErrInvalidPointer error = errors.New("pointer does not belong to this pool")
	// ErrDoubleDestroy is returned when a block that is already free is destroyed again.
	ErrDoubleDestroy error = errors.New("block is already free")
	// ErrCapacityExceeded indicates the free list was pushed past its capacity. It signals a bug in the
	// allocator rather than a caller error.
	ErrCapacityExceeded error = errors.New("free list capacity exceeded")
	// ErrBlockCorrupted is returned in debug builds when a free block was written to after it was destroyed.
	ErrBlockCorrupted error = errors.New("free block was modified after it was destroyed")
	// ErrPoolClosed is returned from any operation on a pool that has already been torn down.
	ErrPoolClosed error = errors.New("pool has been closed")
)
