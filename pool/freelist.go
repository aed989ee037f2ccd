package pool

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/blockpool/memutils"
	"golang.org/x/exp/slices"
)

// freeBlock is a single entry in the free list: the block's address and the index of the region
// that owns it. The region index is -1 when the pool does not track block liveness.
type freeBlock struct {
	ptr    unsafe.Pointer
	region int
}

// freeList is a LIFO stack of free blocks. The most recently freed block is the next one handed
// out. allocated+len(entries) never exceeds capacity; capacity only grows through Grow.
type freeList struct {
	entries   []freeBlock
	capacity  int
	allocated int
}

func (l *freeList) Capacity() int  { return l.capacity }
func (l *freeList) FreeCount() int { return len(l.entries) }
func (l *freeList) Allocated() int { return l.allocated }

// Grow makes room for additional new blocks. It must be called before the blocks are pushed.
func (l *freeList) Grow(additional int) {
	if additional <= 0 {
		return
	}

	l.entries = slices.Grow(l.entries, additional)
	l.capacity += additional
}

// Push adds a newly carved block to the top of the stack
func (l *freeList) Push(block freeBlock) error {
	if l.allocated+len(l.entries) >= l.capacity {
		return cerrors.Wrapf(memutils.ErrCapacityExceeded, "%d allocated and %d free blocks already fill a capacity of %d", l.allocated, len(l.entries), l.capacity)
	}

	l.entries = append(l.entries, block)
	return nil
}

// Peek returns the block Pop would return without removing it
func (l *freeList) Peek() (freeBlock, error) {
	if len(l.entries) == 0 {
		return freeBlock{}, cerrors.Wrapf(memutils.ErrPoolExhausted, "all %d blocks are allocated", l.allocated)
	}

	return l.entries[len(l.entries)-1], nil
}

// Pop removes the most recently pushed block and marks it allocated
func (l *freeList) Pop() (freeBlock, error) {
	block, err := l.Peek()
	if err != nil {
		return block, err
	}

	l.entries = l.entries[:len(l.entries)-1]
	l.allocated++
	return block, nil
}

// Recycle returns an allocated block to the top of the stack
func (l *freeList) Recycle(block freeBlock) error {
	if l.allocated == 0 {
		return cerrors.Wrap(memutils.ErrCapacityExceeded, "recycled a block while no blocks are allocated")
	}

	l.allocated--
	l.entries = append(l.entries, block)
	return nil
}

// Release drops the backing storage. The free list is unusable afterward.
func (l *freeList) Release() {
	l.entries = nil
	l.capacity = 0
	l.allocated = 0
}

func (l *freeList) Validate() error {
	if l.allocated < 0 {
		return errors.Errorf("free list has a negative allocated count %d", l.allocated)
	}

	if l.allocated+len(l.entries) > l.capacity {
		return errors.Errorf("free list holds %d allocated and %d free blocks, which exceeds its capacity of %d", l.allocated, len(l.entries), l.capacity)
	}

	for index, entry := range l.entries {
		if entry.ptr == nil {
			return errors.Errorf("free list entry %d is nil", index)
		}
	}

	return nil
}
