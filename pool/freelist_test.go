package pool

import (
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/blockpool/memutils"
)

func TestFreeList_LIFO(t *testing.T) {
	backing := make([]uint64, 4)
	var list freeList
	list.Grow(4)
	require.Equal(t, 4, list.Capacity())

	for i := range backing {
		require.NoError(t, list.Push(freeBlock{ptr: unsafe.Pointer(&backing[i]), region: 0}))
	}
	require.Equal(t, 4, list.FreeCount())

	block, err := list.Pop()
	require.NoError(t, err)
	require.Equal(t, unsafe.Pointer(&backing[3]), block.ptr)
	require.Equal(t, 1, list.Allocated())

	second, err := list.Pop()
	require.NoError(t, err)
	require.Equal(t, unsafe.Pointer(&backing[2]), second.ptr)

	require.NoError(t, list.Recycle(block))
	require.Equal(t, 1, list.Allocated())

	peeked, err := list.Peek()
	require.NoError(t, err)
	require.Equal(t, block, peeked)

	popped, err := list.Pop()
	require.NoError(t, err)
	require.Equal(t, block, popped)
	require.NoError(t, list.Validate())
}

func TestFreeList_PushPastCapacity(t *testing.T) {
	backing := make([]uint64, 3)
	var list freeList
	list.Grow(2)

	require.NoError(t, list.Push(freeBlock{ptr: unsafe.Pointer(&backing[0])}))
	require.NoError(t, list.Push(freeBlock{ptr: unsafe.Pointer(&backing[1])}))

	err := list.Push(freeBlock{ptr: unsafe.Pointer(&backing[2])})
	require.True(t, errors.Is(err, memutils.ErrCapacityExceeded))
	require.Equal(t, 2, list.FreeCount())

	// Allocated blocks still count against capacity
	_, err = list.Pop()
	require.NoError(t, err)
	err = list.Push(freeBlock{ptr: unsafe.Pointer(&backing[2])})
	require.True(t, errors.Is(err, memutils.ErrCapacityExceeded))

	list.Grow(1)
	require.NoError(t, list.Push(freeBlock{ptr: unsafe.Pointer(&backing[2])}))
	require.NoError(t, list.Validate())
}

func TestFreeList_Exhausted(t *testing.T) {
	var list freeList

	_, err := list.Pop()
	require.True(t, errors.Is(err, memutils.ErrPoolExhausted))

	_, err = list.Peek()
	require.True(t, errors.Is(err, memutils.ErrPoolExhausted))
	require.Equal(t, 0, list.Allocated())
}

func TestFreeList_RecycleWithNothingAllocated(t *testing.T) {
	var value uint64
	var list freeList
	list.Grow(1)

	err := list.Recycle(freeBlock{ptr: unsafe.Pointer(&value)})
	require.True(t, errors.Is(err, memutils.ErrCapacityExceeded))
	require.Equal(t, 0, list.FreeCount())
}

func TestFreeList_GrowKeepsEntries(t *testing.T) {
	backing := make([]uint64, 10)
	var list freeList
	list.Grow(1)
	require.NoError(t, list.Push(freeBlock{ptr: unsafe.Pointer(&backing[0]), region: 7}))

	list.Grow(9)
	require.Equal(t, 10, list.Capacity())
	for i := 1; i < len(backing); i++ {
		require.NoError(t, list.Push(freeBlock{ptr: unsafe.Pointer(&backing[i]), region: 7}))
	}

	for i := len(backing) - 1; i >= 0; i-- {
		block, err := list.Pop()
		require.NoError(t, err)
		require.Equal(t, freeBlock{ptr: unsafe.Pointer(&backing[i]), region: 7}, block)
	}

	list.Grow(0)
	list.Grow(-3)
	require.Equal(t, 10, list.Capacity())
}

func TestFreeList_ValidateCatchesBadCounts(t *testing.T) {
	var list freeList
	list.allocated = 2
	list.capacity = 1
	require.Error(t, list.Validate())

	list.allocated = -1
	require.Error(t, list.Validate())

	list.allocated = 0
	list.capacity = 1
	list.entries = []freeBlock{{}}
	require.Error(t, list.Validate())
}
