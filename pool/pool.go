package pool

import (
	"context"
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/memutils"
	"golang.org/x/exp/slog"
)

// Constructible can be implemented by a pointer to a pooled type. Create zeroes the block and calls
// Construct before handing it out.
type Constructible interface {
	Construct()
}

// Destructible can be implemented by a pointer to a pooled type. Destroy calls Destruct before the
// block is returned to the free list.
type Destructible interface {
	Destruct()
}

// Pool hands out fixed-size blocks, each holding a single T. Memory is acquired from a
// platform.Provider in regions that are only released when the pool is closed.
//
// T must not contain Go pointers: pool memory is not scanned by the garbage collector. A Pool is not
// safe for concurrent use.
type Pool[T any] struct {
	logger *slog.Logger

	blockSize int
	strategy  Strategy
	flags     PoolCreateFlags
	sizer     regionSizer

	regions  regionDirectory
	freeList freeList

	constructible bool
	destructible  bool
	closed        bool
}

var _ memutils.Validatable = &Pool[int]{}

// BlockSize is the number of bytes occupied by each block, including alignment padding
func (p *Pool[T]) BlockSize() int { return p.blockSize }

// FreeCount is the number of blocks that can be handed out by Create without a call to Reserve
func (p *Pool[T]) FreeCount() int { return p.freeList.FreeCount() }

// AllocatedCount is the number of blocks currently handed out
func (p *Pool[T]) AllocatedCount() int { return p.freeList.Allocated() }

// RegionCount is the number of regions acquired from the memory provider
func (p *Pool[T]) RegionCount() int { return p.regions.Count() }

// IsLocked is true once Lock has been called, or if the pool was created with PoolCreateLocked
func (p *Pool[T]) IsLocked() bool { return p.regions.locked }

// Strategy is the region sizing strategy the pool was created with
func (p *Pool[T]) Strategy() Strategy { return p.strategy }

// Flags are the PoolCreateFlags the pool was created with
func (p *Pool[T]) Flags() PoolCreateFlags { return p.flags }

func (p *Pool[T]) trackLiveness() bool {
	return p.flags&PoolCreateUnchecked == 0
}

// State derives the pool's lifecycle state from its regions and free list
func (p *Pool[T]) State() PoolState {
	switch {
	case p.closed:
		return PoolStateDestroyed
	case p.regions.Count() == 0:
		return PoolStateUnreserved
	case p.freeList.FreeCount() > 0:
		return PoolStateUsable
	case p.freeList.Allocated() > 0:
		return PoolStateFull
	default:
		return PoolStateReserved
	}
}

// Reserve guarantees that at least count more blocks can be created before the pool runs out. Free
// space at the end of the most recent region is used first; further regions are acquired from the
// provider as the pool's strategy dictates.
//
// A reservation that cannot fit in the pool's remaining MaxRegionBytes budget fails with
// memutils.ErrOutOfMemory before anything is acquired. If the provider fails partway, the regions
// already acquired stay with the pool, the blocks carved from them remain available, and the error is
// returned. They are released when the pool is closed.
func (p *Pool[T]) Reserve(count int) error {
	p.logger.Debug("Pool::Reserve")

	if p.closed {
		return errors.Wrap(memutils.ErrPoolClosed, "failed to reserve blocks")
	}

	if count < 0 {
		return errors.Newf("cannot reserve a negative number of blocks: %d", count)
	}

	if count == 0 {
		return nil
	}

	if count > (math.MaxInt-int(p.regions.alignment))/p.blockSize {
		return errors.Wrapf(memutils.ErrOutOfMemory, "%d blocks of %d bytes cannot be addressed", count, p.blockSize)
	}

	remaining := count
	regionIndex, lastRegion, ok := p.regions.Last()
	tailFit := 0
	if ok {
		tailFit = minInt(lastRegion.fit(p.blockSize), remaining)
	}

	// Free room at the end of the last region is not charged against the budget
	budget, limited := p.regions.RemainingBudget()
	if limited && (count-tailFit)*p.blockSize > budget {
		return errors.Wrapf(memutils.ErrOutOfMemory, "%d blocks of %d bytes exceed the remaining pool budget of %d bytes", count-tailFit, p.blockSize, budget)
	}

	if tailFit > 0 {
		carved, err := p.carve(regionIndex, tailFit)
		if err != nil {
			return err
		}
		remaining -= carved
	}

	for remaining > 0 {
		regionIndex, err := p.regions.AppendRegion(p.sizer.RegionSize(remaining))
		if err != nil {
			return errors.Wrapf(err, "failed to acquire a region after reserving %d of %d blocks", count-remaining, count)
		}

		fit := p.regions.At(regionIndex).fit(p.blockSize)
		if fit <= 0 {
			return errors.Newf("region %d cannot hold a single block of %d bytes", regionIndex, p.blockSize)
		}

		carved, err := p.carve(regionIndex, minInt(fit, remaining))
		if err != nil {
			return err
		}
		remaining -= carved
	}

	memutils.DebugValidate(p)
	return nil
}

// carve splits count blocks off the uncarved tail of a region and pushes them onto the free list
func (p *Pool[T]) carve(regionIndex int, count int) (int, error) {
	r := p.regions.At(regionIndex)
	p.freeList.Grow(count)

	freeRegion := regionIndex
	if !p.trackLiveness() {
		freeRegion = -1
	}

	for carved := 0; carved < count; carved++ {
		ptr := unsafe.Add(r.base, r.used)
		if memutils.DebugPoisoning {
			memutils.WriteMagicValue(ptr, p.blockSize)
		}

		err := p.freeList.Push(freeBlock{ptr: ptr, region: freeRegion})
		if err != nil {
			return carved, err
		}
		r.used += p.blockSize
	}

	return count, nil
}

func (p *Pool[T]) acquire() (*T, error) {
	if p.closed {
		return nil, errors.Wrap(memutils.ErrPoolClosed, "failed to create a block")
	}

	block, err := p.freeList.Peek()
	if err != nil {
		return nil, err
	}

	if memutils.DebugPoisoning && !memutils.ValidateMagicValue(block.ptr, p.blockSize) {
		return nil, errors.Wrapf(memutils.ErrBlockCorrupted, "block at %p", block.ptr)
	}

	block, err = p.freeList.Pop()
	if err != nil {
		return nil, err
	}

	if block.region >= 0 {
		r := p.regions.At(block.region)
		r.setLive(r.blockIndex(block.ptr, p.blockSize), true)
	}

	return (*T)(block.ptr), nil
}

// Create hands out a free block. If *T implements Constructible, the block is zeroed and Construct is
// called on it; otherwise the block's contents are whatever was last written to it.
//
// Create fails with memutils.ErrPoolExhausted when no free blocks remain. It never acquires memory
// on its own: call Reserve first.
func (p *Pool[T]) Create() (*T, error) {
	p.logger.Debug("Pool::Create")

	ptr, err := p.acquire()
	if err != nil {
		return nil, err
	}

	if p.constructible {
		var zero T
		*ptr = zero
		any(ptr).(Constructible).Construct()
	}

	return ptr, nil
}

// CreateWith hands out a free block that has been zeroed and then passed to ctor
func (p *Pool[T]) CreateWith(ctor func(value *T)) (*T, error) {
	p.logger.Debug("Pool::CreateWith")

	ptr, err := p.acquire()
	if err != nil {
		return nil, err
	}

	var zero T
	*ptr = zero
	if ctor != nil {
		ctor(ptr)
	}

	return ptr, nil
}

// CreateValue hands out a free block holding a copy of value
func (p *Pool[T]) CreateValue(value T) (*T, error) {
	p.logger.Debug("Pool::CreateValue")

	ptr, err := p.acquire()
	if err != nil {
		return nil, err
	}

	*ptr = value
	return ptr, nil
}

// Destroy returns a block handed out by this pool. If *T implements Destructible, Destruct is called
// first. The pointer must not be used afterward.
//
// Unless the pool was created with PoolCreateUnchecked, the pointer is validated before anything is
// modified: pointers from outside the pool and pointers into the middle of a block fail with
// memutils.ErrInvalidPointer, and a block that is already free fails with memutils.ErrDoubleDestroy.
func (p *Pool[T]) Destroy(ptr *T) error {
	p.logger.Debug("Pool::Destroy")

	if p.closed {
		return errors.Wrap(memutils.ErrPoolClosed, "failed to destroy a block")
	}

	if ptr == nil {
		return errors.Wrap(memutils.ErrInvalidPointer, "attempted to destroy a nil pointer")
	}

	block := freeBlock{ptr: unsafe.Pointer(ptr), region: -1}
	blockIndex := -1
	if p.trackLiveness() {
		var err error
		block.region, blockIndex, err = p.regions.Locate(block.ptr)
		if err != nil {
			return err
		}
	}

	if p.freeList.Allocated() == 0 {
		return errors.Wrapf(memutils.ErrCapacityExceeded, "attempted to destroy %p while no blocks are allocated", block.ptr)
	}

	if p.destructible {
		any(ptr).(Destructible).Destruct()
	}

	if memutils.DebugPoisoning {
		memutils.WriteMagicValue(block.ptr, p.blockSize)
	}
	if block.region >= 0 {
		p.regions.At(block.region).setLive(blockIndex, false)
	}

	return p.freeList.Recycle(block)
}

// Lock pins every region the pool owns into physical memory, and causes every region acquired from
// then on to be pinned as it is acquired. Pinning is best effort: failures are logged at warn level and
// the region continues to be used unpinned. A locked pool cannot be unlocked.
func (p *Pool[T]) Lock() {
	p.logger.Debug("Pool::Lock")

	if p.closed {
		return
	}

	p.regions.Lock()
}

// Close releases every region the pool owns back to the memory provider. Blocks that are still
// handed out are reported to the logger at error level and become invalid. Every method called
// afterward fails with memutils.ErrPoolClosed.
func (p *Pool[T]) Close() error {
	p.logger.Debug("Pool::Close")

	if p.closed {
		return errors.Wrap(memutils.ErrPoolClosed, "pool was closed twice")
	}

	if p.freeList.Allocated() > 0 {
		p.reportUnreleased()
	}

	err := p.regions.ReleaseAll()
	p.freeList.Release()
	p.closed = true

	return err
}

func (p *Pool[T]) reportUnreleased() {
	if !p.trackLiveness() {
		p.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] blocks were not destroyed before the pool was closed",
			slog.Int("count", p.freeList.Allocated()),
			slog.Int("size", p.blockSize),
		)
		return
	}

	for regionIndex := range p.regions.regions {
		r := p.regions.At(regionIndex)
		blockCount := (r.used - r.offset) / p.blockSize

		for blockIndex := 0; blockIndex < blockCount; blockIndex++ {
			if !r.isLive(blockIndex) {
				continue
			}

			p.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed block",
				slog.Int("region", regionIndex),
				slog.Int("offset", r.offset+blockIndex*p.blockSize),
				slog.Int("size", p.blockSize),
			)
		}
	}
}

func (p *Pool[T]) Validate() error {
	if p.closed {
		return errors.Wrap(memutils.ErrPoolClosed, "failed to validate")
	}

	err := p.regions.Validate()
	if err != nil {
		return err
	}

	err = p.freeList.Validate()
	if err != nil {
		return err
	}

	carved := p.regions.CarvedBlocks()
	if carved != p.freeList.Allocated()+p.freeList.FreeCount() {
		return errors.Newf("regions hold %d carved blocks but the free list accounts for %d allocated and %d free", carved, p.freeList.Allocated(), p.freeList.FreeCount())
	}

	if p.trackLiveness() {
		live := p.regions.LiveBlocks()
		if live != p.freeList.Allocated() {
			return errors.Newf("regions mark %d blocks live but the free list accounts for %d allocated", live, p.freeList.Allocated())
		}

		for index, entry := range p.freeList.entries {
			if entry.region < 0 || entry.region >= p.regions.Count() {
				return errors.Newf("free list entry %d belongs to unknown region %d", index, entry.region)
			}

			r := p.regions.At(entry.region)
			if !r.contains(uintptr(entry.ptr)) {
				return errors.Newf("free list entry %d at %p is outside region %d", index, entry.ptr, entry.region)
			}
			if r.isLive(r.blockIndex(entry.ptr, p.blockSize)) {
				return errors.Newf("free list entry %d at %p is marked live", index, entry.ptr)
			}
		}
	}

	return nil
}

func minInt(left, right int) int {
	if left < right {
		return left
	}
	return right
}
