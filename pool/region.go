package pool

import (
	"context"
	"math/bits"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/platform"
	"golang.org/x/exp/slog"
)

// region is a span of memory acquired from the provider. Blocks are carved from the front of the
// region, starting offset bytes in so the first block is aligned. Every block lies in
// [base+offset, base+used).
type region struct {
	base     unsafe.Pointer
	offset   int
	capacity int
	used     int
	pinned   bool

	// One bit per carved block, set while the block is handed out. nil when liveness is not tracked.
	live []uint64
}

func (r *region) contains(addr uintptr) bool {
	base := uintptr(r.base)
	return addr >= base+uintptr(r.offset) && addr < base+uintptr(r.used)
}

// fit is the number of blocks that can still be carved from the region
func (r *region) fit(blockSize int) int {
	return (r.capacity - r.used) / blockSize
}

func (r *region) blockIndex(ptr unsafe.Pointer, blockSize int) int {
	return (int(uintptr(ptr)-uintptr(r.base)) - r.offset) / blockSize
}

func (r *region) isLive(block int) bool {
	return r.live[block/64]&(1<<(block%64)) != 0
}

func (r *region) setLive(block int, live bool) {
	if live {
		r.live[block/64] |= 1 << (block % 64)
	} else {
		r.live[block/64] &^= 1 << (block % 64)
	}
}

func (r *region) liveCount() int {
	var count int
	for _, word := range r.live {
		count += bits.OnesCount64(word)
	}
	return count
}

// RegionInfo describes a single region owned by a pool
type RegionInfo struct {
	Base       uintptr
	Capacity   int
	Used       int
	Blocks     int
	Pinned     bool
	LiveBlocks int
}

// regionDirectory owns every region a pool has acquired. Regions are only released together, at
// pool teardown.
type regionDirectory struct {
	logger    *slog.Logger
	provider  platform.Provider
	callbacks regionCallbacks

	blockSize      int
	alignment      uint
	trackLiveness  bool
	locked         bool
	totalBytes     int
	maxRegionBytes int

	regions []region
}

func (d *regionDirectory) Init(
	logger *slog.Logger,
	provider platform.Provider,
	callbacks *RegionCallbackOptions,
	blockSize int,
	alignment uint,
	trackLiveness bool,
	maxRegionBytes int,
) {
	d.logger = logger
	d.provider = provider
	d.callbacks = regionCallbacks{Callbacks: callbacks}
	d.blockSize = blockSize
	d.alignment = alignment
	d.trackLiveness = trackLiveness
	d.maxRegionBytes = maxRegionBytes
}

func (d *regionDirectory) Count() int { return len(d.regions) }

func (d *regionDirectory) TotalBytes() int { return d.totalBytes }

func (d *regionDirectory) At(index int) *region {
	return &d.regions[index]
}

// Last returns the most recently acquired region, if any
func (d *regionDirectory) Last() (int, *region, bool) {
	if len(d.regions) == 0 {
		return -1, nil, false
	}

	index := len(d.regions) - 1
	return index, &d.regions[index], true
}

// CarvedBlocks is the number of blocks carved across every region
func (d *regionDirectory) CarvedBlocks() int {
	var count int
	for index := range d.regions {
		count += (d.regions[index].used - d.regions[index].offset) / d.blockSize
	}
	return count
}

// LiveBlocks is the number of blocks currently handed out across every region. It is only meaningful
// when liveness is tracked.
func (d *regionDirectory) LiveBlocks() int {
	var count int
	for index := range d.regions {
		count += d.regions[index].liveCount()
	}
	return count
}

// RemainingBudget is the number of bytes the directory may still acquire. limited is false when the
// directory has no budget.
func (d *regionDirectory) RemainingBudget() (remaining int, limited bool) {
	if d.maxRegionBytes <= 0 {
		return 0, false
	}

	return d.maxRegionBytes - d.totalBytes, true
}

// AppendRegion acquires a region of capacity bytes from the provider and adds it to the end of
// the directory. The region is pinned immediately if the directory is locked.
func (d *regionDirectory) AppendRegion(capacity int) (int, error) {
	if capacity < d.blockSize || capacity <= 0 {
		return -1, errors.Newf("region of %d bytes cannot hold a single block of %d bytes", capacity, d.blockSize)
	}

	if d.maxRegionBytes > 0 && d.totalBytes+capacity > d.maxRegionBytes {
		return -1, errors.Wrapf(memutils.ErrOutOfMemory, "acquiring a region of %d bytes would exceed the pool budget of %d bytes (%d in use)", capacity, d.maxRegionBytes, d.totalBytes)
	}

	base, err := d.provider.Allocate(capacity)
	if err != nil {
		return -1, err
	}

	offset := memutils.AlignUp(int(uintptr(base)), d.alignment) - int(uintptr(base))
	newRegion := region{
		base:     base,
		offset:   offset,
		capacity: capacity,
		used:     offset,
	}
	if d.trackLiveness {
		blockCount := (capacity - offset) / d.blockSize
		newRegion.live = make([]uint64, (blockCount+63)/64)
	}

	d.regions = append(d.regions, newRegion)
	d.totalBytes += capacity
	index := len(d.regions) - 1

	if d.locked {
		d.pin(index)
	}

	d.callbacks.Allocate(base, capacity)
	return index, nil
}

// Contains returns the index of the region whose carved span holds addr
func (d *regionDirectory) Contains(addr uintptr) (int, bool) {
	for index := range d.regions {
		if d.regions[index].contains(addr) {
			return index, true
		}
	}

	return -1, false
}

// Locate finds the region and block index for a block the caller wants to free. Nothing is modified;
// the returned error wraps memutils.ErrInvalidPointer or memutils.ErrDoubleDestroy.
func (d *regionDirectory) Locate(ptr unsafe.Pointer) (regionIndex int, blockIndex int, err error) {
	addr := uintptr(ptr)
	regionIndex, ok := d.Contains(addr)
	if !ok {
		return -1, -1, errors.Wrapf(memutils.ErrInvalidPointer, "%p is not inside any of the pool's %d regions", ptr, len(d.regions))
	}

	r := &d.regions[regionIndex]
	offset := int(addr-uintptr(r.base)) - r.offset
	if offset%d.blockSize != 0 {
		return -1, -1, errors.Wrapf(memutils.ErrInvalidPointer, "%p is %d bytes into a block of %d bytes", ptr, offset%d.blockSize, d.blockSize)
	}

	blockIndex = offset / d.blockSize
	if d.trackLiveness && !r.isLive(blockIndex) {
		return -1, -1, errors.Wrapf(memutils.ErrDoubleDestroy, "block %d of region %d at %p", blockIndex, regionIndex, ptr)
	}

	return regionIndex, blockIndex, nil
}

// Lock pins every region owned by the directory and causes every future region to be pinned as
// soon as it is acquired
func (d *regionDirectory) Lock() {
	d.locked = true

	for index := range d.regions {
		if !d.regions[index].pinned {
			d.pin(index)
		}
	}
}

func (d *regionDirectory) pin(index int) {
	r := &d.regions[index]
	err := d.provider.Pin(r.base, r.capacity)
	if err != nil {
		d.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to pin region",
			slog.Int("region", index),
			slog.Int("size", r.capacity),
			slog.Any("error", err),
		)
		return
	}

	r.pinned = true
}

// ReleaseAll returns every region to the provider. A failure to release one region does not stop
// the rest from being released; all failures are returned together.
func (d *regionDirectory) ReleaseAll() error {
	var err error

	for index := range d.regions {
		r := &d.regions[index]
		d.callbacks.Free(r.base, r.capacity)

		releaseErr := d.provider.Release(r.base)
		if releaseErr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(releaseErr, "failed to release region %d", index))
		}
	}

	d.regions = nil
	d.totalBytes = 0
	return err
}

func (d *regionDirectory) Info() []RegionInfo {
	infos := make([]RegionInfo, 0, len(d.regions))

	for index := range d.regions {
		r := &d.regions[index]
		info := RegionInfo{
			Base:     uintptr(r.base),
			Capacity: r.capacity,
			Used:     r.used,
			Blocks:   (r.used - r.offset) / d.blockSize,
			Pinned:   r.pinned,
		}
		if d.trackLiveness {
			info.LiveBlocks = r.liveCount()
		}
		infos = append(infos, info)
	}

	return infos
}

func (d *regionDirectory) Validate() error {
	total := 0

	for index := range d.regions {
		r := &d.regions[index]
		if r.base == nil {
			return errors.Newf("region %d has no backing memory", index)
		}
		if r.used > r.capacity {
			return errors.Newf("region %d has carved %d bytes but only has a capacity of %d bytes", index, r.used, r.capacity)
		}
		if r.offset < 0 || r.used < r.offset {
			return errors.Newf("region %d has carved %d bytes but its first block starts at %d", index, r.used, r.offset)
		}
		if (r.used-r.offset)%d.blockSize != 0 {
			return errors.Newf("region %d has carved %d bytes, which is not a whole number of %d-byte blocks", index, r.used-r.offset, d.blockSize)
		}

		total += r.capacity
	}

	if total != d.totalBytes {
		return errors.Newf("regions hold %d bytes but the directory has accounted for %d", total, d.totalBytes)
	}

	return nil
}
