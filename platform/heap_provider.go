package platform

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/blockpool/memutils"
)

// HeapProvider hands out regions allocated on the Go heap. Regions are word-aligned rather than
// page-aligned and are sized exactly to the request. The garbage collector does not scan their contents.
type HeapProvider struct {
	pageSize int
	maxBytes int
	live     *swiss.Map[uintptr, heapRegion]
	counters Counters
}

type heapRegion struct {
	data []uint64
	// Number of leading bytes locked by Pin, 0 if the region is not pinned
	pinned int
}

var _ Provider = &HeapProvider{}

// NewHeapProvider creates a HeapProvider reporting the provided page granularity. If pageGranularity is 0,
// the operating system's page size is reported instead.
func NewHeapProvider(pageGranularity int) *HeapProvider {
	if pageGranularity <= 0 {
		pageGranularity = pageSize()
	}

	return &HeapProvider{
		pageSize: pageGranularity,
		live:     swiss.NewMap[uintptr, heapRegion](8),
	}
}

// SetLimit caps the number of live bytes this provider will hand out. Allocations beyond the cap
// fail with memutils.ErrOutOfMemory. A limit of 0 means no limit.
func (p *HeapProvider) SetLimit(maxBytes int) {
	p.maxBytes = maxBytes
}

func (p *HeapProvider) PageGranularity() int { return p.pageSize }

func (p *HeapProvider) Counters() Counters { return p.counters }

func (p *HeapProvider) Allocate(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, errors.Newf("cannot allocate a region of %d bytes", size)
	}

	words := (size + 7) / 8
	if p.maxBytes > 0 && p.counters.LiveBytes+words*8 > p.maxBytes {
		return nil, errors.Wrapf(memutils.ErrOutOfMemory, "allocating %d bytes would exceed the heap limit of %d bytes", size, p.maxBytes)
	}

	data := make([]uint64, words)
	base := unsafe.Pointer(&data[0])
	p.live.Put(uintptr(base), heapRegion{data: data})
	p.counters.Allocations++
	p.counters.LiveRegions++
	p.counters.LiveBytes += words * 8

	return base, nil
}

func (p *HeapProvider) Release(base unsafe.Pointer) error {
	region, ok := p.live.Get(uintptr(base))
	if !ok {
		return errors.Newf("attempted to release %p, which is not a live region", base)
	}

	// Go will not unlock heap memory when it is collected
	var err error
	if region.pinned > 0 {
		err = unpin(unsafe.Slice((*byte)(base), region.pinned))
		if err != nil {
			err = errors.Wrapf(err, "failed to unpin %d bytes at %p", region.pinned, base)
		} else {
			p.counters.Unpins++
		}
	}

	p.live.Delete(uintptr(base))
	p.counters.Releases++
	p.counters.LiveRegions--
	p.counters.LiveBytes -= len(region.data) * 8
	return err
}

func (p *HeapProvider) Pin(base unsafe.Pointer, size int) error {
	region, ok := p.live.Get(uintptr(base))
	if !ok {
		return errors.Newf("attempted to pin %p, which is not a live region", base)
	}

	if size > len(region.data)*8 {
		size = len(region.data) * 8
	}

	if size <= region.pinned {
		return nil
	}

	err := pin(unsafe.Slice((*byte)(base), size))
	if err != nil {
		return errors.Wrapf(err, "failed to pin %d bytes at %p", size, base)
	}

	region.pinned = size
	p.live.Put(uintptr(base), region)
	p.counters.Pins++
	return nil
}
