package platform

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/blockpool/memutils"
)

type mapping struct {
	data   []byte
	pinned bool
}

// OSProvider acquires regions directly from the operating system's virtual memory manager: mmap on
// unix platforms and VirtualAlloc on windows. Sizes are rounded up to whole pages.
type OSProvider struct {
	pageSize int
	live     *swiss.Map[uintptr, mapping]
	counters Counters
}

var _ Provider = &OSProvider{}

func NewOSProvider() *OSProvider {
	return &OSProvider{
		pageSize: pageSize(),
		live:     swiss.NewMap[uintptr, mapping](8),
	}
}

func (p *OSProvider) PageGranularity() int { return p.pageSize }

func (p *OSProvider) Counters() Counters { return p.counters }

func (p *OSProvider) Allocate(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, errors.Newf("cannot allocate a region of %d bytes", size)
	}

	data, err := reserve(memutils.RoundUp(size, p.pageSize))
	if err != nil {
		return nil, errors.Wrapf(memutils.ErrOutOfMemory, "failed to map %d bytes: %v", size, err)
	}

	base := unsafe.Pointer(&data[0])
	p.live.Put(uintptr(base), mapping{data: data})
	p.counters.Allocations++
	p.counters.LiveRegions++
	p.counters.LiveBytes += len(data)

	return base, nil
}

func (p *OSProvider) Release(base unsafe.Pointer) error {
	m, ok := p.live.Get(uintptr(base))
	if !ok {
		return errors.Newf("attempted to release %p, which is not a live region", base)
	}

	err := release(m.data)
	if err != nil {
		return errors.Wrapf(err, "failed to unmap region at %p", base)
	}

	p.live.Delete(uintptr(base))
	p.counters.Releases++
	p.counters.LiveRegions--
	p.counters.LiveBytes -= len(m.data)
	return nil
}

func (p *OSProvider) Pin(base unsafe.Pointer, size int) error {
	m, ok := p.live.Get(uintptr(base))
	if !ok {
		return errors.Newf("attempted to pin %p, which is not a live region", base)
	}
	if m.pinned {
		return nil
	}

	if size > len(m.data) {
		size = len(m.data)
	}

	err := pin(m.data[:size])
	if err != nil {
		return errors.Wrapf(err, "failed to pin %d bytes at %p", size, base)
	}

	m.pinned = true
	p.live.Put(uintptr(base), m)
	p.counters.Pins++
	return nil
}
