package pool

import "github.com/vkngwrapper/blockpool/memutils"

// Strategy selects how a pool sizes the regions it acquires
type Strategy int32

const (
	// StrategyPageBacked acquires regions a fixed number of pages at a time and carves as many blocks
	// as fit. Large reservations acquire several regions. This is the default.
	StrategyPageBacked Strategy = iota
	// StrategyHeapBacked acquires exactly enough memory for each unmet reservation in a single region
	StrategyHeapBacked
)

var strategyMapping = map[Strategy]string{
	StrategyPageBacked: "StrategyPageBacked",
	StrategyHeapBacked: "StrategyHeapBacked",
}

func (s Strategy) String() string {
	str, ok := strategyMapping[s]
	if !ok {
		return "unknown"
	}
	return str
}

// regionSizer decides the capacity of the next region a pool acquires while it still needs
// remaining blocks
type regionSizer interface {
	RegionSize(remaining int) int
	// AcquireOnCreate is true if the pool should acquire a region before any reservation is made
	AcquireOnCreate() bool
}

type pageSizer struct {
	regionBytes int
}

var _ regionSizer = pageSizer{}

func newPageSizer(blockSize, pageSize, pagesPerRegion int) pageSizer {
	regionBytes := pagesPerRegion * pageSize
	if regionBytes < blockSize {
		regionBytes = memutils.RoundUp(blockSize, pageSize)
	}

	return pageSizer{regionBytes: regionBytes}
}

func (s pageSizer) RegionSize(remaining int) int {
	return s.regionBytes
}

func (s pageSizer) AcquireOnCreate() bool { return true }

type heapSizer struct {
	blockSize int
	slack     int
}

var _ regionSizer = heapSizer{}

func (s heapSizer) RegionSize(remaining int) int {
	return remaining*s.blockSize + s.slack
}

func (s heapSizer) AcquireOnCreate() bool { return false }
