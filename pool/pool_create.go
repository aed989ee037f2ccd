package pool

import (
	"io"
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/platform"
	"golang.org/x/exp/slog"
)

// minProviderAlignment is the alignment every platform.Provider guarantees for region bases
const minProviderAlignment = 8

// CreateOptions configures a new Pool
type CreateOptions struct {
	Flags    PoolCreateFlags
	Strategy Strategy

	// InitialReserve is the number of blocks reserved by New. 0 reserves nothing.
	InitialReserve int
	// PagesPerRegion is the size of each region acquired by a StrategyPageBacked pool, in units of the
	// provider's page granularity. 0 means one page. Regions are made larger if a single block does
	// not fit. Ignored by StrategyHeapBacked.
	PagesPerRegion int
	// MinBlockAlignment raises the alignment of every block above the alignment of T. It must be a power
	// of two. 0 means T's own alignment is used.
	MinBlockAlignment uint
	// MaxRegionBytes caps the total capacity of the regions the pool may acquire. Reservations that
	// would exceed it fail with memutils.ErrOutOfMemory. 0 means no limit.
	MaxRegionBytes int

	// Provider is the source of the pool's regions. If nil, StrategyPageBacked pools use a new
	// platform.OSProvider and StrategyHeapBacked pools use a new platform.HeapProvider.
	Provider        platform.Provider
	RegionCallbacks *RegionCallbackOptions
}

// New creates a pool of T. Page-backed pools acquire their first region immediately; every pool then
// reserves options.InitialReserve blocks. If any step fails, every region acquired so far is released.
//
// T may not contain Go pointers, strings, slices, maps, channels, funcs, or interfaces, since the
// garbage collector does not scan pool memory.
//
// logger may be nil, in which case nothing is logged.
func New[T any](logger *slog.Logger, options CreateOptions) (*Pool[T], error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard))
	}

	elementType := reflect.TypeOf((*T)(nil)).Elem()
	if memutils.HasPointers(elementType) {
		return nil, errors.Newf("%s contains Go pointers and cannot be stored in memory the garbage collector does not scan", elementType)
	}

	if options.InitialReserve < 0 {
		return nil, errors.Newf("InitialReserve must not be negative, but was %d", options.InitialReserve)
	}

	if options.PagesPerRegion < 0 {
		return nil, errors.Newf("PagesPerRegion must not be negative, but was %d", options.PagesPerRegion)
	}

	if options.MaxRegionBytes < 0 {
		return nil, errors.Newf("MaxRegionBytes must not be negative, but was %d", options.MaxRegionBytes)
	}

	minAlignment := options.MinBlockAlignment
	if minAlignment == 0 {
		minAlignment = 1
	}
	err := memutils.CheckPow2(minAlignment, "MinBlockAlignment")
	if err != nil {
		return nil, err
	}

	var zero T
	alignment := uint(unsafe.Alignof(zero))
	if minAlignment > alignment {
		alignment = minAlignment
	}
	memutils.DebugCheckPow2(alignment, "block alignment")
	blockSize := memutils.BlockSize(unsafe.Sizeof(zero), uintptr(alignment))

	// Providers only guarantee word alignment, so regions leave room to align the first block
	var slack int
	if alignment > minProviderAlignment {
		slack = int(alignment) - minProviderAlignment
	}

	provider := options.Provider
	var sizer regionSizer
	switch options.Strategy {
	case StrategyPageBacked:
		if provider == nil {
			provider = platform.NewOSProvider()
		}

		pagesPerRegion := options.PagesPerRegion
		if pagesPerRegion == 0 {
			pagesPerRegion = 1
		}
		sizer = newPageSizer(blockSize+slack, provider.PageGranularity(), pagesPerRegion)
	case StrategyHeapBacked:
		if provider == nil {
			provider = platform.NewHeapProvider(0)
		}

		sizer = heapSizer{blockSize: blockSize, slack: slack}
	default:
		return nil, errors.Newf("unknown pool strategy: %s", options.Strategy)
	}

	pool := &Pool[T]{
		logger:    logger,
		blockSize: blockSize,
		strategy:  options.Strategy,
		flags:     options.Flags,
		sizer:     sizer,
	}
	_, pool.constructible = any((*T)(nil)).(Constructible)
	_, pool.destructible = any((*T)(nil)).(Destructible)

	pool.regions.Init(logger, provider, options.RegionCallbacks, blockSize, alignment, pool.trackLiveness(), options.MaxRegionBytes)

	if options.Flags&PoolCreateLocked != 0 {
		pool.regions.Lock()
	}

	if sizer.AcquireOnCreate() {
		_, err = pool.regions.AppendRegion(sizer.RegionSize(0))
		if err != nil {
			return nil, errors.Wrap(err, "failed to acquire the pool's first region")
		}
	}

	err = pool.Reserve(options.InitialReserve)
	if err != nil {
		releaseErr := pool.regions.ReleaseAll()
		return nil, errors.CombineErrors(err, releaseErr)
	}

	return pool, nil
}
