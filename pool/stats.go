package pool

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/blockpool/memutils"
)

// Regions returns a description of every region the pool owns, in the order they were acquired
func (p *Pool[T]) Regions() []RegionInfo {
	p.logger.Debug("Pool::Regions")

	return p.regions.Info()
}

// AddStatistics adds this pool's region and block counts to stats
func (p *Pool[T]) AddStatistics(stats *memutils.Statistics) {
	p.logger.Debug("Pool::AddStatistics")

	stats.RegionCount += p.regions.Count()
	stats.RegionBytes += p.regions.TotalBytes()

	blockCount := p.regions.CarvedBlocks()
	stats.BlockCount += blockCount
	stats.BlockBytes += blockCount * p.blockSize
	stats.AllocationCount += p.freeList.Allocated()
	stats.AllocationBytes += p.freeList.Allocated() * p.blockSize
}

// AddDetailedStatistics adds this pool's per-region statistics to stats
func (p *Pool[T]) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	p.logger.Debug("Pool::AddDetailedStatistics")

	for index := 0; index < p.regions.Count(); index++ {
		r := p.regions.At(index)
		stats.AddRegion(r.capacity, r.used-r.offset, p.blockSize)
	}

	stats.AllocationCount += p.freeList.Allocated()
	stats.AllocationBytes += p.freeList.Allocated() * p.blockSize
}

// BuildStatsString returns a JSON document describing the pool. If detailed is true, each region
// is listed individually.
func (p *Pool[T]) BuildStatsString(detailed bool) string {
	p.logger.Debug("Pool::BuildStatsString")

	writer := jwriter.NewWriter()
	objState := writer.Object()

	objState.Name("State").String(p.State().String())
	objState.Name("Strategy").String(p.strategy.String())
	objState.Name("Flags").String(p.flags.String())
	objState.Name("Locked").Bool(p.IsLocked())
	objState.Name("BlockSize").Int(p.blockSize)

	var stats memutils.DetailedStatistics
	stats.Clear()
	p.AddDetailedStatistics(&stats)

	totalObj := objState.Name("Total").Object()
	totalObj.Name("RegionCount").Int(stats.RegionCount)
	totalObj.Name("RegionBytes").Int(stats.RegionBytes)
	totalObj.Name("BlockCount").Int(stats.BlockCount)
	totalObj.Name("FreeBlockCount").Int(stats.FreeBlockCount())
	totalObj.Name("AllocationCount").Int(stats.AllocationCount)
	totalObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	totalObj.Name("UncarvedBytes").Int(stats.UncarvedBytes)
	if stats.RegionCount > 0 {
		totalObj.Name("RegionSizeMin").Int(stats.RegionSizeMin)
		totalObj.Name("RegionSizeMax").Int(stats.RegionSizeMax)
	}
	totalObj.End()

	if detailed {
		p.printDetailedRegions(&objState)
	}

	objState.End()

	return string(writer.Bytes())
}

func (p *Pool[T]) printDetailedRegions(json *jwriter.ObjectState) {
	regionsObj := json.Name("Regions").Object()
	defer regionsObj.End()

	for index, info := range p.regions.Info() {
		regionObj := regionsObj.Name(strconv.Itoa(index)).Object()

		regionObj.Name("Base").String("0x" + strconv.FormatUint(uint64(info.Base), 16))
		regionObj.Name("Capacity").Int(info.Capacity)
		regionObj.Name("Used").Int(info.Used)
		regionObj.Name("Blocks").Int(info.Blocks)
		regionObj.Name("Pinned").Bool(info.Pinned)
		if p.trackLiveness() {
			regionObj.Name("LiveBlocks").Int(info.LiveBlocks)
		}

		regionObj.End()
	}
}
