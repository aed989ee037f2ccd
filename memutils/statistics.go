package memutils

import "math"

// Statistics summarizes how much memory a pool has acquired and how much of it is handed out.
type Statistics struct {
	// RegionCount is the number of regions acquired from the memory provider
	RegionCount int
	// RegionBytes is the total capacity of those regions
	RegionBytes int
	// BlockCount is the number of blocks carved out of the regions, free or allocated
	BlockCount int
	// BlockBytes is the number of region bytes that have been carved into blocks
	BlockBytes int
	// AllocationCount is the number of blocks currently handed out
	AllocationCount int
	// AllocationBytes is the number of bytes in the blocks currently handed out
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.RegionCount = 0
	s.RegionBytes = 0
	s.BlockCount = 0
	s.BlockBytes = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.RegionCount += other.RegionCount
	s.RegionBytes += other.RegionBytes
	s.BlockCount += other.BlockCount
	s.BlockBytes += other.BlockBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
}

// FreeBlockCount is the number of carved blocks that are not handed out
func (s *Statistics) FreeBlockCount() int {
	return s.BlockCount - s.AllocationCount
}

type DetailedStatistics struct {
	Statistics
	// UncarvedBytes is the number of region bytes not yet carved into blocks
	UncarvedBytes int
	RegionSizeMin int
	RegionSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UncarvedBytes = 0
	s.RegionSizeMin = math.MaxInt
	s.RegionSizeMax = 0
}

// AddRegion records a single region of the provided capacity with used bytes carved into blocks
// of blockSize bytes each.
func (s *DetailedStatistics) AddRegion(capacity, used, blockSize int) {
	s.RegionCount++
	s.RegionBytes += capacity
	s.BlockBytes += used
	if blockSize > 0 {
		s.BlockCount += used / blockSize
	}
	s.UncarvedBytes += capacity - used

	if capacity < s.RegionSizeMin {
		s.RegionSizeMin = capacity
	}

	if capacity > s.RegionSizeMax {
		s.RegionSizeMax = capacity
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UncarvedBytes += other.UncarvedBytes

	if other.RegionSizeMin < s.RegionSizeMin {
		s.RegionSizeMin = other.RegionSizeMin
	}

	if other.RegionSizeMax > s.RegionSizeMax {
		s.RegionSizeMax = other.RegionSizeMax
	}
}
