package memutils

import "math"

// Statistics summarizes one or more regions. BufferCount and BufferBytes describe the backing
// buffers and are filled in by whoever owns them; BlockCount and BlockBytes describe the live blocks
// placed inside those buffers.
type Statistics struct {
	BufferCount int
	BlockCount  int
	BufferBytes uint64
	BlockBytes  uint64
}

func (s *Statistics) Clear() {
	*s = Statistics{}
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BufferCount += other.BufferCount
	s.BlockCount += other.BlockCount
	s.BufferBytes += other.BufferBytes
	s.BlockBytes += other.BlockBytes
}

// AddBuffer counts one backing buffer of the provided capacity
func (s *Statistics) AddBuffer(capacity uint64) {
	s.BufferCount++
	s.BufferBytes += capacity
}

// DetailedStatistics adds block size extremes and the holes deletions have left below the
// high-water mark. Clear must be called before use so the minimums start high.
type DetailedStatistics struct {
	Statistics
	HoleCount    int
	BlockSizeMin uint64
	BlockSizeMax uint64
	HoleSizeMin  uint64
	HoleSizeMax  uint64
}

func (s *DetailedStatistics) Clear() {
	*s = DetailedStatistics{
		BlockSizeMin: math.MaxUint64,
		HoleSizeMin:  math.MaxUint64,
	}
}

func (s *DetailedStatistics) AddHole(size uint64) {
	s.HoleCount++
	s.HoleSizeMin = min(s.HoleSizeMin, size)
	s.HoleSizeMax = max(s.HoleSizeMax, size)
}

func (s *DetailedStatistics) AddBlock(size uint64) {
	s.BlockCount++
	s.BlockBytes += size
	s.BlockSizeMin = min(s.BlockSizeMin, size)
	s.BlockSizeMax = max(s.BlockSizeMax, size)
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.HoleCount += other.HoleCount
	s.HoleSizeMin = min(s.HoleSizeMin, other.HoleSizeMin)
	s.HoleSizeMax = max(s.HoleSizeMax, other.HoleSizeMax)
	s.BlockSizeMin = min(s.BlockSizeMin, other.BlockSizeMin)
	s.BlockSizeMax = max(s.BlockSizeMax, other.BlockSizeMax)
}
