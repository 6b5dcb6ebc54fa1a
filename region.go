package gpumem

import "fmt"

// Region names one of the logical buffer areas an Allocator tracks
type Region int

const (
	// RegionMain holds vertex and index data
	RegionMain Region = iota
	// RegionUniform holds per-frame uniform data: cameras, lights and per-asset blocks
	RegionUniform
)

var regionMapping = map[Region]string{
	RegionMain:    "RegionMain",
	RegionUniform: "RegionUniform",
}

func (r Region) String() string {
	str, ok := regionMapping[r]
	if !ok {
		return fmt.Sprintf("Region(%d)", int(r))
	}
	return str
}
