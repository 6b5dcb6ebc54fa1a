package planner

import "fmt"

// Section identifies one sub-category of buffer usage tracked by SectionInfo
type Section int

const (
	// SectionAsset is vertex data for assets. Vulkan backends also pack asset indices here.
	SectionAsset Section = iota
	// SectionIndices is the separate index section used by OpenGL backends
	SectionIndices
	// SectionImage is image and texture staging data
	SectionImage
	// SectionUI is vertex data for UI draw commands, and their indices under Vulkan
	SectionUI
	// SectionUniformNonAsset is uniform data that is not tied to an asset: cameras, lights and the like
	SectionUniformNonAsset
	// SectionUniformAsset is per-asset uniform data
	SectionUniformAsset

	SectionCount int = iota
)

var sectionMapping = map[Section]string{
	SectionAsset:           "SectionAsset",
	SectionIndices:         "SectionIndices",
	SectionImage:           "SectionImage",
	SectionUI:              "SectionUI",
	SectionUniformNonAsset: "SectionUniformNonAsset",
	SectionUniformAsset:    "SectionUniformAsset",
}

func (s Section) String() string {
	str, ok := sectionMapping[s]
	if !ok {
		return fmt.Sprintf("Section(%d)", int(s))
	}
	return str
}

// Sections returns every Section in declaration order
func Sections() []Section {
	sections := make([]Section, 0, SectionCount)
	for i := 0; i < SectionCount; i++ {
		sections = append(sections, Section(i))
	}
	return sections
}

// Usage is the number of bytes a section requires, against the number of bytes its backing storage holds
type Usage struct {
	Used     uint64
	Capacity uint64
}

// Free returns the number of bytes remaining before the section is full, or 0 if it is already
// over capacity
func (u Usage) Free() uint64 {
	if u.Used >= u.Capacity {
		return 0
	}
	return u.Capacity - u.Used
}

// SectionInfo is a snapshot of usage against capacity for every Section. The zero value has no
// capacity in any section.
type SectionInfo struct {
	sections [SectionCount]Usage
}

// Usage returns the usage counters for a single section
func (i SectionInfo) Usage(section Section) Usage {
	return i.sections[section]
}

// SetUsed records the number of bytes a section currently requires
func (i *SectionInfo) SetUsed(section Section, used uint64) {
	i.sections[section].Used = used
}

// AddUsed adds to the number of bytes a section currently requires
func (i *SectionInfo) AddUsed(section Section, bytes uint64) {
	i.sections[section].Used += bytes
}

// SetCapacity records the number of bytes a section's backing storage holds
func (i *SectionInfo) SetCapacity(section Section, capacity uint64) {
	i.sections[section].Capacity = capacity
}

// ResetUsed zeroes the usage of every section while keeping capacities, ahead of a full recompute
func (i *SectionInfo) ResetUsed() {
	for index := range i.sections {
		i.sections[index].Used = 0
	}
}

// TotalCapacity sums the capacity of the listed sections
func (i SectionInfo) TotalCapacity(sections ...Section) uint64 {
	var total uint64
	for _, section := range sections {
		total += i.sections[section].Capacity
	}
	return total
}

// TotalUsed sums the usage of the listed sections
func (i SectionInfo) TotalUsed(sections ...Section) uint64 {
	var total uint64
	for _, section := range sections {
		total += i.sections[section].Used
	}
	return total
}
