package planner

import (
	"log/slog"
	"math"
)

const (
	KiB uint64 = 1 << 10

	// DefaultAssetCapacity is the initial capacity of SectionAsset
	DefaultAssetCapacity = 64 * KiB
	// DefaultIndicesCapacity is the initial capacity of SectionIndices
	DefaultIndicesCapacity = 64 * KiB
	// DefaultUICapacity is the initial capacity of SectionUI
	DefaultUICapacity = 32 * KiB

	// MinimumCapacity is where doubling starts for a section with neither a current capacity nor a default
	MinimumCapacity uint64 = 256
)

// Capacities maps sections to a capacity in bytes. Sections that are absent have no default.
type Capacities map[Section]uint64

// DefaultCapacities returns the initial capacities used when nothing else is configured. Image and
// uniform sections start empty and are sized by their first growth.
func DefaultCapacities() Capacities {
	return Capacities{
		SectionAsset:           DefaultAssetCapacity,
		SectionIndices:         DefaultIndicesCapacity,
		SectionImage:           0,
		SectionUI:              DefaultUICapacity,
		SectionUniformNonAsset: 0,
		SectionUniformAsset:    0,
	}
}

// NeedsGrowth reports whether a section with the provided usage must grow. A section that is exactly
// full needs growth: growth happens before overflow, never after.
func NeedsGrowth(used, capacity uint64) bool {
	return used >= capacity
}

// NextCapacity doubles current until the result is large enough to hold required with NeedsGrowth
// reporting false, so the result is always strictly greater than required. A current capacity of
// 0 starts from MinimumCapacity. If current already satisfies required it is returned unchanged.
func NextCapacity(current, required uint64) uint64 {
	capacity := current
	if capacity == 0 {
		capacity = MinimumCapacity
	}

	for NeedsGrowth(required, capacity) {
		if capacity > math.MaxUint64/2 {
			return math.MaxUint64
		}
		capacity *= 2
	}

	return capacity
}

// Growth describes a section whose capacity must be raised
type Growth struct {
	Section     Section
	Used        uint64
	OldCapacity uint64
	NewCapacity uint64
}

// Planner applies the doubling growth policy to SectionInfo snapshots, starting sections that have
// never been sized from a configured default
type Planner struct {
	logger   *slog.Logger
	defaults Capacities
}

// New creates a Planner. A nil defaults map uses DefaultCapacities.
func New(logger *slog.Logger, defaults Capacities) *Planner {
	if defaults == nil {
		defaults = DefaultCapacities()
	}

	return &Planner{
		logger:   logger,
		defaults: defaults,
	}
}

// Default returns the configured starting capacity for a section
func (p *Planner) Default(section Section) uint64 {
	return p.defaults[section]
}

// Initialize sets every section that has no capacity yet to its default
func (p *Planner) Initialize(info *SectionInfo) {
	for _, section := range Sections() {
		if info.Usage(section).Capacity == 0 {
			info.SetCapacity(section, p.defaults[section])
		}
	}
}

// NextCapacity computes the new capacity for a section, doubling from its default when the section
// currently has no capacity
func (p *Planner) NextCapacity(section Section, current, required uint64) uint64 {
	if current == 0 {
		current = p.defaults[section]
	}

	return NextCapacity(current, required)
}

// Plan lists every section of info that must grow, along with its new capacity. Sections that use
// no bytes at all never grow, even when their capacity is 0.
func (p *Planner) Plan(info *SectionInfo) []Growth {
	var growths []Growth
	for _, section := range Sections() {
		usage := info.Usage(section)
		if usage.Used == 0 || !NeedsGrowth(usage.Used, usage.Capacity) {
			continue
		}

		growth := Growth{
			Section:     section,
			Used:        usage.Used,
			OldCapacity: usage.Capacity,
			NewCapacity: p.NextCapacity(section, usage.Capacity, usage.Used),
		}
		p.logger.Debug("Planner::Plan",
			slog.String("section", section.String()),
			slog.Uint64("used", growth.Used),
			slog.Uint64("oldCapacity", growth.OldCapacity),
			slog.Uint64("newCapacity", growth.NewCapacity),
		)
		growths = append(growths, growth)
	}

	return growths
}

// Apply writes the new capacities from growths into info
func (p *Planner) Apply(info *SectionInfo, growths []Growth) {
	for _, growth := range growths {
		info.SetCapacity(growth.Section, growth.NewCapacity)
	}
}
