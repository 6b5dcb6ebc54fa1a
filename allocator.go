package gpumem

import (
	"log/slog"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/gpumem/internal/utils"
	"github.com/vkngwrapper/gpumem/memutils"
	"github.com/vkngwrapper/gpumem/memutils/region"
	"github.com/vkngwrapper/gpumem/renderer"
)

// Allocator is the authority for where byte ranges live in the Main and Uniform regions. It only does
// bookkeeping: it never touches a device buffer, and it never grows one. Callers compare the high-water
// marks it reports against buffer capacity and run a migration when they need more room.
type Allocator struct {
	logger      *slog.Logger
	createFlags CreateFlags
	mutex       utils.OptionalRWMutex

	mainPolicy    region.Policy
	uniformPolicy region.Policy

	main    *region.Table
	uniform *region.Table

	uniformAlignments *swiss.Map[renderer.Renderer, uint64]
}

func (a *Allocator) table(r Region) *region.Table {
	if r == RegionUniform {
		return a.uniform
	}
	return a.main
}

// uniformAlignment returns the minimum uniform buffer offset alignment for r, querying the renderer
// only the first time. Renderers whose dynamic value cannot be hashed are queried on every call.
func (a *Allocator) uniformAlignment(r renderer.Renderer) (uint64, error) {
	if r == nil {
		return 0, errors.New("a renderer is required to request uniform memory")
	}

	if !reflect.ValueOf(r).Comparable() {
		return queryUniformAlignment(r)
	}

	alignment, ok := a.uniformAlignments.Get(r)
	if ok {
		return alignment, nil
	}

	alignment, err := queryUniformAlignment(r)
	if err != nil {
		return 0, err
	}

	a.logger.Debug("Allocator::uniformAlignment",
		slog.String("renderer", r.Kind().String()),
		slog.Uint64("alignment", alignment),
	)
	a.uniformAlignments.Put(r, alignment)
	return alignment, nil
}

func queryUniformAlignment(r renderer.Renderer) (uint64, error) {
	alignment := r.UniformBufferAlignment()
	if alignment == 0 {
		return 0, errors.Wrapf(memutils.AlignmentViolationError, "%s reported a uniform buffer alignment of 0", r.Kind())
	}

	err := memutils.CheckPow2(alignment, "uniform buffer alignment")
	if err != nil {
		return 0, err
	}

	return alignment, nil
}

func (a *Allocator) request(r Region, policy region.Policy, alignment, size uint64) (uint64, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	offset, err := a.table(r).Request(policy, size, alignment, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "%s request of %d bytes", r, size)
	}

	return offset, nil
}

// RequestMainMemoryLocation places size bytes in the Main region, aligned to componentStride, using
// the allocator's configured MainPolicy. componentStride does not need to be a power of two.
func (a *Allocator) RequestMainMemoryLocation(componentStride, size uint64) (uint64, error) {
	a.logger.Debug("Allocator::RequestMainMemoryLocation")

	return a.request(RegionMain, a.mainPolicy, componentStride, size)
}

// RequestMainMemoryLocationPacked places size bytes in the lowest hole of the Main region that can hold
// them, appending only when no hole is large enough
func (a *Allocator) RequestMainMemoryLocationPacked(componentStride, size uint64) (uint64, error) {
	a.logger.Debug("Allocator::RequestMainMemoryLocationPacked")

	return a.request(RegionMain, region.PolicyPacked, componentStride, size)
}

// RequestUniformMemoryLocation places size bytes in the Uniform region, aligned to the minimum uniform
// buffer offset alignment that r reports, using the allocator's configured UniformPolicy
func (a *Allocator) RequestUniformMemoryLocation(r renderer.Renderer, size uint64) (uint64, error) {
	a.logger.Debug("Allocator::RequestUniformMemoryLocation")

	a.mutex.Lock()
	alignment, err := a.uniformAlignment(r)
	a.mutex.Unlock()
	if err != nil {
		return 0, err
	}

	return a.request(RegionUniform, a.uniformPolicy, alignment, size)
}

// RequestUniformMemoryLocationPacked is RequestUniformMemoryLocation with hole reuse
func (a *Allocator) RequestUniformMemoryLocationPacked(r renderer.Renderer, size uint64) (uint64, error) {
	a.logger.Debug("Allocator::RequestUniformMemoryLocationPacked")

	a.mutex.Lock()
	alignment, err := a.uniformAlignment(r)
	a.mutex.Unlock()
	if err != nil {
		return 0, err
	}

	return a.request(RegionUniform, region.PolicyPacked, alignment, size)
}

func (a *Allocator) update(r Region, offset, newSize uint64) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	err := a.table(r).UpdateBlock(offset, newSize)
	if err != nil {
		return errors.Wrapf(err, "%s update", r)
	}
	return nil
}

// UpdateMainMemoryLocation resizes the Main block at offset in place. Growing a block into its successor
// returns memutils.BlockOverlapError.
func (a *Allocator) UpdateMainMemoryLocation(offset, newSize uint64) error {
	a.logger.Debug("Allocator::UpdateMainMemoryLocation")

	return a.update(RegionMain, offset, newSize)
}

// UpdateUniformMemoryLocation resizes the Uniform block at offset in place
func (a *Allocator) UpdateUniformMemoryLocation(offset, newSize uint64) error {
	a.logger.Debug("Allocator::UpdateUniformMemoryLocation")

	return a.update(RegionUniform, offset, newSize)
}

func (a *Allocator) delete(r Region, offset uint64) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	err := a.table(r).DeleteBlock(offset)
	if err != nil {
		return errors.Wrapf(err, "%s delete", r)
	}
	return nil
}

// DeleteMainMemoryLocation frees the Main block at offset. It returns memutils.BlockNotFoundError if no
// block starts there.
func (a *Allocator) DeleteMainMemoryLocation(offset uint64) error {
	a.logger.Debug("Allocator::DeleteMainMemoryLocation")

	return a.delete(RegionMain, offset)
}

// DeleteUniformMemoryLocation frees the Uniform block at offset
func (a *Allocator) DeleteUniformMemoryLocation(offset uint64) error {
	a.logger.Debug("Allocator::DeleteUniformMemoryLocation")

	return a.delete(RegionUniform, offset)
}

// GetMaxMainBufferOffset returns the high-water mark of the Main region
func (a *Allocator) GetMaxMainBufferOffset() uint64 {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.main.MaxOffset()
}

// GetMaxUniformOffset returns the high-water mark of the Uniform region, which is 0 if the region has
// never been used
func (a *Allocator) GetMaxUniformOffset() uint64 {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.uniform.MaxOffset()
}

// IsLastMainMemoryLocation reports whether the Main block at offset is the highest-offset block
func (a *Allocator) IsLastMainMemoryLocation(offset uint64) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.main.IsLastBlock(offset)
}

// IsLastUniformMemoryLocation reports whether the Uniform block at offset is the highest-offset block
func (a *Allocator) IsLastUniformMemoryLocation(offset uint64) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.uniform.IsLastBlock(offset)
}

// Blocks returns a copy of the live blocks of a region in offset order. This is the list a migration
// needs to carry the region's contents into a larger buffer.
func (a *Allocator) Blocks(r Region) []region.Block {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.table(r).Blocks()
}

// UsedSize returns the number of bytes of a region's buffer that are spoken for, including padding and
// holes
func (a *Allocator) UsedSize(r Region) uint64 {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.table(r).UsedSize()
}

// CalculateStatistics sums both regions into stats
func (a *Allocator) CalculateStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	stats.Clear()
	a.main.AddDetailedStatistics(stats)
	a.uniform.AddDetailedStatistics(stats)
}

// Validate checks the internal consistency of both regions
func (a *Allocator) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return memutils.ValidateAll(a.main, a.uniform)
}

// Clear frees every block in both regions and forgets cached renderer alignments
func (a *Allocator) Clear() {
	a.logger.Debug("Allocator::Clear")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.main.Clear()
	a.uniform.Clear()
	a.uniformAlignments.Clear()
}

// BuildStatsString produces a JSON document describing every block and hole in both regions
func (a *Allocator) BuildStatsString() string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	var stats memutils.DetailedStatistics
	stats.Clear()
	a.main.AddDetailedStatistics(&stats)
	a.uniform.AddDetailedStatistics(&stats)

	writer := jwriter.NewWriter()
	objState := writer.Object()

	totalObj := objState.Name("Total").Object()
	totalObj.Name("BlockCount").Int(stats.BlockCount)
	totalObj.Name("BlockBytes").Int(int(stats.BlockBytes))
	totalObj.Name("HoleCount").Int(stats.HoleCount)
	totalObj.End()

	for _, r := range []Region{RegionMain, RegionUniform} {
		regionObj := objState.Name(r.String()).Object()
		a.table(r).WriteJSON(&regionObj)
		regionObj.End()
	}

	objState.End()
	return string(writer.Bytes())
}
