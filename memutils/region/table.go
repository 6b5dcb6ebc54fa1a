package region

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/gpumem/memutils"
	"golang.org/x/exp/slices"
)

// Table tracks the occupied sub-ranges of one logical region of a backing buffer and answers
// placement queries against it.
//
// Blocks are kept ordered by offset, so the tail of the table is always the highest-offset block
// and the high-water mark is the end of the tail. Deleting a block never coalesces or compacts
// anything: deleting the tail lowers the high-water mark, while deleting any other block leaves a
// hole that only PolicyPacked requests will fill.
//
// Table is not safe for concurrent use.
type Table struct {
	blocks   []Block
	userData *swiss.Map[uint64, any]
}

// NewTable creates an empty Table
func NewTable() *Table {
	return &Table{
		userData: swiss.NewMap[uint64, any](42),
	}
}

func compareBlocks(a, b Block) int {
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

func (t *Table) find(offset uint64) (int, bool) {
	if !t.userData.Has(offset) {
		return -1, false
	}

	return slices.BinarySearchFunc(t.blocks, Block{Offset: offset}, compareBlocks)
}

// Len returns the number of live blocks
func (t *Table) Len() int {
	return len(t.blocks)
}

// IsEmpty returns true if the table has no live blocks
func (t *Table) IsEmpty() bool {
	return len(t.blocks) == 0
}

// MaxOffset returns the high-water mark: the end of the highest-offset block, or 0 if the table
// is empty
func (t *Table) MaxOffset() uint64 {
	if len(t.blocks) == 0 {
		return 0
	}

	return t.blocks[len(t.blocks)-1].End()
}

// UsedSize returns the number of bytes of the region that are spoken for, including alignment
// padding and holes left by deletions. It is always equal to MaxOffset.
func (t *Table) UsedSize() uint64 {
	return t.MaxOffset()
}

// SumBlockSize returns the number of bytes occupied by live blocks, excluding padding and holes
func (t *Table) SumBlockSize() uint64 {
	var sum uint64
	for _, block := range t.blocks {
		sum += block.Size
	}
	return sum
}

// IsLastBlock returns true if a block starts at offset and it is the highest-offset block in the table
func (t *Table) IsLastBlock(offset uint64) bool {
	return len(t.blocks) > 0 && t.blocks[len(t.blocks)-1].Offset == offset
}

// Block retrieves the block that starts at offset, if any
func (t *Table) Block(offset uint64) (Block, bool) {
	index, found := t.find(offset)
	if !found {
		return Block{}, false
	}

	return t.blocks[index], true
}

// Blocks returns a copy of the live blocks in offset order
func (t *Table) Blocks() []Block {
	return slices.Clone(t.blocks)
}

// Request places a new block of size bytes according to policy, and returns its offset
func (t *Table) Request(policy Policy, size, alignment uint64, userData any) (uint64, error) {
	if policy == PolicyPacked {
		return t.RequestBlockPacked(size, alignment, userData)
	}

	return t.RequestBlock(size, alignment, userData)
}

// paddedSize validates a request and rounds its size up to a whole number of alignment units
func paddedSize(size, alignment uint64) (uint64, error) {
	if alignment == 0 {
		return 0, errors.Wrapf(memutils.AlignmentViolationError, "block of size %d requested with a zero alignment", size)
	}

	if size == 0 {
		return 0, errors.New("attempted to request a zero-sized block")
	}

	return memutils.AlignUp(size, alignment)
}

// RequestBlock appends a new block of size bytes at the high-water mark, rounded up to alignment,
// and returns its offset. The block's recorded size is also rounded up to alignment. The returned
// offset is unique and the new block does not overlap any existing block.
func (t *Table) RequestBlock(size, alignment uint64, userData any) (uint64, error) {
	size, err := paddedSize(size, alignment)
	if err != nil {
		return 0, err
	}

	offset, err := memutils.AlignUp(t.MaxOffset(), alignment)
	if err != nil {
		return 0, err
	}

	if offset > math.MaxUint64-size {
		return 0, errors.Wrapf(memutils.AddressOverflowError, "block of %d bytes at offset %d", size, offset)
	}

	t.blocks = append(t.blocks, Block{Offset: offset, Size: size, Alignment: alignment})
	t.userData.Put(offset, userData)

	memutils.DebugValidate(t)
	return offset, nil
}

// RequestBlockPacked places a new block of size bytes in the lowest-offset hole that can hold it
// once aligned, including the space before the first block. If no hole is large enough the block
// is appended as with RequestBlock.
func (t *Table) RequestBlockPacked(size, alignment uint64, userData any) (uint64, error) {
	padded, err := paddedSize(size, alignment)
	if err != nil {
		return 0, err
	}

	var holeStart uint64
	for index, block := range t.blocks {
		candidate, err := memutils.AlignUp(holeStart, alignment)
		if err != nil {
			return 0, err
		}

		if candidate <= block.Offset && padded <= block.Offset-candidate {
			t.blocks = slices.Insert(t.blocks, index, Block{Offset: candidate, Size: padded, Alignment: alignment})
			t.userData.Put(candidate, userData)

			memutils.DebugValidate(t)
			return candidate, nil
		}

		holeStart = block.End()
	}

	return t.RequestBlock(size, alignment, userData)
}

// DeleteBlock removes the block that starts at offset. It returns memutils.BlockNotFoundError if no
// block starts at exactly that offset.
func (t *Table) DeleteBlock(offset uint64) error {
	index, found := t.find(offset)
	if !found {
		return errors.Wrapf(memutils.BlockNotFoundError, "delete of offset %d", offset)
	}

	t.blocks = slices.Delete(t.blocks, index, index+1)
	t.userData.Delete(offset)

	memutils.DebugValidate(t)
	return nil
}

// UpdateBlock changes the recorded size of the block at offset without moving it. The new size is
// rounded up to the block's alignment, and may
// not make the block run into its successor; that returns memutils.BlockOverlapError. Growing the
// tail block is always permitted and raises the high-water mark.
func (t *Table) UpdateBlock(offset, newSize uint64) error {
	index, found := t.find(offset)
	if !found {
		return errors.Wrapf(memutils.BlockNotFoundError, "update of offset %d", offset)
	}

	if newSize == 0 {
		return errors.Newf("attempted to resize block at offset %d to zero bytes", offset)
	}

	newSize, err := memutils.AlignUp(newSize, t.blocks[index].Alignment)
	if err != nil {
		return err
	}

	if offset > math.MaxUint64-newSize {
		return errors.Wrapf(memutils.AddressOverflowError, "resizing block at offset %d to %d bytes", offset, newSize)
	}

	if index+1 < len(t.blocks) && offset+newSize > t.blocks[index+1].Offset {
		return errors.Wrapf(memutils.BlockOverlapError, "resizing block at offset %d to %d bytes would overlap block at offset %d",
			offset, newSize, t.blocks[index+1].Offset)
	}

	t.blocks[index].Size = newSize

	memutils.DebugValidate(t)
	return nil
}

// UserData returns the value that was attached to the block at offset when it was requested
func (t *Table) UserData(offset uint64) (any, error) {
	userData, found := t.userData.Get(offset)
	if !found {
		return nil, errors.Wrapf(memutils.BlockNotFoundError, "user data of offset %d", offset)
	}

	return userData, nil
}

// SetUserData replaces the value attached to the block at offset
func (t *Table) SetUserData(offset uint64, userData any) error {
	if !t.userData.Has(offset) {
		return errors.Wrapf(memutils.BlockNotFoundError, "set user data of offset %d", offset)
	}

	t.userData.Put(offset, userData)
	return nil
}

// VisitAllRegions will call the provided callback once for each block and each hole below the
// high-water mark, in offset order
func (t *Table) VisitAllRegions(handleRegion func(offset, size uint64, userData any, free bool) error) error {
	var lastEnd uint64
	for _, block := range t.blocks {
		if block.Offset > lastEnd {
			err := handleRegion(lastEnd, block.Offset-lastEnd, nil, true)
			if err != nil {
				return err
			}
		}

		userData, _ := t.userData.Get(block.Offset)
		err := handleRegion(block.Offset, block.Size, userData, false)
		if err != nil {
			return err
		}

		lastEnd = block.End()
	}

	return nil
}

// Clear instantly frees all blocks
func (t *Table) Clear() {
	t.blocks = t.blocks[:0]
	t.userData.Clear()
}

// Validate performs internal consistency checks on the table: blocks are ordered and do not
// overlap, every offset satisfies its alignment, and the user data index matches the block list
func (t *Table) Validate() error {
	if t.userData.Count() != len(t.blocks) {
		return errors.Newf("the table has %d blocks, but %d indexed offsets", len(t.blocks), t.userData.Count())
	}

	var lastEnd uint64
	for index, block := range t.blocks {
		if block.Size == 0 {
			return errors.Newf("block at index %d has zero size", index)
		}

		if !memutils.IsAligned(block.Offset, block.Alignment) {
			return errors.Wrapf(memutils.AlignmentViolationError, "block at index %d has offset %d, which is not a multiple of its alignment %d",
				index, block.Offset, block.Alignment)
		}

		if block.Offset < lastEnd {
			return errors.Newf("block at index %d has offset %d- this collides with previous blocks, expected offset of at least %d",
				index, block.Offset, lastEnd)
		}

		if !t.userData.Has(block.Offset) {
			return errors.Newf("block at index %d with offset %d is missing from the offset index", index, block.Offset)
		}

		lastEnd = block.End()
	}

	return nil
}

// AddDetailedStatistics sums this table's blocks and holes into the provided statistics. It does not
// touch BufferCount or BufferBytes: the table does not know the capacity of the backing buffer.
func (t *Table) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	_ = t.VisitAllRegions(func(offset, size uint64, userData any, free bool) error {
		if free {
			stats.AddHole(size)
		} else {
			stats.AddBlock(size)
		}
		return nil
	})
}

// AddStatistics sums this table's blocks into the provided statistics
func (t *Table) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount += len(t.blocks)
	stats.BlockBytes += t.SumBlockSize()
}

// WriteJSON populates a json object with information about this table
func (t *Table) WriteJSON(json *jwriter.ObjectState) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	t.AddDetailedStatistics(&stats)

	json.Name("UsedBytes").Int(int(t.UsedSize()))
	json.Name("BlockBytes").Int(int(stats.BlockBytes))
	json.Name("BlockCount").Int(stats.BlockCount)
	json.Name("HoleCount").Int(stats.HoleCount)

	blocks := json.Name("Blocks").Array()
	_ = t.VisitAllRegions(func(offset, size uint64, userData any, free bool) error {
		obj := blocks.Object()
		obj.Name("Offset").Int(int(offset))
		obj.Name("Size").Int(int(size))
		if free {
			obj.Name("Type").String("FREE")
		} else {
			obj.Name("Type").String("BLOCK")
		}
		obj.End()
		return nil
	})
	blocks.End()
}
