package region

import "fmt"

// Block is a contiguous occupied range within a region. Offset is always a multiple of Alignment,
// the alignment that was in force when the block was requested.
type Block struct {
	Offset    uint64
	Size      uint64
	Alignment uint64
}

// End returns the first byte past the block
func (b Block) End() uint64 {
	return b.Offset + b.Size
}

// Overlaps reports whether the two blocks share at least one byte
func (b Block) Overlaps(other Block) bool {
	return b.Offset < other.End() && other.Offset < b.End()
}

func (b Block) String() string {
	return fmt.Sprintf("[%d, %d)", b.Offset, b.End())
}
