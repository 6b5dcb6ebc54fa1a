package memutils

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer
}

func CheckPow2[T Number](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment. Alignments are not required to be
// powers of two, since vertex component strides (12, 20, 36 bytes...) are used as alignments for
// the main buffer. An alignment of 0 returns AlignmentViolationError, and a result that would not fit
// in 64 bits returns AddressOverflowError.
func AlignUp(value uint64, alignment uint64) (uint64, error) {
	if alignment == 0 {
		return 0, cerrors.Wrapf(AlignmentViolationError, "cannot align %d to a zero alignment", value)
	}

	if alignment&(alignment-1) == 0 {
		if value > math.MaxUint64-(alignment-1) {
			return 0, cerrors.Wrapf(AddressOverflowError, "aligning %d to %d", value, alignment)
		}
		return (value + alignment - 1) &^ (alignment - 1), nil
	}

	remainder := value % alignment
	if remainder == 0 {
		return value, nil
	}
	if value > math.MaxUint64-(alignment-remainder) {
		return 0, cerrors.Wrapf(AddressOverflowError, "aligning %d to %d", value, alignment)
	}
	return value + alignment - remainder, nil
}

// MustAlignUp is AlignUp for alignments that have already been validated. It panics on a
// zero alignment.
func MustAlignUp(value uint64, alignment uint64) uint64 {
	aligned, err := AlignUp(value, alignment)
	if err != nil {
		panic(err)
	}
	return aligned
}

// AlignDown rounds value down to the previous multiple of alignment, which must not be zero
func AlignDown(value uint64, alignment uint64) uint64 {
	if alignment&(alignment-1) == 0 {
		return value &^ (alignment - 1)
	}
	return value - value%alignment
}

// IsAligned reports whether value is a multiple of alignment. A zero alignment is never satisfied.
func IsAligned(value uint64, alignment uint64) bool {
	return alignment != 0 && value%alignment == 0
}
