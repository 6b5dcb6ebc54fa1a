package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// BlockNotFoundError is returned when an update or delete refers to an offset at which no block starts.
// It always indicates a caller bug.
var BlockNotFoundError error = errors.New("no block starts at the requested offset")

// BlockOverlapError is returned when an in-place resize would make a block run into its successor
var BlockOverlapError error = errors.New("block would overlap the following block")

// AlignmentViolationError is returned when an alignment of zero is supplied, or when a computed offset
// does not satisfy the alignment of its region. It indicates a configuration bug, such as a driver
// reporting a zero alignment.
var AlignmentViolationError error = errors.New("alignment violation")

// OutOfDeviceMemoryError is returned when a backing buffer could not be allocated on the device. The
// frame that triggered it should be aborted; the previously-live buffer remains authoritative.
var OutOfDeviceMemoryError error = errors.New("out of device memory")

// CapacityExceededError is returned when a caller writes past the capacity of a backing buffer without
// running the realloc check first
var CapacityExceededError error = errors.New("capacity exceeded without migration")

// AddressOverflowError is returned when aligning an offset or placing a block would run past the end
// of the 64-bit address space
var AddressOverflowError error = errors.New("offset overflows the address space")

// InvalidStateError is returned when a migration operation is invoked from a state that does not permit it
var InvalidStateError error = errors.New("invalid migration state")
