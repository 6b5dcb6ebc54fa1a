//go:build !debug_mem_utils

package memutils

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckAligned panics if offset is not a multiple of alignment.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckAligned(offset, alignment uint64) {
}
