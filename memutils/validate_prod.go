//go:build !debug_mem_utils

package memutils

import "unsafe"

const (
	// DebugPoisoning is true when free blocks are filled with a marker value that is verified before
	// the block is handed out again
	DebugPoisoning bool = false
)

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_mem_utils build tag is present.
func ValidateMagicValue(data unsafe.Pointer, size int) bool {
	return true
}

// WriteMagicValue writes an easy-to-identify marker across the first size bytes at the provided pointer,
// rounded down to a multiple of four bytes.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(data unsafe.Pointer, size int) {
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
}
