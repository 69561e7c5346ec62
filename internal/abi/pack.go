// Package abi holds the calling convention shared by the guest module and
// the host runtime: byte ranges in WASM linear memory travel as a single
// uint64 with the pointer in the high 32 bits and the length in the low 32.
package abi

import "fmt"

// PtrHighBits is the shift applied to the pointer half of a packed value.
const PtrHighBits = 32

// HandleSize is the size in bytes of one string handle in an argv array.
const HandleSize = 8

// PackPtrLen packs a pointer and length into a single uint64.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Panics if ptr is 0 and length > 0, indicating an invalid packed value.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits)
	length = uint32(packed) //nolint:gosec // G115: low 32 bits by construction
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return ptr, length
}

// SafeUnpackPtrLen is UnpackPtrLen for values that come from the other side
// of the boundary. It reports malformed values instead of panicking.
func SafeUnpackPtrLen(packed uint64) (ptr, length uint32, ok bool) {
	ptr = uint32(packed >> PtrHighBits)
	length = uint32(packed) //nolint:gosec // G115: low 32 bits by construction
	if ptr == 0 && length > 0 {
		return 0, 0, false
	}
	return ptr, length, true
}
