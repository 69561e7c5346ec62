//go:build wasip1

package abi

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"
)

// memoryManager tracks all allocations made through allocate.
// It keeps a reference to allocated slices to prevent the Go GC from collecting them,
// effectively "pinning" the memory until explicitly freed or during panic recovery.
var memoryManager = struct {
	sync.Mutex
	ptrs           map[uint32][]byte // ptr -> slice reference
	totalAllocated int               // Total bytes currently allocated
	cfg            config
}{
	ptrs: make(map[uint32][]byte),
	cfg:  config{maxTotalAllocations: DefaultMaxTotalAllocations},
}

// Configure applies options to the memory manager.
func Configure(opts ...Option) {
	memoryManager.Lock()
	defer memoryManager.Unlock()
	for _, opt := range opts {
		opt(&memoryManager.cfg)
	}
}

// Stats returns the number of live allocations and their total size.
func Stats() (count, totalBytes int) {
	memoryManager.Lock()
	defer memoryManager.Unlock()
	return len(memoryManager.ptrs), memoryManager.totalAllocated
}

// allocate reserves memory in the WASM linear memory and returns a pointer.
// The host uses it to place argument strings and argv arrays in guest memory.
// Panics if allocation would exceed the configured limit.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	memoryManager.Lock()
	defer memoryManager.Unlock()

	limit := memoryManager.cfg.maxTotalAllocations
	if memoryManager.totalAllocated+int(size) > limit {
		panic(fmt.Sprintf("abi: memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			size, memoryManager.totalAllocated, limit))
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))

	memoryManager.ptrs[ptr] = buf // PIN THE MEMORY: Store the slice to prevent GC
	memoryManager.totalAllocated += int(size)

	return ptr
}

// deallocate frees memory by removing the reference from the memory manager,
// allowing the Go GC to collect it. Decrements totalAllocated by the actual
// stored slice length (not the passed size) to prevent counter corruption.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, _ uint32) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	storedSlice, exists := memoryManager.ptrs[ptr]
	if !exists {
		return // Ignore untracked pointers (idempotent)
	}

	delete(memoryManager.ptrs, ptr)
	memoryManager.totalAllocated -= len(storedSlice)
	if memoryManager.totalAllocated < 0 {
		memoryManager.totalAllocated = 0
	}
}

// FreeAllTracked frees all memory currently tracked.
// It runs after a fault and when the module unloads.
func FreeAllTracked() {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	clear(memoryManager.ptrs)
	memoryManager.totalAllocated = 0
}

// PtrFromBytes allocates WASM memory, copies the given data into it,
// and returns the packed pointer and length (uint64).
// This is used when the guest sends data to the host.
func PtrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data))
	ptr := allocate(size)
	copyToMemory(ptr, data)
	return PackPtrLen(ptr, size)
}

// PtrFromString is PtrFromBytes for strings.
func PtrFromString(s string) uint64 {
	return PtrFromBytes([]byte(s))
}

// BytesFromPtr returns a copy of the bytes described by packed.
func BytesFromPtr(packed uint64) []byte {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil
	}
	return readFromMemory(ptr, length)
}

// ViewFromPtr returns the bytes described by packed without copying. The
// view is only valid while the memory stays allocated.
func ViewFromPtr(packed uint64) ([]byte, bool) {
	ptr, length, ok := SafeUnpackPtrLen(packed)
	if !ok {
		return nil, false
	}
	if length == 0 {
		return []byte{}, true
	}
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length), true
}

// HandlesFromPtr reads n little-endian uint64 values starting at ptr.
func HandlesFromPtr(ptr uint32, n int) []uint64 {
	if ptr == 0 || n <= 0 {
		return nil
	}
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	raw := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), n*HandleSize)
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(raw[i*HandleSize:])
	}
	return out
}

// DeallocatePacked frees guest memory described by a packed value.
func DeallocatePacked(packed uint64) {
	ptr, length := UnpackPtrLen(packed)
	if ptr != 0 && length > 0 {
		deallocate(ptr, length)
	}
}

// copyToMemory copies data to WASM linear memory at the given pointer.
func copyToMemory(ptr uint32, data []byte) {
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	dest := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(dest, data)
}

// readFromMemory reads data from WASM linear memory.
func readFromMemory(ptr uint32, length uint32) []byte {
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	data := make([]byte, length)
	copy(data, src)
	return data
}
