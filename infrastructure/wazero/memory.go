package wazero

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/modbridge/internal/abi"
)

// Guest export names.
const (
	ExportAllocate   = "allocate"
	ExportDeallocate = "deallocate"
	ExportOnLoad     = "modbridge_on_load"
	ExportOnUnload   = "modbridge_on_unload"
	ExportCommand    = "modbridge_command"
	ExportEvent      = "modbridge_event"
)

// RequiredExports lists what a guest module must export to be loaded.
var RequiredExports = []string{
	ExportAllocate, ExportDeallocate, ExportOnLoad, ExportOnUnload, ExportCommand, ExportEvent,
}

// memoryReader is the part of api.Memory the readers need.
type memoryReader interface {
	Read(offset, byteCount uint32) ([]byte, bool)
}

// readPacked copies the bytes a packed ptr+len value points at. Values
// longer than limit or outside memory are rejected.
func readPacked(mem memoryReader, packed uint64, limit uint32) ([]byte, error) {
	ptr, length, ok := abi.SafeUnpackPtrLen(packed)
	if !ok {
		return nil, fmt.Errorf("malformed pointer %#x", packed)
	}
	if length > limit {
		return nil, fmt.Errorf("request size %d exceeds maximum %d bytes", length, limit)
	}
	if length == 0 {
		return []byte{}, nil
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("range %d+%d is outside guest memory", ptr, length)
	}
	return append([]byte(nil), view...), nil
}

func readString(mem memoryReader, packed uint64, limit uint32) (string, error) {
	b, err := readPacked(mem, packed, limit)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeHandles lays out argv handles the way the guest reads them.
func encodeHandles(handles []uint64) []byte {
	out := make([]byte, len(handles)*abi.HandleSize)
	for i, h := range handles {
		binary.LittleEndian.PutUint64(out[i*abi.HandleSize:], h)
	}
	return out
}

// GuestMemory moves bytes into a guest module's linear memory through its
// allocate and deallocate exports.
type GuestMemory struct {
	mod        api.Module
	allocate   api.Function
	deallocate api.Function
}

// NewGuestMemory fails when the module does not export the allocator.
func NewGuestMemory(mod api.Module) (*GuestMemory, error) {
	allocate := mod.ExportedFunction(ExportAllocate)
	deallocate := mod.ExportedFunction(ExportDeallocate)
	if allocate == nil || deallocate == nil {
		return nil, fmt.Errorf("guest module %q missing %q or %q export", mod.Name(), ExportAllocate, ExportDeallocate)
	}
	return &GuestMemory{mod: mod, allocate: allocate, deallocate: deallocate}, nil
}

// Write copies data into freshly allocated guest memory and returns the
// packed ptr+len. Empty data packs to 0 without allocating.
func (g *GuestMemory) Write(ctx context.Context, data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	results, err := g.allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocate failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("guest allocate returned no results")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocate returned null for %d bytes", len(data))
	}
	if !g.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write %d bytes to guest memory", len(data))
	}
	return abi.PackPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // G115: bounded by request limits
}

// Free releases memory obtained from Write.
func (g *GuestMemory) Free(ctx context.Context, packed uint64) {
	ptr, length, ok := abi.SafeUnpackPtrLen(packed)
	if !ok || ptr == 0 {
		return
	}
	_, _ = g.deallocate.Call(ctx, uint64(ptr), uint64(length))
}

// WriteArgv copies args into guest memory as string handles followed by the
// handle array itself. The returned release frees all of it.
func (g *GuestMemory) WriteArgv(ctx context.Context, args [][]byte) (argv uint32, release func(), err error) {
	var written []uint64
	release = func() {
		for _, p := range written {
			g.Free(ctx, p)
		}
	}

	handles := make([]uint64, len(args))
	for i, a := range args {
		p, err := g.Write(ctx, a)
		if err != nil {
			release()
			return 0, func() {}, err
		}
		handles[i] = p
		written = append(written, p)
	}
	if len(handles) == 0 {
		return 0, release, nil
	}

	table, err := g.Write(ctx, encodeHandles(handles))
	if err != nil {
		release()
		return 0, func() {}, err
	}
	written = append(written, table)
	ptr, _ := abi.UnpackPtrLen(table)
	return ptr, release, nil
}
