//go:build wasip1

package wasm

import (
	"unsafe"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/internal/abi"
)

// String and byte arguments travel as packed ptr|len values (see abi).

//go:wasmimport modbridge_host init
func host_init(ctx uint64, namePtr uint32, nameLen uint32, version int32, apiVersion int32) int32

//go:wasmimport modbridge_host create_command
func host_create_command(ctx uint64, name uint64, id int32, flags uint64, firstKey, lastKey, keyStep int32) int32

//go:wasmimport modbridge_host create_data_type
func host_create_data_type(ctx uint64, name uint64, encodingVersion int32) int32

//go:wasmimport modbridge_host subscribe_events
func host_subscribe_events(ctx uint64, events int32, id int32) int32

//go:wasmimport modbridge_host reply_simple_string
func host_reply_simple_string(ctx uint64, s uint64) int32

//go:wasmimport modbridge_host reply_error
func host_reply_error(ctx uint64, message uint64) int32

//go:wasmimport modbridge_host reply_long_long
func host_reply_long_long(ctx uint64, v int64) int32

//go:wasmimport modbridge_host reply_double
func host_reply_double(ctx uint64, v float64) int32

//go:wasmimport modbridge_host reply_string_buffer
func host_reply_string_buffer(ctx uint64, b uint64) int32

//go:wasmimport modbridge_host reply_array
func host_reply_array(ctx uint64, n int32) int32

//go:wasmimport modbridge_host reply_null
func host_reply_null(ctx uint64) int32

//go:wasmimport modbridge_host call
func host_call(ctx uint64, request uint64) uint64

//go:wasmimport modbridge_host log_message
func host_log_message(ctx uint64, message uint64)

// wasmImports implements Imports with the real host functions.
type wasmImports struct{}

// Init passes the name buffer in place. It is never copied to the heap, so
// the handshake works before the allocator is usable.
func (wasmImports) Init(ctx uint64, name *entities.ModuleName, version, apiVersion int32) int32 {
	//nolint:gosec // G103,G115: address of a stack buffer in linear memory
	ptr := uint32(uintptr(unsafe.Pointer(&name[0])))
	return host_init(ctx, ptr, uint32(name.Len()), version, apiVersion) //nolint:gosec // G115: at most 63
}

func (wasmImports) CreateCommand(ctx uint64, name string, id int32, flags string, firstKey, lastKey, keyStep int32) int32 {
	namePacked := abi.PtrFromString(name)
	defer abi.DeallocatePacked(namePacked)
	flagsPacked := abi.PtrFromString(flags)
	defer abi.DeallocatePacked(flagsPacked)
	return host_create_command(ctx, namePacked, id, flagsPacked, firstKey, lastKey, keyStep)
}

func (wasmImports) CreateDataType(ctx uint64, name string, encodingVersion int32) int32 {
	packed := abi.PtrFromString(name)
	defer abi.DeallocatePacked(packed)
	return host_create_data_type(ctx, packed, encodingVersion)
}

func (wasmImports) SubscribeEvents(ctx uint64, events int32, id int32) int32 {
	return host_subscribe_events(ctx, events, id)
}

func (wasmImports) ReplySimpleString(ctx uint64, s string) int32 {
	packed := abi.PtrFromString(s)
	defer abi.DeallocatePacked(packed)
	return host_reply_simple_string(ctx, packed)
}

func (wasmImports) ReplyError(ctx uint64, message string) int32 {
	packed := abi.PtrFromString(message)
	defer abi.DeallocatePacked(packed)
	return host_reply_error(ctx, packed)
}

func (wasmImports) ReplyLongLong(ctx uint64, v int64) int32 {
	return host_reply_long_long(ctx, v)
}

func (wasmImports) ReplyDouble(ctx uint64, v float64) int32 {
	return host_reply_double(ctx, v)
}

func (wasmImports) ReplyStringBuffer(ctx uint64, b []byte) int32 {
	packed := abi.PtrFromBytes(b)
	defer abi.DeallocatePacked(packed)
	return host_reply_string_buffer(ctx, packed)
}

func (wasmImports) ReplyArray(ctx uint64, n int32) int32 {
	return host_reply_array(ctx, n)
}

func (wasmImports) ReplyNull(ctx uint64) int32 {
	return host_reply_null(ctx)
}

func (wasmImports) Call(ctx uint64, request []byte) []byte {
	reqPacked := abi.PtrFromBytes(request)
	defer abi.DeallocatePacked(reqPacked)

	// The host allocates the response through allocate; the guest frees it.
	respPacked := host_call(ctx, reqPacked)
	resp := abi.BytesFromPtr(respPacked)
	abi.DeallocatePacked(respPacked)
	return resp
}

func (wasmImports) LogMessage(ctx uint64, message []byte) {
	packed := abi.PtrFromBytes(message)
	defer abi.DeallocatePacked(packed)
	host_log_message(ctx, packed)
}
