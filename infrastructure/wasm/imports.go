package wasm

import "github.com/reglet-dev/modbridge/domain/entities"

// Imports is the raw modbridge_host import surface. Status results are the
// host's int32 status codes; ctx is the call handle the host passed in.
type Imports interface {
	Init(ctx uint64, name *entities.ModuleName, version, apiVersion int32) int32
	CreateCommand(ctx uint64, name string, id int32, flags string, firstKey, lastKey, keyStep int32) int32
	CreateDataType(ctx uint64, name string, encodingVersion int32) int32
	SubscribeEvents(ctx uint64, events int32, id int32) int32

	ReplySimpleString(ctx uint64, s string) int32
	ReplyError(ctx uint64, message string) int32
	ReplyLongLong(ctx uint64, v int64) int32
	ReplyDouble(ctx uint64, v float64) int32
	ReplyStringBuffer(ctx uint64, b []byte) int32
	ReplyArray(ctx uint64, n int32) int32
	ReplyNull(ctx uint64) int32

	// Call sends a JSON CallRequestWire and returns the JSON response.
	Call(ctx uint64, request []byte) []byte
	// LogMessage sends a JSON LogMessageWire.
	LogMessage(ctx uint64, message []byte)
}
