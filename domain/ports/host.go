package ports

import (
	"github.com/reglet-dev/modbridge/domain/entities"
)

// CtxHandle is an opaque, non-owning handle to the current host call session.
// It is only meaningful for the duration of the call that supplied it.
type CtxHandle uint64

// StringHandle is an opaque handle to a host-owned string.
type StringHandle uint64

// CommandFunc is the trampoline shape the host invokes for a command.
// argv holds argc host string handles; argv[0] is the command name.
type CommandFunc func(ctx CtxHandle, argv []StringHandle, argc int) entities.Status

// EventFunc is the trampoline shape the host invokes for a keyspace event.
type EventFunc func(ctx CtxHandle, eventType int32, event string, key StringHandle) entities.Status

// APIVersion1 is the module API version this bridge speaks.
const APIVersion1 = 1

// LogLevel names accepted by Host.Log.
const (
	LogDebug   = "debug"
	LogVerbose = "verbose"
	LogNotice  = "notice"
	LogWarning = "warning"
)

// Host is the capability surface a host exposes to a loaded module. Every
// registration and reply primitive reports a binary Status the caller must
// check.
type Host interface {
	Registrar
	Replier

	// StringBytes returns the bytes behind a host string handle. The slice is
	// owned by the host and may be reused once the current call returns.
	StringBytes(s StringHandle) ([]byte, bool)

	// Call invokes a host command from inside a module call session.
	Call(ctx CtxHandle, command string, args ...string) (entities.Value, error)

	// Log writes a message to the host log at the given level.
	Log(ctx CtxHandle, level, message string)
}

// Registrar holds the registration primitives used during load.
type Registrar interface {
	// Init performs the handshake. name is NUL terminated and passed by value
	// so the caller can keep it off the heap.
	Init(ctx CtxHandle, name entities.ModuleName, version, apiVersion int) entities.Status

	// CreateCommand registers fn under name.
	CreateCommand(ctx CtxHandle, name string, fn CommandFunc, flags string, firstKey, lastKey, keyStep int) entities.Status

	// CreateDataType registers a custom data type.
	CreateDataType(ctx CtxHandle, dt *entities.DataType) entities.Status

	// SubscribeToKeyspaceEvents subscribes fn to the given event categories.
	SubscribeToKeyspaceEvents(ctx CtxHandle, events entities.NotifyEvent, fn EventFunc) entities.Status
}

// Replier holds the reply-writing primitives. An array header announces n
// elements that the following calls provide.
type Replier interface {
	ReplyWithSimpleString(ctx CtxHandle, s string) entities.Status
	ReplyWithError(ctx CtxHandle, message string) entities.Status
	ReplyWithLongLong(ctx CtxHandle, v int64) entities.Status
	ReplyWithDouble(ctx CtxHandle, v float64) entities.Status
	ReplyWithStringBuffer(ctx CtxHandle, b []byte) entities.Status
	ReplyWithArray(ctx CtxHandle, n int) entities.Status
	ReplyWithNull(ctx CtxHandle) entities.Status
}
