//go:build wasip1

package wasm

import (
	"github.com/reglet-dev/modbridge/application/module"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
	"github.com/reglet-dev/modbridge/internal/abi"
)

var guest *Guest

// Register binds mod to the module exports. Call it from main before the
// host loads the module; opts configure the guest allocator.
//
//	func main() {
//	    wasm.Register(module.MustDefine(module.Def{Name: "hello", ...}))
//	}
func Register(mod *module.Module, opts ...Option) {
	abi.Configure(opts...)
	guest = NewGuest(mod, wasmImports{}, func(h ports.StringHandle) ([]byte, bool) {
		return abi.ViewFromPtr(uint64(h))
	})
}

//go:wasmexport modbridge_on_load
func onLoad(ctx uint64, argv uint32, argc int32) int32 {
	if guest == nil {
		return int32(entities.StatusErr)
	}
	return guest.Load(ctx, abi.HandlesFromPtr(argv, int(argc)), int(argc))
}

//go:wasmexport modbridge_on_unload
func onUnload(ctx uint64) int32 {
	if guest == nil {
		return int32(entities.StatusErr)
	}
	st := guest.Unload(ctx)
	abi.FreeAllTracked()
	return st
}

//go:wasmexport modbridge_command
func onCommand(ctx uint64, id int32, argv uint32, argc int32) int32 {
	if guest == nil {
		return int32(entities.StatusErr)
	}
	return guest.Command(ctx, id, abi.HandlesFromPtr(argv, int(argc)), int(argc))
}

//go:wasmexport modbridge_event
func onEvent(ctx uint64, id int32, eventType int32, event uint64, key uint64) int32 {
	// Events cannot fail towards the host, even before Register.
	if guest == nil {
		return int32(entities.StatusOK)
	}
	name, ok := abi.ViewFromPtr(event)
	if !ok {
		return int32(entities.StatusOK)
	}
	return guest.Event(ctx, id, eventType, string(name), key)
}
