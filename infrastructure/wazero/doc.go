// Package wazero connects a hostfuncs.Server to guest modules running in the
// wazero runtime.
//
// RegisterWithRuntime builds the "modbridge_host" host module a guest
// imports. It handles:
//
//   - The handshake and registration primitives (init, create_command,
//     create_data_type, subscribe_events), backed by the Server
//   - The reply primitives, which write into the current call session
//   - JSON host functions from a HandlerRegistry (call, log_message), read
//     from and written to guest memory in the packed i64 ptr+len format
//
// Commands and event handlers a guest registers become trampolines on the
// Server that copy their arguments into guest memory through the guest's
// allocate export and invoke modbridge_command or modbridge_event.
//
// # Basic Usage
//
//	server, _ := hostfuncs.NewServer()
//	registry, _ := hostfuncs.NewRegistry(
//	    hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
//	    hostfuncs.WithBundle(hostfuncs.ModuleBundle(server)),
//	)
//	runtime := wazero.NewRuntime(ctx)
//	err := wazero.RegisterWithRuntime(ctx, runtime, server, registry)
package wazero
