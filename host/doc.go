// Package host runs modules compiled to WebAssembly against the reference
// host server.
//
// An Executor owns a wazero runtime with the modbridge_host import module
// registered. LoadModule compiles a binary, checks it exports the module
// protocol and drives its load entry point; the returned Instance calls
// commands, raises keyspace events and unloads the module. Every entry
// into the guest is serialized. Commands a module calls re-entrantly while
// handling a command run on the same goroutine.
//
//	exec, err := host.NewExecutor(ctx, host.WithMetrics(metrics))
//	inst, err := exec.LoadModule(ctx, wasmBytes, "maxlen", "10")
//	reply, err := inst.Call(ctx, "hello.echo", "hi")
//
// Loader and Verify check what a module registered against an expected
// manifest file.
package host
