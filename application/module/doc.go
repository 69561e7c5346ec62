// Package module adapts a host's plugin-loading protocol into a typed
// request/response model for extension authors.
//
// An extension declares itself once with Define:
//
//	var Module = module.MustDefine(module.Def{
//		Name:    "hello",
//		Version: 1,
//		Commands: []module.Command{
//			{Name: "hello.mul", Handler: mul, Flags: "readonly", FirstKey: 0},
//		},
//	})
//
// The host drives the module through OnLoad and OnUnload. During load the
// module performs the handshake, runs init hooks, registers data types,
// commands and event handlers, in that order, stopping at the first failure.
// Each command is exposed to the host as a trampoline that decodes the
// host-owned arguments, runs the handler behind a fault barrier and writes
// the reply.
//
// No panic raised by extension code crosses back into the host. Command
// faults become error replies naming the command, event faults are logged
// and absorbed, and lifecycle faults fail the load or unload.
package module
