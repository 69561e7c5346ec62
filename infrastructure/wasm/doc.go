// Package wasm is the guest half of the module protocol for modules compiled
// with GOOS=wasip1.
//
// A module calls Register from main with its *module.Module. The package
// exports modbridge_on_load, modbridge_on_unload, modbridge_command and
// modbridge_event, and implements ports.Host over the modbridge_host imports.
// Commands and event handlers are entries in a Dispatcher keyed by the id
// sent to the host at registration, so one physical export serves every
// command.
//
// Everything except the raw import and export bindings builds on every
// platform, so the translation logic is tested natively against a fake
// Imports.
package wasm
