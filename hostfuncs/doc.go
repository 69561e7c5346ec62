// Package hostfuncs is a pure Go reference implementation of the host side
// of the module protocol. It has NO WASM runtime dependencies: the same
// Server backs the wazero executor and the in-process test harness.
//
// A Server performs the handshake, keeps the command, data type and
// subscription tables a module fills during load, and runs call sessions in
// which a command writes its reply through the reply primitives. Replies are
// accumulated as RESP2 and decoded back into entities.Value when the call
// returns.
package hostfuncs
