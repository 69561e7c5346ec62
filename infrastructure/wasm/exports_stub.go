//go:build !wasip1

package wasm

import (
	"github.com/reglet-dev/modbridge/application/module"
)

// Register stub for native builds. Load a module natively with
// testing/moduletest instead.
func Register(mod *module.Module, opts ...Option) {
	panic("WASM module exports not available in native build")
}
