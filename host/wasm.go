package host

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	wazeroadapter "github.com/reglet-dev/modbridge/infrastructure/wazero"
)

// missingExports lists the module protocol exports compiled lacks.
func missingExports(compiled wazero.CompiledModule) []string {
	exported := compiled.ExportedFunctions()
	var missing []string
	for _, name := range wazeroadapter.RequiredExports {
		if _, ok := exported[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// initialize runs the reactor initializer when the module has one.
func initialize(ctx context.Context, mod api.Module) error {
	init := mod.ExportedFunction("_initialize")
	if init == nil {
		return nil
	}
	_, err := init.Call(ctx)
	return err
}
