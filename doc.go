// Package modbridge holds helpers shared by module authors. Most of the
// bridge lives in subpackages: application/module defines modules,
// infrastructure/wasm exports them from a guest and host runs them.
//
// The helpers here turn the raw load arguments a module receives in its
// init hooks into typed values:
//
//	Init: []module.InitFunc{func(ctx *module.Context, argv []string) error {
//		args, err := modbridge.ParseArgs(argv)
//		if err != nil {
//			return err
//		}
//		limit = args.IntDefault("limit", 100)
//		return nil
//	}},
package modbridge
