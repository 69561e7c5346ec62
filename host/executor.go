package host

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	hosterrors "github.com/reglet-dev/modbridge/errors"
	"github.com/reglet-dev/modbridge/hostfuncs"
	wazeroadapter "github.com/reglet-dev/modbridge/infrastructure/wazero"
)

// Executor runs WASM modules against a hostfuncs.Server. A server holds one
// module at a time, so an Executor has at most one loaded Instance.
type Executor struct {
	runtime  wazero.Runtime
	server   *hostfuncs.Server
	registry *hostfuncs.HandlerRegistry
	logger   *slog.Logger
	metrics  *Metrics
	cfg      executorConfig

	// mu serializes every entry into the guest. Re-entrant calls made by a
	// guest command run on the caller's goroutine and never take it.
	mu     sync.Mutex
	loaded *Instance
	closed bool
}

// NewExecutor creates the runtime, the server and the modbridge_host module.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := executorConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	errb := oops.In("host").Code(hosterrors.CodeRuntimeFailed)

	e := &Executor{cfg: cfg, logger: cfg.logger, metrics: cfg.metrics, server: cfg.server}
	if e.server == nil {
		serverOpts := []hostfuncs.ServerOption{
			hostfuncs.WithLogger(cfg.logger),
			hostfuncs.WithCommandMiddleware(hostfuncs.CommandRecoveryMiddleware(cfg.logger)),
		}
		if e.metrics != nil {
			serverOpts = append(serverOpts, hostfuncs.WithCommandMiddleware(e.metrics.CommandMiddleware()))
		}
		serverOpts = append(serverOpts, hostfuncs.WithCommandMiddleware(hostfuncs.CommandLoggingMiddleware(cfg.logger)))
		serverOpts = append(serverOpts, cfg.serverOpts...)

		s, err := hostfuncs.NewServer(serverOpts...)
		if err != nil {
			return nil, errb.Wrapf(err, "failed to create server")
		}
		e.server = s
	}

	e.registry = cfg.registry
	if e.registry == nil {
		mw := []hostfuncs.Middleware{
			hostfuncs.PanicRecoveryMiddleware(),
			hostfuncs.LoggingMiddleware(cfg.logger),
		}
		if cfg.callChecker != nil {
			mw = append(mw, wazeroadapter.WithCallPolicyMiddleware(cfg.callChecker))
		}
		reg, err := hostfuncs.NewRegistry(
			hostfuncs.WithMiddleware(mw...),
			hostfuncs.WithBundle(hostfuncs.ModuleBundle(e.server)),
		)
		if err != nil {
			return nil, errb.Wrapf(err, "failed to create default registry")
		}
		e.registry = reg
	}

	rtCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.memoryPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.memoryPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, errb.Wrapf(err, "failed to instantiate WASI")
	}
	e.runtime = rt

	if err := wazeroadapter.RegisterWithRuntime(ctx, rt, e.server, e.registry, cfg.adapterOpts...); err != nil {
		_ = rt.Close(ctx)
		return nil, errb.Wrapf(err, "failed to register host functions")
	}
	return e, nil
}

// Server returns the server modules are loaded into.
func (e *Executor) Server() *hostfuncs.Server {
	return e.server
}

// Close unloads the loaded module, if any, and releases the runtime.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	inst := e.loaded
	e.mu.Unlock()

	var unloadErr error
	if inst != nil {
		unloadErr = inst.Unload(ctx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return unloadErr
	}
	e.closed = true
	if err := e.runtime.Close(ctx); err != nil {
		return err
	}
	return unloadErr
}

// LoadModule compiles wasmBytes, instantiates it and runs its load entry
// point with args. On failure everything the module registered is
// forgotten and the instance is closed.
func (e *Executor) LoadModule(ctx context.Context, wasmBytes []byte, args ...string) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, err := e.load(ctx, wasmBytes, args)
	if e.metrics != nil {
		e.metrics.recordLoad(err)
	}
	if err != nil {
		hosterrors.LogError(e.logger, "module load failed", err)
		return nil, err
	}
	e.loaded = inst
	return inst, nil
}

func (e *Executor) load(ctx context.Context, wasmBytes []byte, args []string) (*Instance, error) {
	errb := oops.In("host")
	if e.closed {
		return nil, errb.Code(hosterrors.CodeRuntimeFailed).Errorf("executor is closed")
	}
	if e.loaded != nil {
		return nil, errb.Code(hosterrors.CodeAlreadyLoaded).With("module", e.loaded.Name()).Errorf("a module is already loaded")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errb.Code(hosterrors.CodeCompileFailed).Wrapf(err, "failed to compile module")
	}
	if missing := missingExports(compiled); len(missing) > 0 {
		_ = compiled.Close(ctx)
		return nil, errb.Code(hosterrors.CodeMissingExport).With("missing", missing).Errorf("module does not export %v", missing)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, e.moduleConfig())
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errb.Code(hosterrors.CodeLoadFailed).Wrapf(err, "failed to instantiate module")
	}
	if err := initialize(ctx, mod); err != nil {
		_ = mod.Close(ctx)
		_ = compiled.Close(ctx)
		return nil, errb.Code(hosterrors.CodeLoadFailed).Wrapf(err, "failed to call _initialize")
	}

	inst := &Instance{exec: e, mod: mod, compiled: compiled}
	if err := inst.onLoad(ctx, args); err != nil {
		e.server.Reset()
		_ = mod.Close(ctx)
		_ = compiled.Close(ctx)
		return nil, err
	}
	return inst, nil
}

func (e *Executor) moduleConfig() wazero.ModuleConfig {
	var stdout, stderr io.Writer = io.Discard, io.Discard
	if e.cfg.stdout != nil {
		stdout = e.cfg.stdout
	}
	if e.cfg.stderr != nil {
		stderr = e.cfg.stderr
	}
	// Reactor modules are initialized explicitly through _initialize.
	return wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions().
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime()
}
