package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
	"github.com/reglet-dev/modbridge/hostfuncs"
)

// DefaultModuleName is the import module name guests link against.
const DefaultModuleName = "modbridge_host"

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// ModuleName is the host module name (default: "modbridge_host").
	ModuleName string

	// MaxRequestSize limits the size of incoming requests from guest memory.
	// Default is 1MB.
	MaxRequestSize uint32

	// OneWay names registry functions whose response is discarded; they are
	// exported without a result (default: log_message).
	OneWay []string

	// CustomHandlers allows adding additional wazero-specific handlers that
	// don't fit the standard ByteHandler pattern.
	CustomHandlers []CustomHandler
}

// CustomHandler represents a custom wazero handler that doesn't use the standard
// packed i64 request/response pattern.
type CustomHandler struct {
	// Name is the exported function name.
	Name string

	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithHostModuleName sets the host module name (default: "modbridge_host").
func WithHostModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithOneWay marks registry functions as having no result.
func WithOneWay(names ...string) AdapterOption {
	return func(c *AdapterConfig) {
		c.OneWay = append(c.OneWay, names...)
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     DefaultModuleName,
		MaxRequestSize: hostfuncs.DefaultMaxRequestSize,
		OneWay:         []string{"log_message"},
	}
}

func (c *AdapterConfig) isOneWay(name string) bool {
	for _, n := range c.OneWay {
		if n == name {
			return true
		}
	}
	return false
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	f64 = api.ValueTypeF64
)

// RegisterWithRuntime instantiates the host module guests import: the module
// protocol primitives backed by server, plus every function in registry.
//
// Registry functions take (ctx i64, request i64) where request is a packed
// ptr+len. Each is wrapped to:
//   - Read request bytes from guest memory
//   - Invoke the ByteHandler with the request payload and the call handle
//   - Allocate response memory in the guest using the "allocate" export
//   - Return packed i64 ptr+len of the response
//
// Example:
//
//	registry, _ := hostfuncs.NewRegistry(
//	    hostfuncs.WithBundle(hostfuncs.ModuleBundle(server)),
//	)
//	err := wazero.RegisterWithRuntime(ctx, runtime, server, registry)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, server *hostfuncs.Server, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &adapter{cfg: cfg, server: server, logger: server.Logger()}
	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	a.exportPrimitives(builder)

	if registry != nil {
		for _, name := range registry.Names() {
			funcName := name // capture for closure
			if cfg.isOneWay(funcName) {
				builder.NewFunctionBuilder().
					WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
						_ = a.handleRegistryCall(ctx, mod, stack, registry, funcName)
					}), []api.ValueType{i64, i64}, []api.ValueType{}).
					Export(funcName)
				continue
			}
			builder.NewFunctionBuilder().
				WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
					stack[0] = a.handleRegistryCall(ctx, mod, stack, registry, funcName)
				}), []api.ValueType{i64, i64}, []api.ValueType{i64}).
				Export(funcName)
		}
	}

	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

type adapter struct {
	server *hostfuncs.Server
	logger *slog.Logger
	cfg    AdapterConfig
}

// handleRegistryCall reads the request from guest memory, invokes the
// handler and writes the response back.
func (a *adapter) handleRegistryCall(ctx context.Context, mod api.Module, stack []uint64, registry *hostfuncs.HandlerRegistry, name string) uint64 {
	handle := ports.CtxHandle(stack[0])

	request, err := readPacked(mod.Memory(), stack[1], a.cfg.MaxRequestSize)
	if err != nil {
		a.logger.ErrorContext(ctx, "wazero: failed to read request", "function", name, "error", err)
		return a.writeResponse(ctx, mod, hostfuncs.NewValidationError(err.Error()).ToJSON())
	}

	response, err := registry.Invoke(ctx, name, handle, request)
	if err != nil {
		a.logger.ErrorContext(ctx, "wazero: handler invocation failed", "function", name, "error", err)
		return a.writeResponse(ctx, mod, hostfuncs.NewInternalError(err.Error()).ToJSON())
	}
	return a.writeResponse(ctx, mod, response)
}

// writeResponse allocates memory in the guest and writes the response bytes.
// Returns packed ptr+len or 0 on failure.
func (a *adapter) writeResponse(ctx context.Context, mod api.Module, data []byte) uint64 {
	mem, err := NewGuestMemory(mod)
	if err != nil {
		a.logger.ErrorContext(ctx, "wazero: "+err.Error())
		return 0
	}
	packed, err := mem.Write(ctx, data)
	if err != nil {
		a.logger.ErrorContext(ctx, "wazero: failed to write response", "error", err)
		return 0
	}
	return packed
}

func (a *adapter) export(b wazero.HostModuleBuilder, name string, params, results []api.ValueType, fn api.GoModuleFunc) {
	b.NewFunctionBuilder().WithGoModuleFunction(fn, params, results).Export(name)
}

func statusWord(st entities.Status) uint64 {
	return api.EncodeI32(int32(st))
}

// exportPrimitives exports the handshake, registration and reply
// primitives. Every primitive returns an i32 status; malformed arguments
// yield StatusErr rather than a trap.
func (a *adapter) exportPrimitives(b wazero.HostModuleBuilder) {
	s := a.server
	limit := a.cfg.MaxRequestSize

	// init(ctx i64, name_ptr i32, name_len i32, version i32, api i32) i32
	a.export(b, "init", []api.ValueType{i64, i32, i32, i32, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			ptr, length := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
			var name entities.ModuleName
			raw, ok := mod.Memory().Read(ptr, length)
			if !ok || !entities.FillModuleName(&name, string(raw)) {
				a.logger.WarnContext(ctx, "wazero: malformed module name in handshake", "length", length)
				stack[0] = statusWord(entities.StatusErr)
				return
			}
			version := int(api.DecodeI32(stack[3]))
			apiVersion := int(api.DecodeI32(stack[4]))
			stack[0] = statusWord(s.Init(ports.CtxHandle(stack[0]), name, version, apiVersion))
		})

	// create_command(ctx i64, name i64, id i32, flags i64, first i32, last i32, step i32) i32
	a.export(b, "create_command", []api.ValueType{i64, i64, i32, i64, i32, i32, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			name, err := readString(mod.Memory(), stack[1], limit)
			if err != nil {
				a.logger.WarnContext(ctx, "wazero: bad command name", "error", err)
				stack[0] = statusWord(entities.StatusErr)
				return
			}
			flags, err := readString(mod.Memory(), stack[3], limit)
			if err != nil {
				a.logger.WarnContext(ctx, "wazero: bad command flags", "command", name, "error", err)
				stack[0] = statusWord(entities.StatusErr)
				return
			}
			fn := a.commandTrampoline(mod, api.DecodeI32(stack[2]))
			stack[0] = statusWord(s.CreateCommand(ports.CtxHandle(stack[0]), name, fn, flags,
				int(api.DecodeI32(stack[4])), int(api.DecodeI32(stack[5])), int(api.DecodeI32(stack[6]))))
		})

	// create_data_type(ctx i64, name i64, encver i32) i32
	a.export(b, "create_data_type", []api.ValueType{i64, i64, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			name, err := readString(mod.Memory(), stack[1], limit)
			if err != nil {
				stack[0] = statusWord(entities.StatusErr)
				return
			}
			dt := &entities.DataType{Name: name, EncodingVersion: int(api.DecodeI32(stack[2]))}
			stack[0] = statusWord(s.CreateDataType(ports.CtxHandle(stack[0]), dt))
		})

	// subscribe_events(ctx i64, events i32, id i32) i32
	a.export(b, "subscribe_events", []api.ValueType{i64, i32, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			events := entities.NotifyEventFromBitsTruncate(api.DecodeI32(stack[1]))
			fn := a.eventTrampoline(mod, api.DecodeI32(stack[2]))
			stack[0] = statusWord(s.SubscribeToKeyspaceEvents(ports.CtxHandle(stack[0]), events, fn))
		})

	stringReply := func(reply func(ports.CtxHandle, string) entities.Status) api.GoModuleFunc {
		return func(ctx context.Context, mod api.Module, stack []uint64) {
			str, err := readString(mod.Memory(), stack[1], limit)
			if err != nil {
				stack[0] = statusWord(entities.StatusErr)
				return
			}
			stack[0] = statusWord(reply(ports.CtxHandle(stack[0]), str))
		}
	}
	a.export(b, "reply_simple_string", []api.ValueType{i64, i64}, []api.ValueType{i32}, stringReply(s.ReplyWithSimpleString))
	a.export(b, "reply_error", []api.ValueType{i64, i64}, []api.ValueType{i32}, stringReply(s.ReplyWithError))

	a.export(b, "reply_string_buffer", []api.ValueType{i64, i64}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			buf, err := readPacked(mod.Memory(), stack[1], limit)
			if err != nil {
				stack[0] = statusWord(entities.StatusErr)
				return
			}
			stack[0] = statusWord(s.ReplyWithStringBuffer(ports.CtxHandle(stack[0]), buf))
		})

	a.export(b, "reply_long_long", []api.ValueType{i64, i64}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = statusWord(s.ReplyWithLongLong(ports.CtxHandle(stack[0]), int64(stack[1]))) //nolint:gosec // G115: i64 bit pattern
		})

	a.export(b, "reply_double", []api.ValueType{i64, f64}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = statusWord(s.ReplyWithDouble(ports.CtxHandle(stack[0]), api.DecodeF64(stack[1])))
		})

	a.export(b, "reply_array", []api.ValueType{i64, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = statusWord(s.ReplyWithArray(ports.CtxHandle(stack[0]), int(api.DecodeI32(stack[1]))))
		})

	a.export(b, "reply_null", []api.ValueType{i64}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = statusWord(s.ReplyWithNull(ports.CtxHandle(stack[0])))
		})
}

// commandTrampoline returns the server-side CommandFunc for guest command id.
func (a *adapter) commandTrampoline(mod api.Module, id int32) ports.CommandFunc {
	return func(h ports.CtxHandle, argv []ports.StringHandle, argc int) entities.Status {
		ctx := a.server.SessionContext(h)
		if argc < 0 || argc > len(argv) {
			return entities.StatusErr
		}
		args := make([][]byte, argc)
		for i := range args {
			b, ok := a.server.StringBytes(argv[i])
			if !ok {
				return entities.StatusErr
			}
			args[i] = b
		}

		st, err := CallCommand(ctx, mod, h, id, args)
		if err != nil {
			a.logger.ErrorContext(ctx, "wazero: command export failed", "module", GetModuleName(ctx, mod), "id", id, "error", err)
			return entities.StatusErr
		}
		return st
	}
}

// eventTrampoline returns the server-side EventFunc for guest handler id.
func (a *adapter) eventTrampoline(mod api.Module, id int32) ports.EventFunc {
	return func(h ports.CtxHandle, eventType int32, event string, key ports.StringHandle) entities.Status {
		ctx := a.server.SessionContext(h)
		keyBytes, ok := a.server.StringBytes(key)
		if !ok {
			return entities.StatusErr
		}
		st, err := CallEvent(ctx, mod, h, id, eventType, event, keyBytes)
		if err != nil {
			a.logger.ErrorContext(ctx, "wazero: event export failed", "module", GetModuleName(ctx, mod), "id", id, "error", err)
			return entities.StatusErr
		}
		return st
	}
}

func callStatus(ctx context.Context, mod api.Module, export string, params ...uint64) (entities.Status, error) {
	fn := mod.ExportedFunction(export)
	if fn == nil {
		return entities.StatusErr, fmt.Errorf("export %q not found", export)
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return entities.StatusErr, err
	}
	if len(results) == 0 {
		return entities.StatusErr, fmt.Errorf("export %q returned no status", export)
	}
	return entities.StatusFromBool(api.DecodeI32(results[0]) == int32(entities.StatusOK)), nil
}

// CallOnLoad runs the guest's modbridge_on_load with args copied into guest
// memory.
func CallOnLoad(ctx context.Context, mod api.Module, h ports.CtxHandle, args [][]byte) (entities.Status, error) {
	mem, err := NewGuestMemory(mod)
	if err != nil {
		return entities.StatusErr, err
	}
	argv, release, err := mem.WriteArgv(ctx, args)
	if err != nil {
		return entities.StatusErr, err
	}
	defer release()
	return callStatus(ctx, mod, ExportOnLoad, uint64(h), api.EncodeU32(argv), api.EncodeI32(int32(len(args)))) //nolint:gosec // G115: argc is small
}

// CallOnUnload runs the guest's modbridge_on_unload.
func CallOnUnload(ctx context.Context, mod api.Module, h ports.CtxHandle) (entities.Status, error) {
	return callStatus(ctx, mod, ExportOnUnload, uint64(h))
}

// CallCommand runs guest command id with args copied into guest memory.
func CallCommand(ctx context.Context, mod api.Module, h ports.CtxHandle, id int32, args [][]byte) (entities.Status, error) {
	mem, err := NewGuestMemory(mod)
	if err != nil {
		return entities.StatusErr, err
	}
	argv, release, err := mem.WriteArgv(ctx, args)
	if err != nil {
		return entities.StatusErr, err
	}
	defer release()
	return callStatus(ctx, mod, ExportCommand, uint64(h), api.EncodeI32(id), api.EncodeU32(argv), api.EncodeI32(int32(len(args)))) //nolint:gosec // G115: argc is small
}

// CallEvent delivers one keyspace event to guest handler id.
func CallEvent(ctx context.Context, mod api.Module, h ports.CtxHandle, id, eventType int32, event string, key []byte) (entities.Status, error) {
	mem, err := NewGuestMemory(mod)
	if err != nil {
		return entities.StatusErr, err
	}
	eventPacked, err := mem.Write(ctx, []byte(event))
	if err != nil {
		return entities.StatusErr, err
	}
	defer mem.Free(ctx, eventPacked)
	keyPacked, err := mem.Write(ctx, key)
	if err != nil {
		return entities.StatusErr, err
	}
	defer mem.Free(ctx, keyPacked)
	return callStatus(ctx, mod, ExportEvent, uint64(h), api.EncodeI32(id), api.EncodeI32(eventType), eventPacked, keyPacked)
}

