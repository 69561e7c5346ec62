package module

import (
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// State is the lifecycle state of a Module.
type State int32

const (
	// StateUnloaded is both the initial and the terminal state.
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloading:
		return "unloading"
	default:
		return "unknown"
	}
}

// State returns the current lifecycle state.
func (m *Module) State() State {
	return State(m.state.Load())
}

// Err returns the error behind the most recent failed OnLoad or OnUnload.
func (m *Module) Err() error {
	if b := m.lastErr.Load(); b != nil {
		return b.err
	}
	return nil
}

// OnLoad is the load entry point. It runs at most once per Module: later
// calls fail without touching the host.
//
// The name is written into a fixed buffer and handed to the host handshake
// before anything is allocated. After a successful handshake, init hooks,
// data types, commands and event handlers are processed in declaration
// order behind one fault barrier, stopping at the first failure.
func (m *Module) OnLoad(host ports.Host, handle ports.CtxHandle, argv []ports.StringHandle, argc int) entities.Status {
	if !m.spent.CompareAndSwap(false, true) {
		return entities.StatusErr
	}
	m.state.Store(int32(StateLoading))

	var name entities.ModuleName
	if !entities.FillModuleName(&name, m.def.Name) {
		return m.loadFailed(m.handshakeFailure)
	}
	if !host.Init(handle, name, m.def.Version, ports.APIVersion1).OK() {
		return m.loadFailed(m.handshakeFailure)
	}

	err := guardErr("module load for "+m.def.Name, func() error {
		return m.load(host, handle, argv, argc)
	})
	if err != nil {
		host.Log(handle, ports.LogWarning, err.Error())
		return m.loadFailed(&errBox{err: err})
	}

	m.lastErr.Store(nil)
	m.state.Store(int32(StateLoaded))
	return entities.StatusOK
}

func (m *Module) loadFailed(b *errBox) entities.Status {
	m.lastErr.Store(b)
	m.state.Store(int32(StateUnloaded))
	return entities.StatusErr
}

func (m *Module) load(host ports.Host, handle ports.CtxHandle, argv []ports.StringHandle, argc int) error {
	// Rejecting the whole definition up front keeps a malformed declaration
	// from leaving earlier commands registered.
	if m.validator != nil {
		if err := m.validator.Validate(m.Manifest()); err != nil {
			return err
		}
	}

	args, err := DecodeArgs(host, argv, argc)
	if err != nil {
		return err
	}

	ctx := newContext(host, handle, m.def.Name)
	defer ctx.expire()

	for i, hook := range m.def.Init {
		if err := hook(ctx, args); err != nil {
			return &errors.LifecycleError{Err: err, Stage: "init", Index: i}
		}
	}
	for i := range m.def.DataTypes {
		dt := &m.def.DataTypes[i]
		if !host.CreateDataType(handle, dt).OK() {
			return &errors.RegistrationError{Kind: "data type", Name: dt.Name}
		}
	}
	for _, cmd := range m.def.Commands {
		if err := m.registerCommand(host, handle, cmd); err != nil {
			return err
		}
	}
	for _, h := range m.def.EventHandlers {
		if err := m.registerEventHandler(host, handle, h); err != nil {
			return err
		}
	}
	return nil
}

// OnUnload is the unload entry point. It only succeeds after a successful
// OnLoad and leaves the module in the terminal Unloaded state whatever the
// outcome of the deinit hooks.
func (m *Module) OnUnload(host ports.Host, handle ports.CtxHandle) entities.Status {
	if !m.state.CompareAndSwap(int32(StateLoaded), int32(StateUnloading)) {
		m.lastErr.Store(&errBox{err: errors.ErrNotLoaded})
		return entities.StatusErr
	}
	defer m.state.Store(int32(StateUnloaded))

	err := guardErr("module unload for "+m.def.Name, func() error {
		ctx := newContext(host, handle, m.def.Name)
		defer ctx.expire()

		for i, hook := range m.def.Deinit {
			if err := hook(ctx); err != nil {
				return &errors.LifecycleError{Err: err, Stage: "deinit", Index: i}
			}
		}
		return nil
	})
	if err != nil {
		host.Log(handle, ports.LogWarning, err.Error())
		m.lastErr.Store(&errBox{err: err})
		return entities.StatusErr
	}
	m.lastErr.Store(nil)
	return entities.StatusOK
}
