package module

import (
	"fmt"
	"sync/atomic"

	"github.com/reglet-dev/modbridge/application/validation"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// InitFunc runs during load, after the handshake, with the decoded load
// arguments.
type InitFunc func(ctx *Context, args []string) error

// DeinitFunc runs during unload.
type DeinitFunc func(ctx *Context) error

// CommandHandler implements one command. args[0] is the command name as the
// client sent it.
type CommandHandler func(ctx *Context, args []string) (entities.Value, error)

// EventHandlerFunc receives one keyspace notification. events holds the
// known categories carried by the raw event code.
type EventHandlerFunc func(ctx *Context, events entities.NotifyEvent, event, key string)

// Command declares a command and how the host should route its keys.
type Command struct {
	Handler CommandHandler
	Name    string
	// Flags is a space-delimited list of host capability tokens, passed to
	// the host unchanged. The default validator checks only their shape.
	Flags string
	// FirstKey, LastKey and KeyStep locate key arguments. FirstKey 0 means
	// the command takes no keys; a negative LastKey counts from the end.
	FirstKey int
	LastKey  int
	KeyStep  int
}

// EventHandler subscribes Handler to the categories in Events.
type EventHandler struct {
	Handler EventHandlerFunc
	Events  entities.NotifyEvent
}

// Def is the declarative description of a module.
type Def struct {
	Name          string
	DataTypes     []entities.DataType
	Init          []InitFunc
	Deinit        []DeinitFunc
	Commands      []Command
	EventHandlers []EventHandler
	Version       int
}

// Module is an immutable, validated module definition plus its lifecycle
// state. Create one with Define and hand it to the host glue.
type Module struct {
	validator ports.ManifestValidator
	// handshakeFailure is built up front so the pre-handshake path never
	// allocates.
	handshakeFailure *errBox
	lastErr          atomic.Pointer[errBox]
	def              Def
	state            atomic.Int32
	spent            atomic.Bool
}

type errBox struct {
	err error
}

// Option configures a Module.
type Option func(*Module)

// WithValidator replaces the manifest validator run before registration.
// Passing nil disables the check and leaves validation to the host.
func WithValidator(v ports.ManifestValidator) Option {
	return func(m *Module) {
		m.validator = v
	}
}

// Define checks def for structural errors and returns a Module. Descriptor
// slices are copied, so later changes to def do not affect the module.
func Define(def Def, opts ...Option) (*Module, error) {
	if err := entities.ValidateModuleName(def.Name); err != nil {
		return nil, err
	}
	for i, c := range def.Commands {
		if c.Name == "" {
			return nil, fmt.Errorf("command %d: name is required", i)
		}
		if c.Handler == nil {
			return nil, fmt.Errorf("command %q: handler is required", c.Name)
		}
	}
	for i, h := range def.EventHandlers {
		if h.Handler == nil {
			return nil, fmt.Errorf("event handler %d: handler is required", i)
		}
		if entities.NotifyEventFromBitsTruncate(h.Events.Bits()).IsEmpty() {
			return nil, fmt.Errorf("event handler %d: no known event categories in %#x", i, h.Events.Bits())
		}
	}
	for i, fn := range def.Init {
		if fn == nil {
			return nil, fmt.Errorf("init hook %d is nil", i)
		}
	}
	for i, fn := range def.Deinit {
		if fn == nil {
			return nil, fmt.Errorf("deinit hook %d is nil", i)
		}
	}

	def.DataTypes = append([]entities.DataType(nil), def.DataTypes...)
	def.Init = append([]InitFunc(nil), def.Init...)
	def.Deinit = append([]DeinitFunc(nil), def.Deinit...)
	def.Commands = append([]Command(nil), def.Commands...)
	def.EventHandlers = append([]EventHandler(nil), def.EventHandlers...)

	m := &Module{
		def:       def,
		validator: validation.NewManifestValidator(),
		handshakeFailure: &errBox{err: &errors.HandshakeError{
			Module:     def.Name,
			Version:    def.Version,
			APIVersion: ports.APIVersion1,
		}},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MustDefine is Define that panics on error. Use it for package-level
// module variables.
func MustDefine(def Def, opts ...Option) *Module {
	m, err := Define(def, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to define module: %v", err))
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.def.Name
}

// Version returns the module version.
func (m *Module) Version() int {
	return m.def.Version
}

// Manifest describes everything the module registers during load.
func (m *Module) Manifest() *entities.Manifest {
	manifest := &entities.Manifest{
		Name:       m.def.Name,
		Version:    m.def.Version,
		APIVersion: ports.APIVersion1,
		DataTypes:  append([]entities.DataType(nil), m.def.DataTypes...),
		Commands:   make([]entities.CommandManifest, len(m.def.Commands)),
	}
	for i, c := range m.def.Commands {
		manifest.Commands[i] = entities.CommandManifest{
			Name:     c.Name,
			Flags:    c.Flags,
			FirstKey: c.FirstKey,
			LastKey:  c.LastKey,
			KeyStep:  c.KeyStep,
		}
	}
	for _, h := range m.def.EventHandlers {
		manifest.Subscriptions = append(manifest.Subscriptions, entities.SubscriptionManifest{
			Events: h.Events.Names(),
		})
	}
	return manifest
}

// Validate checks the manifest against the host's registration rules.
func (m *Module) Validate() error {
	v := m.validator
	if v == nil {
		v = validation.NewManifestValidator()
	}
	return v.Validate(m.Manifest())
}
