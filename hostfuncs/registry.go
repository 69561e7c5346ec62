package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/reglet-dev/modbridge/domain/ports"
)

// reservedNames are the protocol primitives exported next to the registry
// functions in the same host module.
var reservedNames = map[string]bool{
	"init":                true,
	"create_command":      true,
	"create_data_type":    true,
	"subscribe_events":    true,
	"reply_simple_string": true,
	"reply_error":         true,
	"reply_long_long":     true,
	"reply_double":        true,
	"reply_string_buffer": true,
	"reply_array":         true,
	"reply_null":          true,
}

// HandlerRegistry maps JSON host function names to handlers, each already
// wrapped in the registry middleware. It is read-only after NewRegistry.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	names    []string
}

type registryBuilder struct {
	handlers   map[string]ByteHandler
	middleware []Middleware
	errors     []error
}

// NewRegistry builds a registry. Every invalid or duplicate name is
// reported, joined into one error.
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithBundle(ModuleBundle(server)),
//	    WithHandler("custom", customHandler),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]ByteHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if err := errors.Join(b.errors...); err != nil {
		return nil, err
	}

	r := &HandlerRegistry{
		handlers: make(map[string]ByteHandler, len(b.handlers)),
		names:    make([]string, 0, len(b.handlers)),
	}
	for name, h := range b.handlers {
		// The first middleware added ends up outermost.
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		r.handlers[name] = h
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return r, nil
}

// Invoke runs the handler called name for the call session handle. An
// unknown name is answered with a NOT_FOUND ErrorResponse, not an error.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, handle ports.CtxHandle, payload []byte) ([]byte, error) {
	h, ok := r.handlers[name]
	if !ok {
		return NewNotFoundError(name).ToJSON(), nil
	}
	return h(HostContextFrom(ctx, name, handle), payload)
}

func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *HandlerRegistry) Names() []string {
	return slices.Clone(r.names)
}

func (b *registryBuilder) addHandler(name string, handler ByteHandler) error {
	switch {
	case name == "":
		return fmt.Errorf("handler name cannot be empty")
	case strings.ContainsAny(name, " \t\n\x00"):
		return fmt.Errorf("handler name %q contains whitespace or NUL", name)
	case reservedNames[name]:
		return fmt.Errorf("handler name %q is a reserved protocol primitive", name)
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("duplicate handler name: %q", name)
	}
	b.handlers[name] = handler
	return nil
}

// WithByteHandler registers a raw handler. WithHandler adds the JSON
// decoding and encoding.
func WithByteHandler(name string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware appends middleware; the first one added runs first.
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
