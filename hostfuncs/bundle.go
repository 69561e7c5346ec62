package hostfuncs

import (
	"context"

	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/log"
	"github.com/reglet-dev/modbridge/wireformat"
)

// HostFuncBundle is a pre-configured set of related host functions.
// Bundles allow registering multiple handlers at once for common use cases.
type HostFuncBundle interface {
	// Handlers returns a map of handler names to ByteHandler functions.
	Handlers() map[string]ByteHandler
}

// staticBundle implements HostFuncBundle with a fixed set of handlers.
type staticBundle struct {
	handlers map[string]ByteHandler
}

func (b *staticBundle) Handlers() map[string]ByteHandler {
	return b.handlers
}

// ModuleBundle returns the JSON host functions a guest module uses beyond the
// scalar reply primitives: call and log_message. Both act on the session named
// by the HostContext handle.
func ModuleBundle(s *Server) HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			"call": NewJSONHandler(func(ctx context.Context, req wireformat.CallRequestWire) wireformat.CallResponseWire {
				return s.callFromGuest(ctx, req)
			}),
			"log_message": NewJSONHandler(func(ctx context.Context, msg log.LogMessageWire) struct{} {
				s.logFromGuest(ctx, msg)
				return struct{}{}
			}),
		},
	}
}

func (s *Server) callFromGuest(ctx context.Context, req wireformat.CallRequestWire) wireformat.CallResponseWire {
	if err := req.Validate(); err != nil {
		return wireformat.CallResponseWire{Error: errors.ToErrorDetail(err)}
	}
	hc, ok := ctx.(HostContext)
	if !ok {
		return wireformat.CallResponseWire{Error: errors.ToErrorDetail(NewNoSessionError(0))}
	}
	v, err := s.Call(hc.Handle(), req.Command, req.Args...)
	if err != nil {
		return wireformat.CallResponseWire{Error: errors.ToErrorDetail(err)}
	}
	return wireformat.CallResponseWire{Reply: wireformat.Encode(v)}
}

func (s *Server) logFromGuest(ctx context.Context, msg log.LogMessageWire) {
	if msg.Module == "" {
		if info := s.Module(); info != nil {
			msg.Module = info.Name
		}
	}
	rec := msg.Record()
	h := s.cfg.logger.Handler()
	if !h.Enabled(ctx, rec.Level) {
		return
	}
	_ = h.Handle(ctx, rec)
}

// compositeBundle combines multiple bundles into one.
type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Handlers() map[string]ByteHandler {
	result := make(map[string]ByteHandler)
	for _, bundle := range b.bundles {
		for name, handler := range bundle.Handlers() {
			result[name] = handler
		}
	}
	return result
}

// CombineBundles returns a bundle containing every handler of bundles.
func CombineBundles(bundles ...HostFuncBundle) HostFuncBundle {
	return &compositeBundle{bundles: bundles}
}

// WithBundle registers all handlers from a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for name, handler := range bundle.Handlers() {
			if err := b.addHandler(name, handler); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// WithHandler registers a typed host function with automatic JSON handling.
// The handler will be wrapped with NewJSONHandler for JSON serialization.
//
// Example usage:
//
//	WithHandler("custom_func", func(ctx context.Context, req MyRequest) MyResponse {
//	    return MyResponse{Result: req.Input}
//	})
func WithHandler[Req any, Resp any](name string, fn HostFunc[Req, Resp]) RegistryOption {
	return func(b *registryBuilder) {
		handler := NewJSONHandler(fn)
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}
