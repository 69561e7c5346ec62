package hostfuncs

import (
	"context"
	"log/slog"
	"time"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
)

// Middleware is a function that wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware returns a middleware that catches panics and converts
// them to structured ErrorResponse JSON instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = NewPanicError(r).ToJSON()
					err = nil // Return JSON error, not Go error
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware returns a middleware that logs host function invocations
// at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			funcName := "unknown"
			if hc, ok := ctx.(HostContext); ok {
				funcName = hc.FunctionName()
			}
			resp, err := next(ctx, payload)
			if err != nil {
				logger.WarnContext(ctx, "host function failed", "function", funcName, "error", err)
			} else {
				logger.DebugContext(ctx, "host function completed", "function", funcName, "request_bytes", len(payload))
			}
			return resp, err
		}
	}
}

// CommandMiddleware wraps an Invoker the way Middleware wraps a ByteHandler.
type CommandMiddleware func(next Invoker) Invoker

func chain(mw []CommandMiddleware, base Invoker) Invoker {
	wrapped := base
	for i := len(mw) - 1; i >= 0; i-- {
		wrapped = mw[i](wrapped)
	}
	return wrapped
}

// CommandRecoveryMiddleware turns a panic escaping a command invocation into
// an error reply. The module's own fault barrier normally catches handler
// panics first; this covers the host side of the call.
func CommandRecoveryMiddleware(logger *slog.Logger) CommandMiddleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, inv *Invocation) (status entities.Status) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "command invocation panicked", "command", inv.Entry.Name, "panic", r)
					sess := inv.Session
					sess.reply.Reset()
					sess.scratch.Reset()
					sess.scratch.Error(errors.ReplyMessage(NewCommandPanicError(inv.Entry.Name, r)))
					_, _ = sess.reply.Write(sess.scratch.Bytes())
					status = entities.StatusOK
				}
			}()
			return next(ctx, inv)
		}
	}
}

// CommandLoggingMiddleware logs every command invocation with its duration.
func CommandLoggingMiddleware(logger *slog.Logger) CommandMiddleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, inv *Invocation) entities.Status {
			start := time.Now()
			status := next(ctx, inv)
			logger.DebugContext(ctx, "command invoked",
				"command", inv.Entry.Name,
				"args", len(inv.Args),
				"status", status.String(),
				"duration", time.Since(start),
			)
			return status
		}
	}
}
