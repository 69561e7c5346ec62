package module

import (
	"log/slog"
	"sync/atomic"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
	"github.com/reglet-dev/modbridge/log"
)

// Context is the extension's view of one host call. It wraps the host's
// non-owning call handle and is only valid while the trampoline that created
// it is running; afterwards every method fails with ErrContextExpired or
// StatusErr.
type Context struct {
	host    ports.Host
	module  string
	handle  ports.CtxHandle
	expired atomic.Bool
}

func newContext(host ports.Host, handle ports.CtxHandle, module string) *Context {
	return &Context{host: host, handle: handle, module: module}
}

// Handle returns the raw host call handle.
func (c *Context) Handle() ports.CtxHandle {
	return c.handle
}

// Module returns the name of the module the call belongs to.
func (c *Context) Module() string {
	return c.module
}

// Valid reports whether the context can still be used.
func (c *Context) Valid() bool {
	return !c.expired.Load()
}

func (c *Context) expire() {
	c.expired.Store(true)
}

// Reply writes either err or value as the reply to the current call. A nil
// value with a nil error replies null. The returned status reports whether
// the write succeeded, not whether the command did.
func (c *Context) Reply(value entities.Value, err error) entities.Status {
	if err != nil {
		return c.ReplyError(err)
	}
	return c.ReplyValue(value)
}

// ReplyError writes err as an error reply ("<CODE> <message>").
func (c *Context) ReplyError(err error) entities.Status {
	if !c.Valid() {
		return entities.StatusErr
	}
	return c.host.ReplyWithError(c.handle, errors.ReplyMessage(err))
}

// ReplyValue writes value using the matching host reply primitive.
func (c *Context) ReplyValue(value entities.Value) entities.Status {
	if !c.Valid() {
		return entities.StatusErr
	}
	return c.replyValue(value)
}

func (c *Context) replyValue(value entities.Value) entities.Status {
	switch v := value.(type) {
	case nil, entities.Null:
		return c.host.ReplyWithNull(c.handle)
	case entities.NoReply:
		return entities.StatusOK
	case entities.SimpleString:
		return c.host.ReplyWithSimpleString(c.handle, string(v))
	case entities.BulkString:
		return c.host.ReplyWithStringBuffer(c.handle, []byte(v))
	case entities.Bytes:
		return c.host.ReplyWithStringBuffer(c.handle, v)
	case entities.Integer:
		return c.host.ReplyWithLongLong(c.handle, int64(v))
	case entities.Float:
		return c.host.ReplyWithDouble(c.handle, float64(v))
	case entities.Array:
		if st := c.host.ReplyWithArray(c.handle, len(v)); !st.OK() {
			return st
		}
		for _, item := range v {
			if st := c.replyValue(item); !st.OK() {
				return st
			}
		}
		return entities.StatusOK
	default:
		// Value is sealed; this only happens for a nil-typed implementation.
		return c.host.ReplyWithNull(c.handle)
	}
}

// Call invokes a host command from inside the current call.
func (c *Context) Call(command string, args ...string) (entities.Value, error) {
	if !c.Valid() {
		return nil, errors.ErrContextExpired
	}
	return c.host.Call(c.handle, command, args...)
}

// Log writes message to the host log. It implements log.Sink.
func (c *Context) Log(level, message string) {
	if !c.Valid() {
		return
	}
	c.host.Log(c.handle, level, message)
}

// Logger returns a structured logger that writes to the host log.
func (c *Context) Logger(opts ...log.HandlerOption) *slog.Logger {
	return slog.New(log.NewHandler(c, opts...)).With("module", c.module)
}
