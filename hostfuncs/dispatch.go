package hostfuncs

import (
	"context"
	"strings"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// Invocation is one command call travelling through the middleware chain.
type Invocation struct {
	Entry   *CommandEntry
	Session *Session
	Args    []string
	Argv    []ports.StringHandle
}

// Invoker runs an invocation and returns the trampoline's status.
type Invoker func(ctx context.Context, inv *Invocation) entities.Status

func invokeTrampoline(_ context.Context, inv *Invocation) entities.Status {
	return inv.Entry.fn(inv.Session.handle, inv.Argv, len(inv.Argv))
}

// builtins are answered by the host itself. The reference host has no
// keyspace, so only PING and ECHO exist.
var builtins = map[string]func(args []string) (entities.Value, error){
	"ping": func(args []string) (entities.Value, error) {
		switch len(args) {
		case 1:
			return entities.SimpleString("PONG"), nil
		case 2:
			return entities.BulkString(args[1]), nil
		default:
			return nil, errors.ErrWrongArity
		}
	},
	"echo": func(args []string) (entities.Value, error) {
		if len(args) != 2 {
			return nil, errors.ErrWrongArity
		}
		return entities.BulkString(args[1]), nil
	},
}

// Execute runs a command the way a client would: argv[0] names the command,
// module commands take precedence over builtins. Error replies are returned
// as *errors.ReplyError.
func (s *Server) Execute(ctx context.Context, argv ...string) (entities.Value, error) {
	return s.execute(ctx, argv, 0)
}

func (s *Server) execute(ctx context.Context, argv []string, depth int) (entities.Value, error) {
	if len(argv) == 0 {
		return nil, errors.NewReplyError("ERR", "empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth > MaxCallDepth {
		return nil, errors.NewReplyError("ERR", "max call depth exceeded")
	}

	entry, ok := s.Command(argv[0])
	if !ok {
		if builtin, found := builtins[strings.ToLower(argv[0])]; found {
			return builtin(argv)
		}
		return nil, NewUnknownCommandError(argv[0])
	}

	sess := s.begin(ctx, entry.Name, depth)
	defer s.End(sess)

	inv := &Invocation{
		Entry:   entry,
		Session: sess,
		Args:    argv,
		Argv:    s.Strings(sess, argv...),
	}
	if !entry.invoke(ctx, inv).OK() {
		return nil, NewDeliveryError(entry.Name)
	}
	return s.Reply(sess)
}

// Call implements ports.Host: a module command re-entering the host from
// inside the session ctx.
func (s *Server) Call(ctx ports.CtxHandle, command string, args ...string) (entities.Value, error) {
	sess := s.session(ctx)
	if sess == nil {
		return nil, NewNoSessionError(uint64(ctx))
	}
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, command)
	argv = append(argv, args...)
	return s.execute(sess.ctx, argv, sess.depth+1)
}

// Notify delivers a keyspace event to every subscription whose categories
// intersect the known bits of code. The raw code is passed through so the
// module sees exactly what the host raised. It returns the number of
// subscriptions notified.
func (s *Server) Notify(ctx context.Context, code int32, event, key string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	events := entities.NotifyEventFromBitsTruncate(code)
	delivered := 0
	for _, sub := range s.Subscriptions() {
		if !sub.Events.Intersects(events) {
			continue
		}
		s.deliver(ctx, sub, code, event, key)
		delivered++
	}
	return delivered, nil
}

func (s *Server) deliver(ctx context.Context, sub Subscription, code int32, event, key string) {
	sess := s.begin(ctx, "notify "+event, 0)
	defer s.End(sess)
	defer func() {
		if r := recover(); r != nil {
			s.cfg.logger.Error("event delivery panicked", "event", event, "panic", r)
		}
	}()

	if st := sub.fn(sess.handle, code, event, s.String(sess, []byte(key))); !st.OK() {
		// The module protocol has no failure channel for events.
		s.cfg.logger.Warn("event handler reported failure", "event", event, "key", key)
	}
}
