package module

import (
	stdErrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
)

func TestDecodeArgs_RoundTrip(t *testing.T) {
	host := newFakeHost()
	argv := host.args("SET", "key1", "value1")

	args, err := DecodeArgs(host, argv, len(argv))
	require.NoError(t, err)
	assert.Equal(t, []string{"SET", "key1", "value1"}, args)
}

func TestDecodeArgs_OwnsCopies(t *testing.T) {
	host := newFakeHost()
	buf := []byte("value1")
	argv := []ports.StringHandle{host.raw(buf)}

	args, err := DecodeArgs(host, argv, 1)
	require.NoError(t, err)

	copy(buf, "XXXXXX")
	assert.Equal(t, "value1", args[0])
}

func TestDecodeArgs_Errors(t *testing.T) {
	host := newFakeHost()
	good := host.raw([]byte("ok"))
	bad := host.raw([]byte{0xff, 0xfe})

	tests := []struct {
		name      string
		argv      []ports.StringHandle
		argc      int
		wantIndex int
		wantMsg   string
	}{
		{
			name:      "invalid utf8",
			argv:      []ports.StringHandle{good, bad, good},
			argc:      3,
			wantIndex: 1,
			wantMsg:   "UTF8 encoding error in handler args",
		},
		{
			name:      "unknown handle",
			argv:      []ports.StringHandle{good, 9999},
			argc:      2,
			wantIndex: 1,
			wantMsg:   "argument 1: invalid string handle 9999",
		},
		{
			name:      "argc beyond argv",
			argv:      []ports.StringHandle{good},
			argc:      2,
			wantIndex: 2,
			wantMsg:   "argument 2: argument count 2 out of range for 1 handles",
		},
		{
			name:      "negative argc",
			argv:      nil,
			argc:      -1,
			wantIndex: -1,
			wantMsg:   "argument -1: argument count -1 out of range for 0 handles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := DecodeArgs(host, tt.argv, tt.argc)
			assert.Nil(t, args)

			var decodeErr *errors.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.wantIndex, decodeErr.Index)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestGuard(t *testing.T) {
	t.Run("passes result through", func(t *testing.T) {
		v, err := Guard("site", func() (int, error) { return 42, nil })
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("passes error through", func(t *testing.T) {
		want := stdErrors.New("boom")
		_, err := Guard("site", func() (int, error) { return 1, want })
		assert.Same(t, want, err)
	})

	t.Run("converts panic", func(t *testing.T) {
		v, err := Guard("command handler for foo.get", func() (int, error) {
			panic("kaboom")
		})
		assert.Zero(t, v)

		var fault *errors.FaultError
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, "caught panic in command handler for foo.get", err.Error())
		assert.Equal(t, "kaboom", fault.Value)
		assert.NotEmpty(t, fault.Stack)
	})

	t.Run("unwraps panicked errors", func(t *testing.T) {
		sentinel := stdErrors.New("sentinel")
		_, err := Guard("site", func() (int, error) { panic(sentinel) })
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("nil panic", func(t *testing.T) {
		_, err := Guard("site", func() (int, error) { panic(nil) })
		var fault *errors.FaultError
		assert.ErrorAs(t, err, &fault)
	})
}

// loadedCommand registers a single command on a fresh host and returns its
// trampoline.
func loadedCommand(t *testing.T, handler CommandHandler) (*fakeHost, ports.CommandFunc) {
	t.Helper()
	m := MustDefine(Def{
		Name:     "foo",
		Version:  1,
		Commands: []Command{{Name: "foo.cmd", Handler: handler, Flags: "readonly"}},
	})
	host := newFakeHost()
	require.Equal(t, entities.StatusOK, m.OnLoad(host, 1, nil, 0))
	fn, ok := host.commands["foo.cmd"]
	require.True(t, ok)
	return host, fn
}

func TestCommandTrampoline_InvokesHandler(t *testing.T) {
	var got []string
	host, fn := loadedCommand(t, func(_ *Context, args []string) (entities.Value, error) {
		got = args
		return entities.OK, nil
	})

	argv := host.args("foo.cmd", "key1", "value1")
	status := fn(7, argv, len(argv))

	assert.Equal(t, entities.StatusOK, status)
	assert.Equal(t, []string{"foo.cmd", "key1", "value1"}, got)
	assert.Equal(t, []string{"+OK"}, host.repliesFor(7))
}

func TestCommandTrampoline_DecodeFailureSkipsHandler(t *testing.T) {
	called := false
	host, fn := loadedCommand(t, func(_ *Context, _ []string) (entities.Value, error) {
		called = true
		return entities.OK, nil
	})

	argv := []ports.StringHandle{host.raw([]byte("foo.cmd")), host.raw([]byte{0xc3, 0x28})}
	status := fn(7, argv, len(argv))

	assert.False(t, called)
	assert.Equal(t, entities.StatusOK, status)
	assert.Equal(t, []string{"-ERR UTF8 encoding error in handler args"}, host.repliesFor(7))
}

func TestCommandTrampoline_PanicBecomesErrorReply(t *testing.T) {
	host, fn := loadedCommand(t, func(_ *Context, _ []string) (entities.Value, error) {
		var m map[string]int
		m["boom"] = 1
		return nil, nil
	})

	argv := host.args("foo.cmd")
	var status entities.Status
	require.NotPanics(t, func() { status = fn(7, argv, len(argv)) })

	assert.Equal(t, entities.StatusOK, status)
	replies := host.repliesFor(7)
	require.Len(t, replies, 1)
	assert.Equal(t, "-ERR caught panic in command handler for foo.cmd", replies[0])
	require.NotEmpty(t, host.logs)
	assert.Contains(t, host.logs[len(host.logs)-1], "foo.cmd")
}

func TestCommandTrampoline_PanicValueKeepsCommandName(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "error detail", value: entities.NewErrorDetail("internal", "db gone")},
		{name: "wrapped detail", value: fmt.Errorf("query: %w", entities.NewErrorDetail("internal", "db gone"))},
		{name: "reply error", value: errors.NewReplyError("BUSY", "db gone")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, fn := loadedCommand(t, func(_ *Context, _ []string) (entities.Value, error) {
				panic(tt.value)
			})

			argv := host.args("foo.cmd")
			var status entities.Status
			require.NotPanics(t, func() { status = fn(7, argv, len(argv)) })

			assert.Equal(t, entities.StatusOK, status)
			replies := host.repliesFor(7)
			require.Len(t, replies, 1)
			assert.Equal(t, "-ERR caught panic in command handler for foo.cmd", replies[0])
		})
	}
}

func TestCommandTrampoline_HandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "plain", err: fmt.Errorf("no such key"), want: "-ERR no such key"},
		{name: "reply code", err: errors.ErrWrongType, want: "-WRONGTYPE Operation against a key holding the wrong kind of value"},
		{name: "arity", err: errors.ErrWrongArity, want: "-ERR wrong number of arguments"},
		{name: "wrapped", err: fmt.Errorf("lookup: %w", errors.NewReplyError("NOPERM", "denied")), want: "-NOPERM denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, fn := loadedCommand(t, func(_ *Context, _ []string) (entities.Value, error) {
				return entities.OK, tt.err
			})
			argv := host.args("foo.cmd")
			assert.Equal(t, entities.StatusOK, fn(3, argv, 1))
			assert.Equal(t, []string{tt.want}, host.repliesFor(3))
		})
	}
}

func TestCommandTrampoline_ReplyEncoding(t *testing.T) {
	tests := []struct {
		name  string
		value entities.Value
		want  []string
	}{
		{name: "simple", value: entities.SimpleString("PONG"), want: []string{"+PONG"}},
		{name: "bulk", value: entities.BulkString("hello"), want: []string{"$hello"}},
		{name: "bytes", value: entities.Bytes("raw"), want: []string{"$raw"}},
		{name: "integer", value: entities.Integer(-12), want: []string{":-12"}},
		{name: "float", value: entities.Float(1.5), want: []string{",1.5"}},
		{name: "null", value: entities.Null{}, want: []string{"_"}},
		{name: "nil value", value: nil, want: []string{"_"}},
		{name: "no reply", value: entities.NoReply{}, want: nil},
		{
			name:  "nested array",
			value: entities.Array{entities.Integer(1), entities.Strings("a", "b"), entities.Null{}},
			want:  []string{"*3", ":1", "*2", "$a", "$b", "_"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, fn := loadedCommand(t, func(_ *Context, _ []string) (entities.Value, error) {
				return tt.value, nil
			})
			argv := host.args("foo.cmd")
			assert.Equal(t, entities.StatusOK, fn(5, argv, 1))
			assert.Equal(t, tt.want, host.repliesFor(5))
		})
	}
}

func TestCommandTrampoline_ReplyWriteFailure(t *testing.T) {
	host, fn := loadedCommand(t, func(_ *Context, _ []string) (entities.Value, error) {
		return entities.Integer(1), nil
	})
	host.failReplies = true

	argv := host.args("foo.cmd")
	assert.Equal(t, entities.StatusErr, fn(5, argv, 1))
}

func TestCommandTrampoline_ContextExpires(t *testing.T) {
	var leaked *Context
	host, fn := loadedCommand(t, func(ctx *Context, _ []string) (entities.Value, error) {
		leaked = ctx
		assert.True(t, ctx.Valid())
		v, err := ctx.Call("GET", "k")
		require.NoError(t, err)
		return v, nil
	})

	argv := host.args("foo.cmd")
	require.Equal(t, entities.StatusOK, fn(9, argv, 1))
	assert.Equal(t, []string{"*1", "$k"}, host.repliesFor(9))

	require.NotNil(t, leaked)
	assert.False(t, leaked.Valid())
	_, err := leaked.Call("GET", "k")
	assert.ErrorIs(t, err, errors.ErrContextExpired)
	assert.Equal(t, entities.StatusErr, leaked.ReplyValue(entities.OK))
	assert.Equal(t, []string{"*1", "$k"}, host.repliesFor(9))
}

func TestCommandTrampoline_Concurrent(t *testing.T) {
	host, fn := loadedCommand(t, func(_ *Context, args []string) (entities.Value, error) {
		return entities.BulkString(args[1]), nil
	})

	const n = 32
	argvs := make([][]ports.StringHandle, n)
	for i := range argvs {
		argvs[i] = host.args("foo.cmd", fmt.Sprintf("v%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn(ports.CtxHandle(100+i), argvs[i], 2)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, []string{fmt.Sprintf("$v%d", i)}, host.repliesFor(ports.CtxHandle(100+i)))
	}
}

func TestContext_Logger(t *testing.T) {
	host, fn := loadedCommand(t, func(ctx *Context, _ []string) (entities.Value, error) {
		ctx.Logger().Warn("slow command", "ms", 12)
		return entities.NoReply{}, nil
	})

	argv := host.args("foo.cmd")
	fn(1, argv, 1)
	require.NotEmpty(t, host.logs)
	assert.Equal(t, "warning: slow command module=foo ms=12", host.logs[len(host.logs)-1])
}

func TestEventTrampoline(t *testing.T) {
	type delivery struct {
		events entities.NotifyEvent
		event  string
		key    string
	}
	var got []delivery

	m := MustDefine(Def{
		Name: "foo",
		EventHandlers: []EventHandler{{
			Events: entities.NotifyExpired | entities.NotifyEvicted,
			Handler: func(_ *Context, events entities.NotifyEvent, event, key string) {
				if key == "explode" {
					panic("handler fault")
				}
				got = append(got, delivery{events, event, key})
			},
		}},
	})
	host := newFakeHost()
	require.Equal(t, entities.StatusOK, m.OnLoad(host, 1, nil, 0))
	require.Len(t, host.events, 1)
	assert.Equal(t, entities.NotifyExpired|entities.NotifyEvicted, host.subs[0])
	fn := host.events[0]

	t.Run("forwards exactly the known bits", func(t *testing.T) {
		got = nil
		raw := entities.NotifyExpired.Bits() | 1<<20
		status := fn(2, raw, "expired", host.raw([]byte("key1")))

		assert.Equal(t, entities.StatusOK, status)
		require.Len(t, got, 1)
		assert.Equal(t, delivery{entities.NotifyExpired, "expired", "key1"}, got[0])
	})

	t.Run("handler fault reports ok", func(t *testing.T) {
		got = nil
		status := fn(2, entities.NotifyEvicted.Bits(), "evicted", host.raw([]byte("explode")))
		assert.Equal(t, entities.StatusOK, status)
		assert.Empty(t, got)
		assert.Contains(t, host.logs[len(host.logs)-1], "caught panic in event handler for expired|evicted")
	})

	t.Run("undecodable key skips handler", func(t *testing.T) {
		got = nil
		status := fn(2, entities.NotifyExpired.Bits(), "expired", host.raw([]byte{0xff}))
		assert.Equal(t, entities.StatusOK, status)
		assert.Empty(t, got)
		assert.Contains(t, host.logs[len(host.logs)-1], "UTF8 encoding error")
	})
}
