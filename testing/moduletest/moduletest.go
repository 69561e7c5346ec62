// Package moduletest loads a module into an in-process reference host so
// its commands and event handlers can be tested without a WASM build.
//
//	h := moduletest.New(t, mymodule.Module(), "maxlen", "10")
//	h.AssertReply(t, entities.BulkString("hi"), "hello.echo", "hi")
package moduletest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/modbridge/application/module"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/hostfuncs"
)

// Harness is one module loaded into a hostfuncs.Server.
type Harness struct {
	server *hostfuncs.Server
	mod    *module.Module
	logs   *syncBuffer
	ctx    context.Context
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Start creates a server, loads mod with args and returns the harness. The
// error is the module's load error when it rejects the load.
func Start(mod *module.Module, args []string, opts ...hostfuncs.ServerOption) (*Harness, error) {
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	server, err := hostfuncs.NewServer(append([]hostfuncs.ServerOption{
		hostfuncs.WithLogger(logger),
		hostfuncs.WithCommandMiddleware(hostfuncs.CommandLoggingMiddleware(logger)),
	}, opts...)...)
	if err != nil {
		return nil, err
	}

	h := &Harness{server: server, mod: mod, logs: logs, ctx: context.Background()}
	sess := server.Begin(h.ctx, "load "+mod.Name())
	defer server.End(sess)

	argv := server.Strings(sess, args...)
	if st := mod.OnLoad(server, sess.Handle(), argv, len(argv)); !st.OK() {
		server.Reset()
		if err := mod.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("module %s rejected load", mod.Name())
	}
	return h, nil
}

// New is Start for tests: a rejected load fails t and the module is
// unloaded when the test ends.
func New(t testing.TB, mod *module.Module, args ...string) *Harness {
	t.Helper()
	h, err := Start(mod, args)
	require.NoError(t, err, "load %s", mod.Name())
	t.Cleanup(func() {
		if mod.State() == module.StateLoaded {
			_ = h.Unload()
		}
	})
	return h
}

// Server returns the reference host the module is loaded into.
func (h *Harness) Server() *hostfuncs.Server {
	return h.server
}

// Module returns the loaded module.
func (h *Harness) Module() *module.Module {
	return h.mod
}

// Logs returns everything the host logged, including the module's log
// messages.
func (h *Harness) Logs() string {
	return h.logs.String()
}

// Call runs command with args the way a client would.
func (h *Harness) Call(command string, args ...string) (entities.Value, error) {
	argv := append([]string{command}, args...)
	return h.server.Execute(h.ctx, argv...)
}

// Notify raises a keyspace event and returns how many subscriptions
// received it.
func (h *Harness) Notify(events entities.NotifyEvent, event, key string) int {
	n, _ := h.server.Notify(h.ctx, events.Bits(), event, key)
	return n
}

// Unload runs the module's unload entry point and forgets its registrations.
func (h *Harness) Unload() error {
	sess := h.server.Begin(h.ctx, "unload "+h.mod.Name())
	defer h.server.End(sess)
	defer h.server.Reset()

	if st := h.mod.OnUnload(h.server, sess.Handle()); !st.OK() {
		if err := h.mod.Err(); err != nil {
			return err
		}
		return fmt.Errorf("module %s rejected unload", h.mod.Name())
	}
	return nil
}

// AssertReply calls command and asserts it replies want.
func (h *Harness) AssertReply(t testing.TB, want entities.Value, command string, args ...string) bool {
	t.Helper()
	got, err := h.Call(command, args...)
	if !assert.NoError(t, err, "%s %v", command, args) {
		return false
	}
	return assert.Equal(t, want, got, "%s %v", command, args)
}

// AssertErrorReply calls command and asserts it replies with an error
// whose code is code and whose message contains substr.
func (h *Harness) AssertErrorReply(t testing.TB, code, substr, command string, args ...string) bool {
	t.Helper()
	_, err := h.Call(command, args...)
	var reply *errors.ReplyError
	if !assert.ErrorAs(t, err, &reply, "%s %v", command, args) {
		return false
	}
	ok := assert.Equal(t, code, reply.Code, "%s %v", command, args)
	return assert.Contains(t, reply.Message, substr, "%s %v", command, args) && ok
}

// TestCase is one command call and its expected reply. Set WantCode to
// expect an error reply instead of Want.
type TestCase struct {
	Name     string
	Command  string
	Args     []string
	Want     entities.Value
	WantCode string
	WantErr  string
}

// Run runs each case as a subtest against h.
func (h *Harness) Run(t *testing.T, cases []TestCase) {
	t.Helper()
	for _, tc := range cases {
		name := tc.Name
		if name == "" {
			name = tc.Command
		}
		t.Run(name, func(t *testing.T) {
			if tc.WantCode != "" {
				h.AssertErrorReply(t, tc.WantCode, tc.WantErr, tc.Command, tc.Args...)
				return
			}
			h.AssertReply(t, tc.Want, tc.Command, tc.Args...)
		})
	}
}
