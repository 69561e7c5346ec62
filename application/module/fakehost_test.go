package module

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// fakeHost records every primitive the bridge calls. Replies are kept per
// call handle in a compact RESP-like notation.
type fakeHost struct {
	strings map[ports.StringHandle][]byte
	replies map[ports.CtxHandle][]string

	rejectInit     bool
	rejectCommands map[string]bool
	rejectTypes    map[string]bool
	rejectEvents   bool
	failReplies    bool

	initName    string
	initVersion int
	initAPI     int
	initCalls   int

	calls    []string
	commands map[string]ports.CommandFunc
	events   []ports.EventFunc
	subs     []entities.NotifyEvent
	logs     []string

	mu   sync.Mutex
	next ports.StringHandle
}

var _ ports.Host = (*fakeHost)(nil)

func newFakeHost() *fakeHost {
	return &fakeHost{
		strings:        make(map[ports.StringHandle][]byte),
		replies:        make(map[ports.CtxHandle][]string),
		rejectCommands: make(map[string]bool),
		rejectTypes:    make(map[string]bool),
		commands:       make(map[string]ports.CommandFunc),
	}
}

func (h *fakeHost) raw(b []byte) ports.StringHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.strings[h.next] = b
	return h.next
}

func (h *fakeHost) args(args ...string) []ports.StringHandle {
	out := make([]ports.StringHandle, len(args))
	for i, a := range args {
		out[i] = h.raw([]byte(a))
	}
	return out
}

func (h *fakeHost) repliesFor(ctx ports.CtxHandle) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.replies[ctx]...)
}

func (h *fakeHost) record(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, s)
}

func (h *fakeHost) reply(ctx ports.CtxHandle, s string) entities.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failReplies {
		return entities.StatusErr
	}
	h.replies[ctx] = append(h.replies[ctx], s)
	return entities.StatusOK
}

func (h *fakeHost) Init(_ ports.CtxHandle, name entities.ModuleName, version, apiVersion int) entities.Status {
	h.initCalls++
	h.initName = name.String()
	h.initVersion = version
	h.initAPI = apiVersion
	h.record("init " + h.initName)
	return entities.StatusFromBool(!h.rejectInit)
}

func (h *fakeHost) CreateCommand(_ ports.CtxHandle, name string, fn ports.CommandFunc, flags string, firstKey, lastKey, keyStep int) entities.Status {
	h.record(fmt.Sprintf("command %s [%s] %d %d %d", name, flags, firstKey, lastKey, keyStep))
	if h.rejectCommands[name] {
		return entities.StatusErr
	}
	h.mu.Lock()
	h.commands[name] = fn
	h.mu.Unlock()
	return entities.StatusOK
}

func (h *fakeHost) CreateDataType(_ ports.CtxHandle, dt *entities.DataType) entities.Status {
	h.record("type " + dt.Name)
	return entities.StatusFromBool(!h.rejectTypes[dt.Name])
}

func (h *fakeHost) SubscribeToKeyspaceEvents(_ ports.CtxHandle, events entities.NotifyEvent, fn ports.EventFunc) entities.Status {
	h.record("subscribe " + events.String())
	if h.rejectEvents {
		return entities.StatusErr
	}
	h.events = append(h.events, fn)
	h.subs = append(h.subs, events)
	return entities.StatusOK
}

func (h *fakeHost) StringBytes(s ports.StringHandle) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.strings[s]
	return b, ok
}

func (h *fakeHost) Call(_ ports.CtxHandle, command string, args ...string) (entities.Value, error) {
	h.record("call " + command)
	return entities.Strings(args...), nil
}

func (h *fakeHost) Log(_ ports.CtxHandle, level, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, level+": "+message)
}

func (h *fakeHost) ReplyWithSimpleString(ctx ports.CtxHandle, s string) entities.Status {
	return h.reply(ctx, "+"+s)
}

func (h *fakeHost) ReplyWithError(ctx ports.CtxHandle, message string) entities.Status {
	return h.reply(ctx, "-"+message)
}

func (h *fakeHost) ReplyWithLongLong(ctx ports.CtxHandle, v int64) entities.Status {
	return h.reply(ctx, ":"+strconv.FormatInt(v, 10))
}

func (h *fakeHost) ReplyWithDouble(ctx ports.CtxHandle, v float64) entities.Status {
	return h.reply(ctx, ","+strconv.FormatFloat(v, 'g', -1, 64))
}

func (h *fakeHost) ReplyWithStringBuffer(ctx ports.CtxHandle, b []byte) entities.Status {
	return h.reply(ctx, "$"+string(b))
}

func (h *fakeHost) ReplyWithArray(ctx ports.CtxHandle, n int) entities.Status {
	return h.reply(ctx, "*"+strconv.Itoa(n))
}

func (h *fakeHost) ReplyWithNull(ctx ports.CtxHandle) entities.Status {
	return h.reply(ctx, "_")
}
