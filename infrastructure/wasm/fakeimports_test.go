package wasm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
	"github.com/reglet-dev/modbridge/log"
	"github.com/reglet-dev/modbridge/wireformat"
)

// fakeImports records every import call as a line and answers with ok
// unless told otherwise.
type fakeImports struct {
	calls     []string
	reply     strings.Builder
	logs      []log.LogMessageWire
	callResp  []byte
	lastCall  wireformat.CallRequestWire
	rejectAll bool
}

func (f *fakeImports) status() int32 {
	if f.rejectAll {
		return int32(entities.StatusErr)
	}
	return int32(entities.StatusOK)
}

func (f *fakeImports) Init(ctx uint64, name *entities.ModuleName, version, apiVersion int32) int32 {
	f.calls = append(f.calls, fmt.Sprintf("init %d %s v%d api%d", ctx, name.String(), version, apiVersion))
	return f.status()
}

func (f *fakeImports) CreateCommand(ctx uint64, name string, id int32, flags string, firstKey, lastKey, keyStep int32) int32 {
	f.calls = append(f.calls, fmt.Sprintf("command %s id=%d [%s] %d %d %d", name, id, flags, firstKey, lastKey, keyStep))
	return f.status()
}

func (f *fakeImports) CreateDataType(ctx uint64, name string, encodingVersion int32) int32 {
	f.calls = append(f.calls, fmt.Sprintf("type %s %d", name, encodingVersion))
	return f.status()
}

func (f *fakeImports) SubscribeEvents(ctx uint64, events int32, id int32) int32 {
	f.calls = append(f.calls, fmt.Sprintf("subscribe %s id=%d", entities.NotifyEvent(events), id))
	return f.status()
}

func (f *fakeImports) ReplySimpleString(ctx uint64, s string) int32 {
	f.reply.WriteString("+" + s + ";")
	return f.status()
}

func (f *fakeImports) ReplyError(ctx uint64, message string) int32 {
	f.reply.WriteString("-" + message + ";")
	return f.status()
}

func (f *fakeImports) ReplyLongLong(ctx uint64, v int64) int32 {
	fmt.Fprintf(&f.reply, ":%d;", v)
	return f.status()
}

func (f *fakeImports) ReplyDouble(ctx uint64, v float64) int32 {
	fmt.Fprintf(&f.reply, ",%g;", v)
	return f.status()
}

func (f *fakeImports) ReplyStringBuffer(ctx uint64, b []byte) int32 {
	f.reply.WriteString("$" + string(b) + ";")
	return f.status()
}

func (f *fakeImports) ReplyArray(ctx uint64, n int32) int32 {
	fmt.Fprintf(&f.reply, "*%d;", n)
	return f.status()
}

func (f *fakeImports) ReplyNull(ctx uint64) int32 {
	f.reply.WriteString("_;")
	return f.status()
}

func (f *fakeImports) Call(ctx uint64, request []byte) []byte {
	_ = json.Unmarshal(request, &f.lastCall)
	return f.callResp
}

func (f *fakeImports) LogMessage(ctx uint64, message []byte) {
	var msg log.LogMessageWire
	if err := json.Unmarshal(message, &msg); err == nil {
		f.logs = append(f.logs, msg)
	}
}

// memory stands in for guest linear memory: handles index into it.
type memory map[ports.StringHandle][]byte

func (m memory) source() StringSource {
	return func(h ports.StringHandle) ([]byte, bool) {
		b, ok := m[h]
		return b, ok
	}
}

func (m memory) put(values ...string) []uint64 {
	out := make([]uint64, len(values))
	for i, v := range values {
		h := ports.StringHandle(len(m) + 100)
		m[h] = []byte(v)
		out[i] = uint64(h)
	}
	return out
}
