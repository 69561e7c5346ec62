package wasm

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
	"github.com/reglet-dev/modbridge/log"
	"github.com/reglet-dev/modbridge/wireformat"
)

// StringSource resolves a host string handle to bytes in guest memory.
type StringSource func(h ports.StringHandle) ([]byte, bool)

// GuestHost implements ports.Host on top of the modbridge_host imports.
type GuestHost struct {
	imports Imports
	table   *Dispatcher
	strings StringSource
}

var _ ports.Host = (*GuestHost)(nil)

// NewGuestHost creates a GuestHost. Registered trampolines are stored in
// table; string handles are resolved through strings.
func NewGuestHost(imports Imports, table *Dispatcher, strings StringSource) *GuestHost {
	return &GuestHost{imports: imports, table: table, strings: strings}
}

func status(code int32) entities.Status {
	return entities.StatusFromBool(code == int32(entities.StatusOK))
}

func (h *GuestHost) Init(ctx ports.CtxHandle, name entities.ModuleName, version, apiVersion int) entities.Status {
	return status(h.imports.Init(uint64(ctx), &name, int32(version), int32(apiVersion))) //nolint:gosec // G115: small positive values
}

func (h *GuestHost) CreateCommand(ctx ports.CtxHandle, name string, fn ports.CommandFunc, flags string, firstKey, lastKey, keyStep int) entities.Status {
	id := h.table.AddCommand(fn)
	//nolint:gosec // G115: key positions are small
	return status(h.imports.CreateCommand(uint64(ctx), name, id, flags, int32(firstKey), int32(lastKey), int32(keyStep)))
}

func (h *GuestHost) CreateDataType(ctx ports.CtxHandle, dt *entities.DataType) entities.Status {
	if dt == nil {
		return entities.StatusErr
	}
	return status(h.imports.CreateDataType(uint64(ctx), dt.Name, int32(dt.EncodingVersion))) //nolint:gosec // G115: validated 0..1023
}

func (h *GuestHost) SubscribeToKeyspaceEvents(ctx ports.CtxHandle, events entities.NotifyEvent, fn ports.EventFunc) entities.Status {
	id := h.table.AddEvent(fn)
	return status(h.imports.SubscribeEvents(uint64(ctx), events.Bits(), id))
}

func (h *GuestHost) StringBytes(s ports.StringHandle) ([]byte, bool) {
	return h.strings(s)
}

func (h *GuestHost) ReplyWithSimpleString(ctx ports.CtxHandle, s string) entities.Status {
	return status(h.imports.ReplySimpleString(uint64(ctx), s))
}

func (h *GuestHost) ReplyWithError(ctx ports.CtxHandle, message string) entities.Status {
	return status(h.imports.ReplyError(uint64(ctx), message))
}

func (h *GuestHost) ReplyWithLongLong(ctx ports.CtxHandle, v int64) entities.Status {
	return status(h.imports.ReplyLongLong(uint64(ctx), v))
}

func (h *GuestHost) ReplyWithDouble(ctx ports.CtxHandle, v float64) entities.Status {
	return status(h.imports.ReplyDouble(uint64(ctx), v))
}

func (h *GuestHost) ReplyWithStringBuffer(ctx ports.CtxHandle, b []byte) entities.Status {
	return status(h.imports.ReplyStringBuffer(uint64(ctx), b))
}

func (h *GuestHost) ReplyWithArray(ctx ports.CtxHandle, n int) entities.Status {
	if n < 0 || n > wireformat.MaxArrayLen {
		return entities.StatusErr
	}
	return status(h.imports.ReplyArray(uint64(ctx), int32(n))) //nolint:gosec // G115: bounded above
}

func (h *GuestHost) ReplyWithNull(ctx ports.CtxHandle) entities.Status {
	return status(h.imports.ReplyNull(uint64(ctx)))
}

// hostResponse accepts both a CallResponseWire and the ErrorResponse a host
// function returns when it could not run at all.
type hostResponse struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Reply   []byte          `json:"reply"`
}

// Call sends the command to the host and decodes the RESP reply it returns.
// Error replies come back as *errors.ReplyError.
func (h *GuestHost) Call(ctx ports.CtxHandle, command string, args ...string) (entities.Value, error) {
	req := wireformat.CallRequestWire{Command: command, Args: args}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: failed to marshal request: %w", command, err)
	}

	var resp hostResponse
	if err := json.Unmarshal(h.imports.Call(uint64(ctx), payload), &resp); err != nil {
		return nil, fmt.Errorf("call %s: failed to unmarshal response: %w", command, err)
	}

	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		if resp.Error[0] == '"' {
			return nil, errors.NewReplyError("ERR", resp.Message)
		}
		var detail entities.ErrorDetail
		if err := json.Unmarshal(resp.Error, &detail); err != nil {
			return nil, fmt.Errorf("call %s: failed to unmarshal error: %w", command, err)
		}
		return nil, errors.NewReplyError(detail.Code, detail.Message)
	}
	return wireformat.Parse(resp.Reply)
}

// Log forwards message to the host log.
func (h *GuestHost) Log(ctx ports.CtxHandle, level, message string) {
	payload, err := json.Marshal(log.NewLogMessage("", level, message))
	if err != nil {
		return
	}
	h.imports.LogMessage(uint64(ctx), payload)
}
