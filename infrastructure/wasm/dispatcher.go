package wasm

import (
	"sync"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// Dispatcher maps the ids handed to the host at registration back to the
// trampolines they stand for.
type Dispatcher struct {
	mu       sync.RWMutex
	commands []ports.CommandFunc
	events   []ports.EventFunc
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// AddCommand stores fn and returns its id.
func (d *Dispatcher) AddCommand(fn ports.CommandFunc) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, fn)
	return int32(len(d.commands) - 1) //nolint:gosec // G115: bounded by registered commands
}

// AddEvent stores fn and returns its id.
func (d *Dispatcher) AddEvent(fn ports.EventFunc) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, fn)
	return int32(len(d.events) - 1) //nolint:gosec // G115: bounded by registered handlers
}

// Command runs the command trampoline registered under id. An unknown id
// means the host is out of sync with the module and yields StatusErr.
func (d *Dispatcher) Command(ctx ports.CtxHandle, id int32, argv []ports.StringHandle, argc int) entities.Status {
	d.mu.RLock()
	var fn ports.CommandFunc
	if id >= 0 && int(id) < len(d.commands) {
		fn = d.commands[id]
	}
	d.mu.RUnlock()

	if fn == nil {
		return entities.StatusErr
	}
	return fn(ctx, argv, argc)
}

func (d *Dispatcher) event(id int32) ports.EventFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id >= 0 && int(id) < len(d.events) {
		return d.events[id]
	}
	return nil
}

// HasEvent reports whether id names a registered event handler.
func (d *Dispatcher) HasEvent(id int32) bool {
	return d.event(id) != nil
}

// Event runs the event trampoline registered under id. Event delivery never
// fails towards the host, so an unknown id is dropped with StatusOK.
func (d *Dispatcher) Event(ctx ports.CtxHandle, id int32, eventType int32, event string, key ports.StringHandle) entities.Status {
	fn := d.event(id)
	if fn == nil {
		return entities.StatusOK
	}
	return fn(ctx, eventType, event, key)
}

// Len returns the number of registered commands and event handlers.
func (d *Dispatcher) Len() (commands, events int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.commands), len(d.events)
}

// Reset drops every entry. Ids handed out earlier become unknown.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = nil
	d.events = nil
}
