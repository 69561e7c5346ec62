package wasm

import (
	"fmt"

	"github.com/reglet-dev/modbridge/application/module"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// Guest binds a module to the export entry points.
type Guest struct {
	mod   *module.Module
	host  *GuestHost
	table *Dispatcher
}

// NewGuest creates a Guest for mod that talks to the host through imports.
func NewGuest(mod *module.Module, imports Imports, strings StringSource) *Guest {
	table := NewDispatcher()
	return &Guest{
		mod:   mod,
		table: table,
		host:  NewGuestHost(imports, table, strings),
	}
}

// Module returns the bound module.
func (g *Guest) Module() *module.Module {
	return g.mod
}

// Host returns the ports.Host the module sees.
func (g *Guest) Host() *GuestHost {
	return g.host
}

func handles(raw []uint64) []ports.StringHandle {
	out := make([]ports.StringHandle, len(raw))
	for i, h := range raw {
		out[i] = ports.StringHandle(h)
	}
	return out
}

// Load backs modbridge_on_load.
func (g *Guest) Load(ctx uint64, argv []uint64, argc int) int32 {
	st := g.mod.OnLoad(g.host, ports.CtxHandle(ctx), handles(argv), argc)
	if !st.OK() {
		g.table.Reset()
	}
	return int32(st)
}

// Unload backs modbridge_on_unload.
func (g *Guest) Unload(ctx uint64) int32 {
	st := g.mod.OnUnload(g.host, ports.CtxHandle(ctx))
	g.table.Reset()
	return int32(st)
}

// Command backs modbridge_command.
func (g *Guest) Command(ctx uint64, id int32, argv []uint64, argc int) int32 {
	return int32(g.table.Command(ports.CtxHandle(ctx), id, handles(argv), argc))
}

// Event backs modbridge_event. It always yields StatusOK; an event for an
// unknown handler id is logged and dropped.
func (g *Guest) Event(ctx uint64, id, eventType int32, event string, key uint64) int32 {
	if !g.table.HasEvent(id) {
		g.host.Log(ports.CtxHandle(ctx), ports.LogWarning, fmt.Sprintf("dropped %q event for unknown handler id %d", event, id))
		return int32(entities.StatusOK)
	}
	return int32(g.table.Event(ports.CtxHandle(ctx), id, eventType, event, ports.StringHandle(key)))
}
