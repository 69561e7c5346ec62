package module

import (
	"fmt"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
)

func commandSite(name string) string {
	return "command handler for " + name
}

// commandTrampoline builds the host-callable entry point for cmd. Each call
// gets its own Context, which expires when the trampoline returns.
func (m *Module) commandTrampoline(host ports.Host, cmd Command) ports.CommandFunc {
	site := commandSite(cmd.Name)
	handler := cmd.Handler

	return func(handle ports.CtxHandle, argv []ports.StringHandle, argc int) entities.Status {
		ctx := newContext(host, handle, m.def.Name)
		defer ctx.expire()

		value, err := Guard(site, func() (entities.Value, error) {
			args, err := DecodeArgs(host, argv, argc)
			if err != nil {
				return nil, err
			}
			return handler(ctx, args)
		})
		if fault, ok := err.(*errors.FaultError); ok {
			host.Log(handle, ports.LogWarning, fmt.Sprintf("%s: %v", fault.Error(), fault.Value))
		}

		status, replyErr := Guard(site, func() (entities.Status, error) {
			return ctx.Reply(value, err), nil
		})
		if replyErr != nil {
			return entities.StatusErr
		}
		return status
	}
}

// registerCommand hands the trampoline for cmd to the host.
func (m *Module) registerCommand(host ports.Host, handle ports.CtxHandle, cmd Command) error {
	fn := m.commandTrampoline(host, cmd)
	if !host.CreateCommand(handle, cmd.Name, fn, cmd.Flags, cmd.FirstKey, cmd.LastKey, cmd.KeyStep).OK() {
		return &errors.RegistrationError{Kind: "command", Name: cmd.Name}
	}
	return nil
}
