package module

import (
	"fmt"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// eventTrampoline builds the host-callable entry point for h. The host's
// notification protocol has no failure channel, so the trampoline always
// reports StatusOK; decode failures and faults are logged instead.
func (m *Module) eventTrampoline(host ports.Host, h EventHandler) ports.EventFunc {
	site := "event handler for " + h.Events.String()
	handler := h.Handler

	return func(handle ports.CtxHandle, eventType int32, event string, key ports.StringHandle) entities.Status {
		ctx := newContext(host, handle, m.def.Name)
		defer ctx.expire()

		err := guardErr(site, func() error {
			k, err := decodeString(host, key, 0)
			if err != nil {
				return err
			}
			handler(ctx, entities.NotifyEventFromBitsTruncate(eventType), event, k)
			return nil
		})
		if err != nil {
			host.Log(handle, ports.LogWarning, fmt.Sprintf("%s (%s): %v", site, event, err))
		}
		return entities.StatusOK
	}
}

// registerEventHandler subscribes the trampoline for h once, with every
// requested category combined into one bitset.
func (m *Module) registerEventHandler(host ports.Host, handle ports.CtxHandle, h EventHandler) error {
	fn := m.eventTrampoline(host, h)
	if !host.SubscribeToKeyspaceEvents(handle, h.Events, fn).OK() {
		return &errors.RegistrationError{Kind: "event handler", Name: h.Events.String()}
	}
	return nil
}
