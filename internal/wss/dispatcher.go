package wss

import (
	"errors"
	"fmt"
	"sort"

	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

var ErrUnknownEvent = errors.New("unknown event type")

// WsHandlerType defines the signature for a WebSocket event handler
type WsHandlerType func(*wsstypes.WsContext) error

// Dispatcher routes inbound events by type. Handlers are registered before
// the server starts; Dispatch is safe for concurrent use afterwards.
type Dispatcher struct {
	handlers map[string]WsHandlerType
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]WsHandlerType),
	}
}

func (d *Dispatcher) Register(event string, handler WsHandlerType) {
	d.handlers[event] = handler
}

// Events lists the registered event types.
func (d *Dispatcher) Events() []string {
	events := make([]string, 0, len(d.handlers))
	for event := range d.handlers {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

func (d *Dispatcher) Dispatch(event string, ctx *wsstypes.WsContext) error {
	handler, ok := d.handlers[event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return handler(ctx)
}
