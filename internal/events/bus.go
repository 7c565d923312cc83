// Package events wraps kelindar/event with the typed event set used for
// in-process notification between the server, announcer, and metrics.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ClientConnectedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so route through a
	// type switch rather than the interface value.
	switch e := ev.(type) {
	case ClientConnectedEvent:
		event.Publish(b.dispatcher, e)
	case ClientDisconnectedEvent:
		event.Publish(b.dispatcher, e)
	case StreamingStartedEvent:
		event.Publish(b.dispatcher, e)
	case StreamingStoppedEvent:
		event.Publish(b.dispatcher, e)
	case ScriptsReloadedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function; the handler's
// parameter type selects which events it receives. Returns an unsubscribe
// function.
// Usage: unsub := bus.Subscribe(func(e ClientConnectedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ClientConnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ClientDisconnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamingStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamingStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ScriptsReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
