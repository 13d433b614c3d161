package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for broadcasting pool events.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ExecutorStateChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	// The generic Publish needs the concrete type, so dispatch per kind.
	switch e := ev.(type) {
	case ExecutorStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case SubmissionCompletedEvent:
		event.Publish(b.dispatcher, e)
	case ConfigReloadedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives. Returns an unsubscribe
// function.
// Usage: unsub := bus.Subscribe(func(e ExecutorStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ExecutorStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SubmissionCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// No-op unsubscribe for unrecognized handler types
		return func() {}
	}
}

// SubscribeToChannel subscribes a channel to events of type T. Events are
// dropped if the channel is full. Returns an unsubscribe function.
func SubscribeToChannel[T Event](b *Bus, ch chan<- any) func() {
	return event.Subscribe(b.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
