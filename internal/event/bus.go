// Package event is a typed publish/subscribe registry.
//
// Handlers are identified by the Subscription returned from Subscribe, never by
// function value, so removal always matches the registration it came from.
package event

import (
	"reflect"
	"sync"
)

type handler struct {
	id uint64
	fn any
}

// Bus routes events by their Go type.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[reflect.Type][]handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]handler)}
}

// Subscription is a stable handle to one registered handler.
type Subscription struct {
	bus *Bus
	typ reflect.Type
	id  uint64
}

// Active reports whether the subscription is still registered.
func (s Subscription) Active() bool {
	if s.bus == nil {
		return false
	}
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	for _, h := range s.bus.handlers[s.typ] {
		if h.id == s.id {
			return true
		}
	}
	return false
}

// Unsubscribe removes the handler. Calling it more than once is a no-op.
func (s Subscription) Unsubscribe() {
	if s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	list := s.bus.handlers[s.typ]
	for i, h := range list {
		if h.id == s.id {
			next := make([]handler, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			s.bus.handlers[s.typ] = next
			return
		}
	}
}

// Subscribe registers fn for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) Subscription {
	typ := reflect.TypeFor[T]()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[typ] = append(b.handlers[typ], handler{id: id, fn: fn})
	return Subscription{bus: b, typ: typ, id: id}
}

// Publish delivers ev synchronously to every handler of type T in subscription order.
// Handlers may subscribe or unsubscribe while being called; changes apply to the next Publish.
func Publish[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	typ := reflect.TypeFor[T]()

	b.mu.RLock()
	list := b.handlers[typ]
	b.mu.RUnlock()

	for _, h := range list {
		h.fn.(func(T))(ev)
	}
}

// Count returns the number of handlers registered for T.
func Count[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[reflect.TypeFor[T]()])
}
