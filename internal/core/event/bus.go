package event

import (
	"reflect"
	"sync"
)

// Bus queues events between systems. Events emitted during tick N are
// delivered in tick N+1, after EventDispatchSystem swaps the buffers.
// Emit and dispatch run on the game loop only; Subscribe may be called
// from setup code.
type Bus struct {
	mu       sync.Mutex
	handlers map[reflect.Type][]func(any)

	pending, ready []queued
}

type queued struct {
	key reflect.Type
	ev  any
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]func(any))}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues ev for the next tick. A nil bus drops it.
func Emit[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	b.pending = append(b.pending, queued{key: keyOf[T](), ev: ev})
}

// Subscribe adds fn as a handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := keyOf[T]()
	b.handlers[k] = append(b.handlers[k], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers makes last tick's events ready for DispatchAll.
func (b *Bus) SwapBuffers() {
	b.ready, b.pending = b.pending, b.ready[:0]
}

// Pending returns the number of events queued for the next tick.
func (b *Bus) Pending() int {
	return len(b.pending)
}

// DispatchAll delivers ready events grouped by type. Types are visited in
// the order their first event was emitted; events of one type keep their
// emit order.
func (b *Bus) DispatchAll() {
	if len(b.ready) == 0 {
		return
	}
	b.mu.Lock()
	handlers := b.handlers
	b.mu.Unlock()

	var order []reflect.Type
	groups := make(map[reflect.Type][]any)
	for _, q := range b.ready {
		if _, seen := groups[q.key]; !seen {
			order = append(order, q.key)
		}
		groups[q.key] = append(groups[q.key], q.ev)
	}
	for _, k := range order {
		for _, ev := range groups[k] {
			for _, h := range handlers[k] {
				h(ev)
			}
		}
	}
}
