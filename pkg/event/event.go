// Package event provides a small synchronous/async event dispatcher.
//
// A Dispatcher is constructed once and handed to whatever fires events, so
// listeners registered in one test never leak into another.
package event

import (
	"log/slog"
	"sync"
)

// Handler is a function that receives an event payload.
type Handler func(payload any)

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func New() *Dispatcher {
	return &Dispatcher{handlers: map[string][]Handler{}}
}

// Listen registers a handler for the given event name.
func (d *Dispatcher) Listen(event string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], handler)
}

func (d *Dispatcher) snapshot(event string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	hs := make([]Handler, len(d.handlers[event]))
	copy(hs, d.handlers[event])
	return hs
}

// Fire dispatches an event synchronously to all registered listeners. A
// panicking listener is logged and does not stop the others. A nil
// Dispatcher drops the event.
func (d *Dispatcher) Fire(event string, payload any) {
	if d == nil {
		return
	}
	for _, h := range d.snapshot(event) {
		run(event, h, payload)
	}
}

// FireAsync dispatches the event to all listeners concurrently.
// It returns immediately without waiting for handlers to complete.
func (d *Dispatcher) FireAsync(event string, payload any) {
	if d == nil {
		return
	}
	for _, h := range d.snapshot(event) {
		go run(event, h, payload)
	}
}

// Flush removes all listeners.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = map[string][]Handler{}
}

func run(event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event: listener panicked", "event", event, "panic", r)
		}
	}()
	h(payload)
}
