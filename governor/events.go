package governor

import (
	"sync"
	"sync/atomic"

	"github.com/ironclad-systems/governor/clearance"
	"github.com/ironclad-systems/governor/core"
)

// EventHandler receives events raised anywhere in the kernel.
type EventHandler func(clearance.Event)

// Unregister removes a previously registered handler.
type Unregister func()

// eventRegistry is a typed event fan-out registry implementing
// clearance.EventSink. Mission Control passes itself (via this type) to the
// audit trail, enforcement engine, and approval workflow at construction, so
// registering a handler on Mission Control transitively covers every
// subcomponent's events. Handler panics/failures are caught and logged; one
// bad handler never prevents sibling handlers from running.
type eventRegistry struct {
	mu       sync.RWMutex
	handlers map[clearance.EventKind]map[uint64]EventHandler
	nextID   uint64

	logger core.Logger
}

func newEventRegistry(logger core.Logger) *eventRegistry {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &eventRegistry{
		handlers: make(map[clearance.EventKind]map[uint64]EventHandler),
		logger:   logger,
	}
}

// On registers a handler for kind and returns an unregister handle.
func (r *eventRegistry) On(kind clearance.EventKind, handler EventHandler) Unregister {
	id := atomic.AddUint64(&r.nextID, 1)

	r.mu.Lock()
	if r.handlers[kind] == nil {
		r.handlers[kind] = make(map[uint64]EventHandler)
	}
	r.handlers[kind][id] = handler
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers[kind], id)
	}
}

// Emit implements clearance.EventSink. It takes a snapshot of the registered
// handlers for kind so registration/deregistration during dispatch never
// races the iteration.
func (r *eventRegistry) Emit(kind clearance.EventKind, severity clearance.Severity, fields map[string]interface{}) {
	r.mu.RLock()
	var snapshot []EventHandler
	for _, h := range r.handlers[kind] {
		snapshot = append(snapshot, h)
	}
	r.mu.RUnlock()

	for _, h := range snapshot {
		var fieldsCopy map[string]interface{}
		if fields != nil {
			fieldsCopy = make(map[string]interface{}, len(fields))
			for k, v := range fields {
				fieldsCopy[k] = v
			}
		}
		r.dispatch(h, clearance.Event{Kind: kind, Severity: severity, Fields: fieldsCopy})
	}
}

func (r *eventRegistry) dispatch(h EventHandler, event clearance.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked", map[string]interface{}{
				"operation": "governor.dispatchEvent",
				"kind":      string(event.Kind),
				"panic":     rec,
			})
		}
	}()
	h(event)
}
