// Package progress broadcasts operation lifecycle events to connected
// observers. The hub is an explicitly constructed instance handed to
// whichever component publishes or subscribes; there is no ambient global
// state. Delivery is fire-and-forget with per-observer isolation: a slow or
// broken observer never blocks the publisher or its siblings.
package progress

import (
	"log/slog"
	"sync"
)

// EventType discriminates the lifecycle events an operation emits.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is a transient lifecycle notification. Exactly one terminal event
// (complete or error) is published per operation, and it is always the last
// event for that operation id.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ProgressPayload carries an interim progress report.
type ProgressPayload struct {
	OperationID string  `json:"operationId"`
	Operation   string  `json:"operation"`
	Progress    float64 `json:"progress"`
	Message     string  `json:"message,omitempty"`
}

// ErrorPayload carries a terminal failure report.
type ErrorPayload struct {
	OperationID string `json:"operationId"`
	Message     string `json:"message"`
}

// Publisher is the narrow emit-only contract the operation engine needs.
type Publisher interface {
	Emit(Event)
}

const observerBuffer = 64

// Observer is one attached listener. Its channel is closed on Detach or
// when the hub shuts down.
type Observer struct {
	events chan Event
}

// Events returns the observer's delivery channel. It is closed when the
// observer is detached or the hub closes.
func (o *Observer) Events() <-chan Event {
	return o.events
}

// Hub fans out events to all currently attached observers. Attach, Detach,
// Emit and Close are safe to call concurrently from multiple operations.
type Hub struct {
	mu        sync.RWMutex
	observers map[*Observer]struct{}
	closed    bool
	logger    *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		observers: make(map[*Observer]struct{}),
		logger:    logger,
	}
}

// Attach registers a new observer. Attaching after an operation's terminal
// event means the observer simply never receives it; there is no replay.
func (h *Hub) Attach() *Observer {
	o := &Observer{events: make(chan Event, observerBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(o.events)
		return o
	}
	h.observers[o] = struct{}{}
	return o
}

// Detach unregisters an observer and closes its channel. Detaching an
// already-detached observer is a no-op.
func (h *Hub) Detach(o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[o]; !ok {
		return
	}
	delete(h.observers, o)
	close(o.events)
}

// Emit delivers an event to every attached observer without blocking. When
// an observer's buffer is full the event is dropped for that observer only.
func (h *Hub) Emit(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for o := range h.observers {
		select {
		case o.events <- ev:
		default:
			h.logger.Warn("dropping event for slow observer", "event_type", ev.Type)
		}
	}
}

// Close detaches all observers and closes their channels, signalling
// shutdown. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for o := range h.observers {
		delete(h.observers, o)
		close(o.events)
	}
}

// Len reports the number of attached observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
