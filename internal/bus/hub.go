// Package bus carries server-side events from the pipeline to observers
// (the control surface's WebSocket stream).
package bus

import "sync"

// Event is one broadcast notification.
type Event struct {
	Name    string `json:"name"`              // "trigger", "dispatch", "task", "summary"
	Payload any    `json:"payload,omitempty"`
}

// EventHandler handles a broadcast event. Must not block.
type EventHandler func(Event)

// Hub fans events out to subscribers. Broadcast never blocks the pipeline;
// handlers run inline and are expected to hand off quickly.
type Hub struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{handlers: make(map[string]EventHandler)}
}

// Subscribe registers a handler under id, replacing any previous one.
func (h *Hub) Subscribe(id string, handler EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[id] = handler
}

// Unsubscribe removes a handler.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, id)
}

// Broadcast delivers the event to all current subscribers.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, handler := range h.handlers {
		handler(ev)
	}
}
