// Package router fans structured events out to registered connections.
package router

import (
	"encoding/json"
	"log"

	"audiotest/internal/websocket"
	"audiotest/pkg/types"
)

// Router delivers one event to one connection, to a role, or to everyone.
// Pure delivery: routing decisions (who gets which event) belong to the
// session coordinator.
type Router struct {
	registry *websocket.Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *websocket.Registry) *Router {
	return &Router{registry: registry}
}

// SendTo delivers an event to a single connection. Unknown or closed
// recipients are skipped; closed connections are expected, not exceptional.
func (r *Router) SendTo(id string, event interface{}) {
	data, ok := r.encode(event)
	if !ok {
		return
	}

	client, exists := r.registry.Lookup(id)
	if !exists {
		return
	}
	r.deliver(client, data)
}

// SendToRole delivers an event to the registry's current snapshot of a role.
// The event is serialized once; every recipient receives identical bytes.
func (r *Router) SendToRole(role types.Role, event interface{}) {
	data, ok := r.encode(event)
	if !ok {
		return
	}

	for _, client := range r.registry.OfRole(role) {
		r.deliver(client, data)
	}
}

// SendToAll delivers an event to every live connection regardless of role.
func (r *Router) SendToAll(event interface{}) {
	data, ok := r.encode(event)
	if !ok {
		return
	}

	for _, client := range r.registry.All() {
		r.deliver(client, data)
	}
}

// encode serializes an event once per send call.
func (r *Router) encode(event interface{}) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to serialize outbound event %T: %v", event, err)
		return nil, false
	}
	return data, true
}

// deliver hands bytes to one recipient. A failed delivery is logged and
// skipped; it never aborts delivery to the remaining recipients.
func (r *Router) deliver(client *websocket.Client, data []byte) {
	if err := client.Send(data); err != nil {
		log.Printf("Failed to deliver to %s: %v", client.ID(), err)
	}
}
