package websocket

import (
	"sync"
	"time"

	"audiotest/pkg/types"
)

// Transport is the outbound byte path to one connected endpoint. The registry
// references it but never owns the underlying socket.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Client is the registry's record of one live connection: identity, fixed
// role, and the answers submitted over the connection's lifetime. The record
// is discarded whole on disconnect.
type Client struct {
	id        string
	role      types.Role
	transport Transport
	joinedAt  time.Time

	mu      sync.Mutex
	answers []types.Answer
}

// NewClient creates a registry record for an accepted connection.
func NewClient(id string, role types.Role, transport Transport) *Client {
	return &Client{
		id:        id,
		role:      role,
		transport: transport,
		joinedAt:  time.Now(),
	}
}

// ID returns the connection's identifier, stable for its lifetime.
func (c *Client) ID() string { return c.id }

// Role returns the connection's fixed capability class.
func (c *Client) Role() types.Role { return c.role }

// JoinedAt returns when the connection was accepted.
func (c *Client) JoinedAt() time.Time { return c.joinedAt }

// Send queues serialized bytes on the client's transport.
func (c *Client) Send(data []byte) error { return c.transport.Send(data) }

// Close closes the client's transport.
func (c *Client) Close() error { return c.transport.Close() }

// appendAnswer records a submitted answer. Answer history is append-only.
func (c *Client) appendAnswer(answer types.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = append(c.answers, answer)
}

// AnswerHistory returns a copy of the client's submitted answers in
// submission order.
func (c *Client) AnswerHistory() []types.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make([]types.Answer, len(c.answers))
	copy(history, c.answers)
	return history
}

// Registry tracks every live connection with thread-safe operations.
// TECHNICAL DISCOVERY: RWMutex optimizes for the read-heavy lookup pattern of
// broadcast fan-out, which snapshots role sets far more often than
// connections churn.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Register admits a client. A duplicate id is an internal error, never a
// silent merge of two endpoints.
func (r *Registry) Register(client *Client) error {
	if client == nil {
		return ErrNilClient
	}
	if !client.role.IsValid() {
		return ErrInvalidClientRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client.id]; exists {
		return ErrDuplicateClientID
	}
	r.clients[client.id] = client
	return nil
}

// Unregister removes a client and its answer history. Idempotent: removing an
// unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// Lookup returns the live client for an id.
func (r *Registry) Lookup(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, exists := r.clients[id]
	return client, exists
}

// AppendAnswer appends an answer to a client's history. Returns false when
// the client is no longer registered.
func (r *Registry) AppendAnswer(id string, answer types.Answer) bool {
	r.mu.RLock()
	client, exists := r.clients[id]
	r.mu.RUnlock()

	if !exists {
		return false
	}
	client.appendAnswer(answer)
	return true
}

// OfRole returns a snapshot of every client with the given role, taken at
// call time. Registry mutations after the call are not observed by the
// returned slice.
func (r *Registry) OfRole(role types.Role) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clients []*Client
	for _, client := range r.clients {
		if client.role == role {
			clients = append(clients, client)
		}
	}
	return clients
}

// Instructors returns a snapshot of all instructor connections.
func (r *Registry) Instructors() []*Client {
	return r.OfRole(types.RoleInstructor)
}

// Students returns a snapshot of all participant connections.
func (r *Registry) Students() []*Client {
	return r.OfRole(types.RoleStudent)
}

// All returns a snapshot of every live connection regardless of role.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Stats returns registry counters for monitoring endpoints.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instructors := 0
	students := 0
	for _, client := range r.clients {
		switch client.role {
		case types.RoleInstructor:
			instructors++
		case types.RoleStudent:
			students++
		}
	}

	return map[string]int{
		"total_connections": len(r.clients),
		"instructors":       instructors,
		"students":          students,
	}
}
