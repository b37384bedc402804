// Package client is the participant-side connection layer: it dials the
// server, dispatches decoded events to subscribers, and reconnects with a
// fixed delay when the connection drops.
package client

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the client's connection lifecycle phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventConnectionStatus is the synthetic event type the client emits for its
// own lifecycle, alongside the server's wire events.
const EventConnectionStatus = "connection-status"

// Connection status values carried by EventConnectionStatus events.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusFailed       = "failed"
)

// Event is one decoded event delivered to subscribers: either a server frame
// or a synthetic connection-status notification.
type Event struct {
	Type string
	Data json.RawMessage
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ConnectionStatus is the payload of EventConnectionStatus events.
type ConnectionStatus struct {
	Status string `json:"status"`
}

// Handler receives one event. Handlers for one event type run synchronously
// in registration order, so no event is observed out of order.
type Handler func(Event)

// Client maintains one resilient connection to the coordinator.
//
// Reconnection is fixed-delay, not exponential: a classroom outage is
// typically a brief network blip or a server restart, and a bounded number of
// evenly spaced attempts recovers from both. When the attempt budget is
// exhausted the client emits a terminal failed status and goes quiet until
// Connect is called again.
type Client struct {
	url         string
	dialer      *websocket.Dialer
	retryDelay  time.Duration
	maxAttempts int

	mu         sync.Mutex
	conn       *websocket.Conn
	state      State
	attempts   int
	generation int
	retryTimer *time.Timer
	handlers   map[string][]Handler
	closed     bool

	writeMu sync.Mutex
}

// Options tunes the reconnection policy.
type Options struct {
	RetryDelay  time.Duration
	MaxAttempts int
}

// DefaultOptions matches the policy participants historically ran with: five
// retries, three seconds apart.
func DefaultOptions() Options {
	return Options{
		RetryDelay:  3 * time.Second,
		MaxAttempts: 5,
	}
}

// New creates a client for the given WebSocket URL. It does not dial until
// Connect is called.
func New(url string, opts Options) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultOptions().RetryDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}

	return &Client{
		url:         url,
		dialer:      websocket.DefaultDialer,
		retryDelay:  opts.RetryDelay,
		maxAttempts: opts.MaxAttempts,
		handlers:    make(map[string][]Handler),
	}
}

// On subscribes a handler to an event type. Subscribe before Connect to
// observe the first events.
func (c *Client) On(eventType string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many retry attempts the current outage has consumed.
// Zero while connected.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect dials the server. An explicit call always dials, even after the
// retry budget was exhausted, and cancels any pending scheduled retry first.
// On dial failure the automatic retry cycle takes over; the error reports the
// first attempt only.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	return c.dial()
}

// dial performs one connection attempt.
func (c *Client) dial() error {
	conn, _, err := c.dialer.Dial(c.url, nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClientClosed
	}

	if err != nil {
		c.mu.Unlock()
		c.scheduleRetry()
		return fmt.Errorf("failed to dial %s: %w", c.url, err)
	}

	c.conn = conn
	c.state = StateConnected
	// A successful open resets the retry budget; the next outage gets a full
	// set of attempts.
	c.attempts = 0
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	c.emit(statusEvent(StatusConnected))

	go c.readLoop(conn, generation)

	return nil
}

// scheduleRetry consumes one retry attempt or, past the budget, emits the
// terminal failed status.
func (c *Client) scheduleRetry() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if c.attempts >= c.maxAttempts {
		c.state = StateDisconnected
		c.mu.Unlock()
		log.Printf("Connection to %s failed after %d attempts", c.url, c.maxAttempts)
		c.emit(statusEvent(StatusFailed))
		return
	}

	c.attempts++
	attempt := c.attempts
	c.state = StateConnecting
	c.retryTimer = time.AfterFunc(c.retryDelay, func() {
		if err := c.dial(); err != nil {
			log.Printf("Reconnect attempt %d failed: %v", attempt, err)
		}
	})
	c.mu.Unlock()
}

// readLoop delivers server frames for one connection generation.
func (c *Client) readLoop(conn *websocket.Conn, generation int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, generation)
			return
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &probe); err != nil || probe.Type == "" {
			log.Printf("Discarding unreadable server frame: %v", err)
			continue
		}

		c.emit(Event{Type: probe.Type, Data: json.RawMessage(data)})
	}
}

// handleDisconnect reacts to a broken connection, ignoring stale generations
// so an old read loop can't disturb a newer connection.
func (c *Client) handleDisconnect(conn *websocket.Conn, generation int) {
	_ = conn.Close()

	c.mu.Lock()
	if c.closed || generation != c.generation {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.emit(statusEvent(StatusDisconnected))
	c.scheduleRetry()
}

// Send marshals v and writes it to the server. There is no offline queue: a
// command sent while disconnected fails fast with ErrNotConnected and the
// caller decides whether it is still worth sending after reconnection.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Close stops the client permanently: pending retries are cancelled and no
// further events are emitted.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// emit dispatches an event to its subscribers in registration order.
func (c *Client) emit(event Event) {
	c.mu.Lock()
	handlers := make([]Handler, len(c.handlers[event.Type]))
	copy(handlers, c.handlers[event.Type])
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func statusEvent(status string) Event {
	data, _ := json.Marshal(ConnectionStatus{Status: status})
	return Event{Type: EventConnectionStatus, Data: data}
}
