// Package hub is the server-side ingress: it serializes inbound frames and
// disconnects into a single processing loop, decodes each frame, enforces
// role permissions, and invokes the session coordinator.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"audiotest/internal/session"
	"audiotest/internal/websocket"
	"audiotest/pkg/types"
)

const (
	// eventBuffer absorbs message bursts from a full classroom without
	// blocking connection read pumps.
	eventBuffer = 1024

	// limiterCleanupInterval controls how often stale rate-limiter entries
	// are dropped.
	limiterCleanupInterval = 5 * time.Minute
)

type eventKind int

const (
	frameEvent eventKind = iota
	disconnectEvent
)

// event is one unit of ingress work. Frames and disconnects share a single
// queue so a connection's disconnect is always processed after its frames.
type event struct {
	kind     eventKind
	clientID string
	frame    []byte
}

// Hub implements websocket.Coordinator. Admission happens synchronously so
// the handler knows whether a connection was accepted; everything else flows
// through the single processing goroutine.
type Hub struct {
	events   chan event
	shutdown chan struct{}

	registry    *websocket.Registry
	coordinator *session.Coordinator
	limiter     *RateLimiter

	running bool
	mu      sync.RWMutex
}

// NewHub creates a hub feeding the given coordinator.
func NewHub(registry *websocket.Registry, coordinator *session.Coordinator) *Hub {
	return &Hub{
		events:      make(chan event, eventBuffer),
		shutdown:    make(chan struct{}),
		registry:    registry,
		coordinator: coordinator,
		limiter:     NewRateLimiter(),
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting ingress hub...")

	go h.run(ctx)

	return nil
}

// Stop shuts down hub processing. Events already queued are abandoned.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping ingress hub...")

	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}

	return nil
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// ClientConnected admits a connection. Synchronous on purpose: the handler
// must not start the read pump for a connection the registry refused.
func (h *Hub) ClientConnected(client *websocket.Client) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}
	return h.coordinator.ClientConnected(client)
}

// ClientDisconnected queues a disconnect behind any frames the connection
// already delivered.
func (h *Hub) ClientDisconnected(clientID string) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}

	select {
	case h.events <- event{kind: disconnectEvent, clientID: clientID}:
		return nil
	case <-h.shutdown:
		return ErrHubNotRunning
	}
}

// HandleFrame queues an inbound frame for processing. Non-blocking: when the
// queue is full the frame is dropped and the caller logs it; the connection
// stays open.
func (h *Hub) HandleFrame(clientID string, frame []byte) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}

	select {
	case h.events <- event{kind: frameEvent, clientID: clientID, frame: frame}:
		return nil
	default:
		return ErrEventChannelFull
	}
}

// run is the single processing loop. One event is processed to completion
// before the next is considered.
func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")

	cleanup := time.NewTicker(limiterCleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case ev := <-h.events:
			switch ev.kind {
			case frameEvent:
				h.dispatch(ev.clientID, ev.frame)
			case disconnectEvent:
				h.coordinator.ClientDisconnected(ev.clientID)
			}

		case <-cleanup.C:
			h.limiter.Cleanup()

		case <-h.shutdown:
			return

		case <-ctx.Done():
			return
		}
	}
}

// dispatch decodes one frame and applies it to the session. Every failure
// mode here is drop-and-log: malformed frames, unknown types, unauthorized
// roles, and rate-limit overruns never close the connection and never reach
// the state machine.
func (h *Hub) dispatch(clientID string, frame []byte) {
	sender, exists := h.registry.Lookup(clientID)
	if !exists {
		log.Printf("Dropping frame from unknown connection %s", clientID)
		return
	}

	cmd, err := types.DecodeCommand(frame)
	if err != nil {
		log.Printf("Dropping frame from %s: %v", clientID, err)
		return
	}

	if !canSend(sender.Role(), cmd.CommandType()) {
		log.Printf("Ignoring %s from %s: role %s not authorized", cmd.CommandType(), clientID, sender.Role())
		return
	}

	if !h.limiter.Allow(clientID) {
		log.Printf("Rate limit exceeded for %s, dropping %s", clientID, cmd.CommandType())
		return
	}

	switch cmd := cmd.(type) {
	case *types.StartTestCommand:
		h.coordinator.StartTest(cmd.Test)
	case *types.NextQuestionCommand:
		h.coordinator.NextQuestion()
	case *types.SubmitAnswerCommand:
		h.coordinator.SubmitAnswer(clientID, cmd.Answer)
	case *types.StopTestCommand:
		h.coordinator.StopTest()
	}
}

// canSend is the role permission table: session control is instructor-only,
// answer submission is participant-only.
func canSend(role types.Role, commandType string) bool {
	switch role {
	case types.RoleInstructor:
		return commandType == types.MessageTypeStartTest ||
			commandType == types.MessageTypeNextQuestion ||
			commandType == types.MessageTypeStopTest
	case types.RoleStudent:
		return commandType == types.MessageTypeSubmitAnswer
	default:
		return false
	}
}
