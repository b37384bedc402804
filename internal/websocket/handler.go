package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"audiotest/pkg/types"
)

// WebSocket upgrader shared by all handler instances.
// FUNCTIONAL DISCOVERY: Allow all origins for development; deployments that
// face the open internet should tighten origin checking.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// roleQueryParam marks the instructor side of a connection request. Absence
// of the marker defaults to participant.
const (
	roleQueryParam   = "type"
	roleQueryTeacher = "teacher"
)

// Coordinator receives connection lifecycle events and raw inbound frames
// from the handler. Implemented by the hub; abstracted here so handler tests
// don't need the full coordination stack.
type Coordinator interface {
	ClientConnected(client *Client) error
	ClientDisconnected(clientID string) error
	HandleFrame(clientID string, frame []byte) error
}

// Handler accepts WebSocket connections, derives each connection's role, and
// runs its read pump. No session logic lives here.
type Handler struct {
	coordinator  Coordinator
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a WebSocket handler feeding the given coordinator.
func NewHandler(coordinator Coordinator, pingInterval, readTimeout time.Duration) *Handler {
	return &Handler{
		coordinator:  coordinator,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket upgrades the request and admits the connection. The role is
// fixed here, once, from the query marker; it never changes afterwards.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	role := types.RoleStudent
	if r.URL.Query().Get(roleQueryParam) == roleQueryTeacher {
		role = types.RoleInstructor
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// uuid ids tolerate two connections accepted in the same instant; a
	// collision can therefore never silently merge two endpoints.
	id := uuid.New().String()
	conn := NewConnection(wsConn)
	client := NewClient(id, role, conn)

	if err := h.coordinator.ClientConnected(client); err != nil {
		log.Printf("Failed to admit connection %s: %v", id, err)
		_ = conn.Close()
		return
	}

	log.Printf("Connection accepted: id=%s role=%s", id, role)

	go h.readPump(client, conn)
}

// readPump reads inbound frames for one connection and forwards them to the
// coordinator. It owns heartbeat monitoring and end-of-life cleanup.
func (h *Handler) readPump(client *Client, conn *Connection) {
	defer func() {
		if err := h.coordinator.ClientDisconnected(client.ID()); err != nil {
			log.Printf("Failed to hand off disconnect for %s: %v", client.ID(), err)
		}
		_ = conn.Close()
		log.Printf("Connection closed: id=%s role=%s", client.ID(), client.Role())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error for %s: %v", client.ID(), err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.coordinator.HandleFrame(client.ID(), data); err != nil {
			// Ingress overload drops the frame, never the connection.
			log.Printf("Dropping frame from %s: %v", client.ID(), err)
		}
	}
}
