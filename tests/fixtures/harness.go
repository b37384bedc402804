// Package fixtures provides an in-process server harness and event-recording
// clients for end-to-end scenario tests.
package fixtures

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"audiotest/internal/api"
	"audiotest/internal/hub"
	"audiotest/internal/router"
	"audiotest/internal/session"
	"audiotest/internal/websocket"
	"audiotest/pkg/client"
	"audiotest/pkg/types"
)

// Server is a fully wired coordinator served over a loopback listener.
type Server struct {
	Registry    *websocket.Registry
	Coordinator *session.Coordinator
	Hub         *hub.Hub
	HTTP        *httptest.Server
}

// StartServer wires registry, router, coordinator, hub, handler, and API the
// way the production application does, minus persistence, and serves them
// through httptest.
func StartServer(t *testing.T) *Server {
	t.Helper()

	registry := websocket.NewRegistry()
	messageRouter := router.NewRouter(registry)
	coordinator := session.NewCoordinator(registry, messageRouter, nil)
	messageHub := hub.NewHub(registry, coordinator)
	apiServer := api.NewServer(coordinator, nil, registry)
	wsHandler := websocket.NewHandler(messageHub, 30*time.Second, 60*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	if err := messageHub.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Failed to start hub: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := httptest.NewServer(mux)

	t.Cleanup(func() {
		httpServer.Close()
		messageHub.Stop()
		cancel()
	})

	return &Server{
		Registry:    registry,
		Coordinator: coordinator,
		Hub:         messageHub,
		HTTP:        httpServer,
	}
}

// WSURL returns the WebSocket endpoint for a participant connection.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/ws"
}

// TeacherURL returns the WebSocket endpoint carrying the instructor marker.
func (s *Server) TeacherURL() string {
	return s.WSURL() + "?type=teacher"
}

// Recorder captures every event a client dispatches, queryable by type.
type Recorder struct {
	mu     sync.Mutex
	events []client.Event
}

// watchedEventTypes is every wire event plus the synthetic status event.
var watchedEventTypes = []string{
	types.MessageTypeTeacherConnected,
	types.MessageTypeStudentID,
	types.MessageTypeStudentConnected,
	types.MessageTypeStudentDisconnected,
	types.MessageTypeTestStart,
	types.MessageTypeTestStarted,
	types.MessageTypeQuestionStart,
	types.MessageTypeQuestionStarted,
	types.MessageTypeAnswerSubmitted,
	types.MessageTypeTestEnd,
	client.EventConnectionStatus,
}

// Record subscribes the recorder to every known event type on c.
func (r *Recorder) Record(c *client.Client) {
	for _, eventType := range watchedEventTypes {
		c.On(eventType, func(event client.Event) {
			r.mu.Lock()
			r.events = append(r.events, event)
			r.mu.Unlock()
		})
	}
}

// OfType returns all captured events of one type, in arrival order.
func (r *Recorder) OfType(eventType string) []client.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []client.Event
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// WaitFor blocks until at least count events of the given type arrived and
// returns the most recent one.
func (r *Recorder) WaitFor(t *testing.T, eventType string, count int) client.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		events := r.OfType(eventType)
		if len(events) >= count {
			return events[len(events)-1]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d %s event(s), have %d", count, eventType, len(r.OfType(eventType)))
	return client.Event{}
}

// ExpectNone fails if any event of the given type arrives within the grace
// period.
func (r *Recorder) ExpectNone(t *testing.T, eventType string) {
	t.Helper()
	time.Sleep(100 * time.Millisecond)
	if events := r.OfType(eventType); len(events) != 0 {
		t.Errorf("Expected no %s events, got %d", eventType, len(events))
	}
}

// Connect dials the given URL and waits for the connection to establish.
func Connect(t *testing.T, url string) (*client.Client, *Recorder) {
	t.Helper()

	c := client.New(url, client.Options{RetryDelay: 10 * time.Millisecond, MaxAttempts: 3})
	recorder := &Recorder{}
	recorder.Record(c)

	if err := c.Connect(); err != nil {
		t.Fatalf("Failed to connect to %s: %v", url, err)
	}
	t.Cleanup(func() { c.Close() })

	return c, recorder
}

// ConnectTeacher dials as an instructor and waits for the identity ack.
func ConnectTeacher(t *testing.T, server *Server) (*client.Client, *Recorder) {
	t.Helper()
	c, recorder := Connect(t, server.TeacherURL())
	recorder.WaitFor(t, types.MessageTypeTeacherConnected, 1)
	return c, recorder
}

// ConnectStudent dials as a participant, waits for the assigned id, and
// returns it alongside the client.
func ConnectStudent(t *testing.T, server *Server) (*client.Client, *Recorder, string) {
	t.Helper()
	c, recorder := Connect(t, server.WSURL())

	event := recorder.WaitFor(t, types.MessageTypeStudentID, 1)
	var identity types.IdentityEvent
	if err := event.Decode(&identity); err != nil {
		t.Fatalf("Failed to decode student-id: %v", err)
	}
	return c, recorder, identity.ID
}

// StartTestCommand builds a start-test frame for the given definition.
func StartTestCommand(test *types.Test) map[string]interface{} {
	return map[string]interface{}{
		"type": types.MessageTypeStartTest,
		"test": test,
	}
}

// SubmitAnswerCommand builds a submit-answer frame.
func SubmitAnswerCommand(answer types.Answer) map[string]interface{} {
	return map[string]interface{}{
		"type":   types.MessageTypeSubmitAnswer,
		"answer": answer,
	}
}

// TwoQuestionTest is the scenario suite's standard test definition.
func TwoQuestionTest() *types.Test {
	return &types.Test{
		ID:   "listening-1",
		Name: "Listening Practice 1",
		Questions: []types.Question{
			{ID: 1, AudioFile: "q1.mp3", CorrectOption: "A"},
			{ID: 2, AudioFile: "q2.mp3", CorrectOption: "B"},
		},
	}
}
