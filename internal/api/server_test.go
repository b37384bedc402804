package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"audiotest/internal/router"
	"audiotest/internal/session"
	"audiotest/internal/store"
	"audiotest/internal/websocket"
	"audiotest/pkg/types"
)

type discardTransport struct{}

func (discardTransport) Send(data []byte) error { return nil }
func (discardTransport) Close() error           { return nil }

func newTestServer(t *testing.T) (*Server, *websocket.Registry, *session.Coordinator, *store.Store) {
	t.Helper()

	testStore, err := store.Open(filepath.Join(t.TempDir(), "tests.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { testStore.Close() })

	registry := websocket.NewRegistry()
	coordinator := session.NewCoordinator(registry, router.NewRouter(registry), testStore)

	return NewServer(coordinator, testStore, registry), registry, coordinator, testStore
}

func twoQuestionTest() *types.Test {
	return &types.Test{
		ID:   "listening-1",
		Name: "Listening Practice 1",
		Questions: []types.Question{
			{ID: 1, AudioFile: "q1.mp3", CorrectOption: "A"},
			{ID: 2, AudioFile: "q2.mp3", CorrectOption: "B"},
		},
	}
}

func TestSessionEndpointIdle(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	var snapshot session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snapshot.Running {
		t.Error("Expected idle session")
	}
	if snapshot.QuestionIndex != -1 {
		t.Errorf("Expected question index -1 while idle, got %d", snapshot.QuestionIndex)
	}
}

func TestSessionEndpointRunning(t *testing.T) {
	server, _, coordinator, _ := newTestServer(t)

	coordinator.StartTest(twoQuestionTest())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	var snapshot session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if !snapshot.Running {
		t.Error("Expected running session")
	}
	if snapshot.TestID != "listening-1" {
		t.Errorf("Expected test id listening-1, got %s", snapshot.TestID)
	}
	if snapshot.QuestionIndex != 0 {
		t.Errorf("Expected question index 0, got %d", snapshot.QuestionIndex)
	}
	if snapshot.QuestionCount != 2 {
		t.Errorf("Expected 2 questions, got %d", snapshot.QuestionCount)
	}
}

func TestTestsEndpoint(t *testing.T) {
	server, _, coordinator, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tests", nil))

	var response TestsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode tests response: %v", err)
	}
	if len(response.Tests) != 0 {
		t.Errorf("Expected no stored tests, got %d", len(response.Tests))
	}

	// Starting a test persists its definition.
	coordinator.StartTest(twoQuestionTest())

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tests", nil))

	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode tests response: %v", err)
	}
	if len(response.Tests) != 1 {
		t.Fatalf("Expected 1 stored test, got %d", len(response.Tests))
	}
	if response.Tests[0].ID != "listening-1" {
		t.Errorf("Expected test listening-1, got %s", response.Tests[0].ID)
	}
}

func TestTestsEndpointWithoutStore(t *testing.T) {
	registry := websocket.NewRegistry()
	coordinator := session.NewCoordinator(registry, router.NewRouter(registry), nil)
	server := NewServer(coordinator, nil, registry)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tests", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 without store, got %d", rec.Code)
	}

	var response TestsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode tests response: %v", err)
	}
	if len(response.Tests) != 0 {
		t.Errorf("Expected empty list without store, got %d", len(response.Tests))
	}
}

func TestStudentsEndpoint(t *testing.T) {
	server, registry, coordinator, _ := newTestServer(t)

	if err := registry.Register(websocket.NewClient("student-1", types.RoleStudent, discardTransport{})); err != nil {
		t.Fatalf("Failed to register student: %v", err)
	}
	if err := registry.Register(websocket.NewClient("teacher-1", types.RoleInstructor, discardTransport{})); err != nil {
		t.Fatalf("Failed to register instructor: %v", err)
	}

	coordinator.StartTest(twoQuestionTest())
	coordinator.SubmitAnswer("student-1", types.Answer{QuestionID: 1, Option: "A"})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students", nil))

	var response StudentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode students response: %v", err)
	}
	if len(response.Students) != 1 {
		t.Fatalf("Expected 1 student, got %d", len(response.Students))
	}
	if response.Students[0].ID != "student-1" {
		t.Errorf("Expected student-1, got %s", response.Students[0].ID)
	}
	if response.Students[0].AnswerCount != 1 {
		t.Errorf("Expected 1 answer, got %d", response.Students[0].AnswerCount)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, registry, _, _ := newTestServer(t)

	if err := registry.Register(websocket.NewClient("student-1", types.RoleStudent, discardTransport{})); err != nil {
		t.Fatalf("Failed to register student: %v", err)
	}

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if response.Status != "healthy" {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
	if response.Store != "healthy" {
		t.Errorf("Expected healthy store, got %s", response.Store)
	}
	if response.Connections["students"] != 1 {
		t.Errorf("Expected 1 student connection, got %d", response.Connections["students"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	for _, path := range []string{"/api/session", "/api/tests", "/api/students"} {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405 for POST %s, got %d", path, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for preflight, got %d", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Expected wildcard CORS origin, got %s", origin)
	}
}
