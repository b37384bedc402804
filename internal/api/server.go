// Package api exposes read-only HTTP monitoring endpoints alongside the
// WebSocket surface: session state, stored tests, and connected participants.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"audiotest/internal/session"
	"audiotest/internal/websocket"
	"audiotest/pkg/interfaces"
	"audiotest/pkg/types"
)

// SessionMonitor is the narrow coordinator surface the API needs.
type SessionMonitor interface {
	Snapshot() session.Snapshot
}

// Registry is the narrow registry surface the API needs, kept as a local
// interface to avoid coupling to the full registry implementation.
type Registry interface {
	Students() []*websocket.Client
	Stats() map[string]int
}

// Server is a pure interface layer: HTTP handling and JSON serialization
// only, no session logic.
type Server struct {
	monitor  SessionMonitor
	store    interfaces.TestStore
	registry Registry
	router   *http.ServeMux
}

// NewServer wires the monitoring endpoints. store may be nil when
// persistence is disabled; /api/tests then reports an empty list.
func NewServer(monitor SessionMonitor, store interfaces.TestStore, registry Registry) *Server {
	s := &Server{
		monitor:  monitor,
		store:    store,
		registry: registry,
		router:   http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/session", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSession))))
	s.router.Handle("/api/tests", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleTests))))
	s.router.Handle("/api/students", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStudents))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type TestsResponse struct {
	Tests []*types.Test `json:"tests"`
}

type StudentResponse struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
	AnswerCount int       `json:"answerCount"`
}

type StudentsResponse struct {
	Students []StudentResponse `json:"students"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Store       string         `json:"store"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GET /api/session - current session state snapshot
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	json.NewEncoder(w).Encode(s.monitor.Snapshot())
}

// GET /api/tests - persisted test definitions, most recent first
func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tests := []*types.Test{}
	if s.store != nil {
		stored, err := s.store.ListTests(r.Context())
		if err != nil {
			s.sendError(w, "Failed to list tests", http.StatusInternalServerError)
			return
		}
		if stored != nil {
			tests = stored
		}
	}

	json.NewEncoder(w).Encode(TestsResponse{Tests: tests})
}

// GET /api/students - connected participants with answer counts
func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clients := s.registry.Students()
	students := make([]StudentResponse, len(clients))
	for i, client := range clients {
		students[i] = StudentResponse{
			ID:          client.ID(),
			ConnectedAt: client.JoinedAt(),
			AnswerCount: len(client.AnswerHistory()),
		}
	}

	json.NewEncoder(w).Encode(StudentsResponse{Students: students})
}

// GET /health - component health with connection statistics
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	storeStatus := "healthy"

	if s.store == nil {
		storeStatus = "disabled"
	} else if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		storeStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Store:       storeStatus,
		Connections: s.registry.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// corsMiddleware allows all origins; the monitoring surface is read-only.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}
