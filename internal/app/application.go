// Package app wires the components into a runnable server and owns their
// startup and shutdown order.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"audiotest/internal/api"
	"audiotest/internal/config"
	"audiotest/internal/hub"
	"audiotest/internal/router"
	"audiotest/internal/session"
	"audiotest/internal/store"
	"audiotest/internal/websocket"
)

// Application coordinates all system components.
type Application struct {
	config      *config.Config
	store       *store.Store
	registry    *websocket.Registry
	coordinator *session.Coordinator
	hub         *hub.Hub
	apiServer   *api.Server
	wsHandler   *websocket.Handler
	httpServer  *http.Server
}

// NewApplication initializes all components in dependency order:
// Store → Registry → Router → Coordinator → Hub → API → Handler → HTTP.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	testStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test store: %w", err)
	}

	registry := websocket.NewRegistry()
	messageRouter := router.NewRouter(registry)
	coordinator := session.NewCoordinator(registry, messageRouter, testStore)
	messageHub := hub.NewHub(registry, coordinator)
	apiServer := api.NewServer(coordinator, testStore, registry)
	wsHandler := websocket.NewHandler(messageHub, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		store:       testStore,
		registry:    registry,
		coordinator: coordinator,
		hub:         messageHub,
		apiServer:   apiServer,
		wsHandler:   wsHandler,
		httpServer:  httpServer,
	}, nil
}

// Start begins serving. The hub starts first so connections accepted by the
// HTTP server always find ingress processing running.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting audiotest server on %s", app.httpServer.Addr)

	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Verify the listener came up before reporting success.
	select {
	case err := <-serverErrCh:
		app.hub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Audiotest server started")
		return nil
	case <-ctx.Done():
		app.hub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP → Hub → Store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down audiotest server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.hub.Stop(); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}

	if err := app.store.Close(); err != nil {
		log.Printf("Test store shutdown error: %v", err)
	}

	log.Printf("Audiotest server shutdown complete")
	return nil
}

// GetAddr returns the configured listen address.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}

// Handler returns the full HTTP handler, WebSocket endpoint included. Used by
// in-process test harnesses that serve the application through httptest.
func (app *Application) Handler() http.Handler {
	return app.httpServer.Handler
}
