// Package interfaces declares the narrow contracts the coordinator core uses
// to reach its excluded subsystems. The core never performs file or process
// I/O itself; it only calls through these.
package interfaces

import (
	"context"

	"audiotest/pkg/types"
)

// TestStore persists instructor-supplied test definitions between sessions.
type TestStore interface {
	// PersistTest saves a test definition, replacing any prior version with
	// the same id.
	PersistTest(ctx context.Context, test *types.Test) error

	// LoadTest returns the most recently persisted test definition, or
	// ErrTestNotFound when nothing has been persisted yet.
	LoadTest(ctx context.Context) (*types.Test, error)

	// ListTests returns all persisted test definitions, most recent first.
	ListTests(ctx context.Context) ([]*types.Test, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// AudioPlayer plays question audio on the local endpoint. Playback is local
// by design; audio is never streamed through the coordinator.
type AudioPlayer interface {
	// PlayAudio starts playback of the file at path.
	PlayAudio(path string) error

	// StopAudio stops any current playback.
	StopAudio() error
}
