package hub

import (
	"sync"
	"time"
)

// messagesPerWindow caps how many commands one connection may send per
// minute. Over-limit frames are dropped like any other protocol error.
const (
	messagesPerWindow = 100
	limitWindow       = time.Minute
)

// RateLimiter implements per-connection rate limiting with a minute-based
// reset window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimit
}

type clientLimit struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter creates a rate limiter with empty tracking state.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimit),
	}
}

// Allow reports whether the connection may send another message in the
// current window.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.clients[clientID]
	if !exists {
		rl.clients[clientID] = &clientLimit{messageCount: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= limitWindow {
		limit.messageCount = 1
		limit.windowStart = now
		return true
	}

	if limit.messageCount >= messagesPerWindow {
		return false
	}

	limit.messageCount++
	return true
}

// Cleanup removes entries idle for several windows so departed connections
// don't accumulate state.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for clientID, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*limitWindow {
			delete(rl.clients, clientID)
		}
	}
}
