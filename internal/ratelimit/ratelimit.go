// Package ratelimit provides per-agent message rate limiting for the A2A router.
//
// The limiter uses a fixed window: each agent gets a counter and a window
// start; the counter resets when the window elapses. A request rejected by
// the limiter does not increment the counter, so an exhausted window carries
// no penalty beyond the rejection itself.
package ratelimit

import (
	"sync"
	"time"
)

// Config configures rate limiting.
type Config struct {
	// Limit is the max requests per agent per window.
	Limit int
	// Window is the fixed window length.
	Window time.Duration
	// CleanupInterval is how often to drop idle agent entries.
	CleanupInterval time.Duration
}

// DefaultConfig returns the documented external contract: 100 per minute.
func DefaultConfig() Config {
	return Config{
		Limit:           100,
		Window:          time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Limiter tracks request counts by agent ID.
type Limiter struct {
	cfg    Config
	mu     sync.Mutex
	agents map[string]*window
	stop   chan struct{}
	once   sync.Once
}

type window struct {
	count   int
	started time.Time
}

// New creates a rate limiter and starts its cleanup goroutine.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:    cfg,
		agents: make(map[string]*window),
		stop:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// cleanup removes stale entries periodically.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-2 * l.cfg.Window)
			for id, w := range l.agents {
				if w.started.Before(cutoff) {
					delete(l.agents, id)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Allow checks whether the agent may send another request, incrementing its
// window counter when allowed.
func (l *Limiter) Allow(agentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.agents[agentID]
	if !exists || now.Sub(w.started) >= l.cfg.Window {
		l.agents[agentID] = &window{count: 1, started: now}
		return true
	}

	if w.count >= l.cfg.Limit {
		return false
	}
	w.count++
	return true
}

// Remaining reports how many requests the agent has left in its current window.
func (l *Limiter) Remaining(agentID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.agents[agentID]
	if !exists || time.Since(w.started) >= l.cfg.Window {
		return l.cfg.Limit
	}
	if w.count >= l.cfg.Limit {
		return 0
	}
	return l.cfg.Limit - w.count
}
