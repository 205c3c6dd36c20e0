package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) *Limiter {
	return New(Config{Limit: limit, Window: window, CleanupInterval: time.Hour})
}

func TestAllow_WithinLimit(t *testing.T) {
	l := newTestLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("agent-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("agent-1") {
		t.Fatal("request over the limit should be rejected")
	}
}

func TestAllow_RejectionCarriesNoPenalty(t *testing.T) {
	l := newTestLimiter(2, time.Minute)
	defer l.Stop()

	l.Allow("agent-1")
	l.Allow("agent-1")

	// Hammering an exhausted window must not extend it or go negative.
	for i := 0; i < 10; i++ {
		if l.Allow("agent-1") {
			t.Fatal("exhausted window should keep rejecting")
		}
	}
	if got := l.Remaining("agent-1"); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}
}

func TestAllow_PerAgentIsolation(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	defer l.Stop()

	if !l.Allow("agent-1") {
		t.Fatal("first request for agent-1 should pass")
	}
	if !l.Allow("agent-2") {
		t.Fatal("agent-2 has its own window")
	}
	if l.Allow("agent-1") {
		t.Fatal("agent-1 window is exhausted")
	}
}

func TestAllow_WindowResets(t *testing.T) {
	l := newTestLimiter(1, 5*time.Millisecond)
	defer l.Stop()

	if !l.Allow("agent-1") {
		t.Fatal("first request should pass")
	}
	if l.Allow("agent-1") {
		t.Fatal("second request inside window should be rejected")
	}

	time.Sleep(10 * time.Millisecond)

	if !l.Allow("agent-1") {
		t.Fatal("window should have reset")
	}
}

func TestRemaining(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	defer l.Stop()

	if got := l.Remaining("agent-1"); got != 5 {
		t.Fatalf("untouched agent Remaining = %d, want 5", got)
	}
	l.Allow("agent-1")
	l.Allow("agent-1")
	if got := l.Remaining("agent-1"); got != 3 {
		t.Fatalf("Remaining = %d, want 3", got)
	}
}
