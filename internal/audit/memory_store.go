package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore implements Recorder with in-memory storage.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
	nextID atomic.Int64
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	cp.ID = s.nextID.Add(1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.events = append(s.events, &cp)
	return nil
}

// Events returns a copy of recorded events, for operators and tests.
func (s *MemoryStore) Events() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Event, len(s.events))
	for i, e := range s.events {
		cp := *e
		out[i] = &cp
	}
	return out
}

// ByAgent returns recorded events for one agent.
func (s *MemoryStore) ByAgent(agentID string) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.events {
		if e.AgentID == agentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}
