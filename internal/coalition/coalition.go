// Package coalition manages capacity-bounded agent coalitions.
//
// Lifecycle: proposed (proposer auto-included) -> active while members
// exist -> removed only on explicit disband. Membership may legitimately
// dip below minMembers; that is policy, not an error.
package coalition

import (
	"errors"
	"sync"
	"time"

	"github.com/babylon-market/a2a/internal/idgen"
)

var (
	ErrNotFound     = errors.New("coalition not found")
	ErrFull         = errors.New("coalition is at maximum capacity")
	ErrNotProposer  = errors.New("only the proposer may disband a coalition")
	ErrInvalidLimit = errors.New("maxMembers must be >= minMembers and >= 1")
	ErrEmptyName    = errors.New("coalition name must not be empty")
)

// Coalition is a named group of agents collaborating on a target market.
type Coalition struct {
	ID           string    `json:"coalitionId"`
	Proposer     string    `json:"proposer"`
	Name         string    `json:"name"`
	TargetMarket string    `json:"targetMarket"`
	Strategy     string    `json:"strategy"`
	MinMembers   int       `json:"minMembers"`
	MaxMembers   int       `json:"maxMembers"`
	Members      []string  `json:"members"` // join order, proposer first
	CreatedAt    time.Time `json:"createdAt"`
}

// HasMember reports whether the agent is currently a member.
func (c *Coalition) HasMember(agentID string) bool {
	for _, m := range c.Members {
		if m == agentID {
			return true
		}
	}
	return false
}

// Proposal carries the parameters for a new coalition.
type Proposal struct {
	Name         string `json:"name"`
	TargetMarket string `json:"targetMarket"`
	Strategy     string `json:"strategy"`
	MinMembers   int    `json:"minMembers"`
	MaxMembers   int    `json:"maxMembers"`
}

// Registry is the process-wide coalition table.
type Registry struct {
	mu         sync.RWMutex
	coalitions map[string]*Coalition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{coalitions: make(map[string]*Coalition)}
}

// Propose creates a coalition with the proposer as its first member.
func (r *Registry) Propose(proposerID string, p Proposal) (*Coalition, error) {
	if p.Name == "" {
		return nil, ErrEmptyName
	}
	if p.MaxMembers < 1 || p.MaxMembers < p.MinMembers {
		return nil, ErrInvalidLimit
	}

	c := &Coalition{
		ID:           idgen.WithPrefix("coal_"),
		Proposer:     proposerID,
		Name:         p.Name,
		TargetMarket: p.TargetMarket,
		Strategy:     p.Strategy,
		MinMembers:   p.MinMembers,
		MaxMembers:   p.MaxMembers,
		Members:      []string{proposerID},
		CreatedAt:    time.Now(),
	}

	r.mu.Lock()
	r.coalitions[c.ID] = c
	r.mu.Unlock()

	return c.snapshot(), nil
}

// Join adds the agent to the coalition. Joining a coalition the agent is
// already in is idempotent; joining a full coalition fails.
func (r *Registry) Join(agentID, coalitionID string) (*Coalition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.coalitions[coalitionID]
	if !ok {
		return nil, ErrNotFound
	}
	if c.HasMember(agentID) {
		return c.snapshot(), nil
	}
	if len(c.Members) >= c.MaxMembers {
		return nil, ErrFull
	}
	c.Members = append(c.Members, agentID)
	return c.snapshot(), nil
}

// Leave removes the agent from the coalition. Leaving a coalition the agent
// is not in still succeeds. Membership dropping to zero does not dissolve
// the coalition; only Disband removes it.
func (r *Registry) Leave(agentID, coalitionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.coalitions[coalitionID]
	if !ok {
		return ErrNotFound
	}
	for i, m := range c.Members {
		if m == agentID {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			break
		}
	}
	return nil
}

// Disband removes the coalition. Only the recorded proposer may disband,
// even after they have left the membership.
func (r *Registry) Disband(agentID, coalitionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.coalitions[coalitionID]
	if !ok {
		return ErrNotFound
	}
	if c.Proposer != agentID {
		return ErrNotProposer
	}
	delete(r.coalitions, coalitionID)
	return nil
}

// Get returns a coalition by ID.
func (r *Registry) Get(coalitionID string) (*Coalition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coalitions[coalitionID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.snapshot(), nil
}

// ForAgent returns every coalition the agent is currently a member of,
// by scanning membership.
func (r *Registry) ForAgent(agentID string) []*Coalition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Coalition
	for _, c := range r.coalitions {
		if c.HasMember(agentID) {
			out = append(out, c.snapshot())
		}
	}
	return out
}

// snapshot returns a copy safe to hand to callers outside the lock.
func (c *Coalition) snapshot() *Coalition {
	cp := *c
	cp.Members = append([]string(nil), c.Members...)
	return &cp
}
