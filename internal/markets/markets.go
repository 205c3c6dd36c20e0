// Package markets maintains the market-subscription registry.
//
// Subscriptions are plain set membership: marketId -> {agentId, ...}.
// Agents are referenced by ID only; disconnects never cascade here.
package markets

import (
	"sort"
	"sync"
)

// SubscriptionRegistry maps markets to subscriber sets.
type SubscriptionRegistry struct {
	mu   sync.RWMutex
	subs map[string]map[string]struct{} // marketId -> set of agentIds
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		subs: make(map[string]map[string]struct{}),
	}
}

// Subscribe adds the agent to the market's subscriber set. Idempotent.
func (r *SubscriptionRegistry) Subscribe(agentID, marketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[marketID]
	if !ok {
		set = make(map[string]struct{})
		r.subs[marketID] = set
	}
	set[agentID] = struct{}{}
}

// Unsubscribe removes the agent from the market's subscriber set. The exact
// inverse of Subscribe: removing an absent member is a no-op.
func (r *SubscriptionRegistry) Unsubscribe(agentID, marketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[marketID]
	if !ok {
		return
	}
	delete(set, agentID)
	if len(set) == 0 {
		delete(r.subs, marketID)
	}
}

// Subscribers returns the agent IDs subscribed to a market, sorted for
// stable output. Markets with no subscribers return an empty slice.
func (r *SubscriptionRegistry) Subscribers(marketID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.subs[marketID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports set membership.
func (r *SubscriptionRegistry) IsSubscribed(agentID, marketID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[marketID][agentID]
	return ok
}
