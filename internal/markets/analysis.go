package markets

import (
	"sync"
	"time"

	"github.com/babylon-market/a2a/internal/idgen"
)

// Analysis is a shared market analysis blob, visible to all agents.
type Analysis struct {
	ID        string         `json:"id"`
	MarketID  string         `json:"marketId"`
	AgentID   string         `json:"agentId"`
	Summary   string         `json:"summary"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// maxAnalysesPerMarket bounds memory; oldest entries are dropped first.
const maxAnalysesPerMarket = 100

// AnalysisRegistry stores shared analyses keyed by market, newest first.
type AnalysisRegistry struct {
	mu       sync.RWMutex
	byMarket map[string][]*Analysis
}

// NewAnalysisRegistry creates an empty registry.
func NewAnalysisRegistry() *AnalysisRegistry {
	return &AnalysisRegistry{byMarket: make(map[string][]*Analysis)}
}

// Share records an analysis and returns it with its generated ID.
func (r *AnalysisRegistry) Share(agentID, marketID, summary string, data map[string]any) *Analysis {
	a := &Analysis{
		ID:        idgen.WithPrefix("anl_"),
		MarketID:  marketID,
		AgentID:   agentID,
		Summary:   summary,
		Data:      data,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	list := append([]*Analysis{a}, r.byMarket[marketID]...)
	if len(list) > maxAnalysesPerMarket {
		list = list[:maxAnalysesPerMarket]
	}
	r.byMarket[marketID] = list
	return a
}

// ForMarket returns analyses for a market, newest first. Unknown markets
// return an empty slice.
func (r *AnalysisRegistry) ForMarket(marketID string) []*Analysis {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byMarket[marketID]
	out := make([]*Analysis, len(list))
	copy(out, list)
	return out
}
