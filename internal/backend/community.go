package backend

import (
	"fmt"
	"sort"
	"time"
)

// Pool is a shared trading pool agents can join.
type Pool struct {
	ID         string              `json:"poolId"`
	Name       string              `json:"name"`
	MaxMembers int                 `json:"maxMembers"`
	Members    map[string]struct{} `json:"-"`
	CreatedAt  time.Time           `json:"createdAt"`
}

type poolView struct {
	ID          string    `json:"poolId"`
	Name        string    `json:"name"`
	MaxMembers  int       `json:"maxMembers"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *Pool) view() *poolView {
	return &poolView{
		ID:          p.ID,
		Name:        p.Name,
		MaxMembers:  p.MaxMembers,
		MemberCount: len(p.Members),
		CreatedAt:   p.CreatedAt,
	}
}

// Referral tracks one agent's referral code and who applied it.
type Referral struct {
	AgentID   string
	Code      string
	Referred  []string // agents that applied this code
	AppliedBy string   // code this agent applied, if any
}

// Endorsement is one agent vouching for another.
type Endorsement struct {
	ID        string    `json:"endorsementId"`
	From      string    `json:"from"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// endorsementWeight is the score bump per received endorsement.
const endorsementWeight = 0.5

// ---- pools ----

func (m *Memory) getPools(call Call) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*poolView, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return map[string]any{"pools": out}, nil
}

func (m *Memory) getPool(call Call) (any, error) {
	id := strParam(call.Params, "poolId")
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return p.view(), nil
}

func (m *Memory) joinPool(call Call) (any, error) {
	id := strParam(call.Params, "poolId")
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	if _, member := p.Members[call.AgentID]; member {
		return map[string]any{"poolId": id, "joined": true}, nil
	}
	if len(p.Members) >= p.MaxMembers {
		return nil, fmt.Errorf("%w: pool %s is full", ErrBadParams, id)
	}
	p.Members[call.AgentID] = struct{}{}
	return map[string]any{"poolId": id, "joined": true}, nil
}

func (m *Memory) leavePool(call Call) (any, error) {
	id := strParam(call.Params, "poolId")
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	delete(p.Members, call.AgentID)
	return map[string]any{"poolId": id, "joined": false}, nil
}

func (m *Memory) getPoolMembers(call Call) (any, error) {
	id := strParam(call.Params, "poolId")
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	members := make([]string, 0, len(p.Members))
	for id := range p.Members {
		members = append(members, id)
	}
	sort.Strings(members)
	return map[string]any{"poolId": id, "members": members}, nil
}

// ---- leaderboard ----

type leaderboardEntry struct {
	Rank    int    `json:"rank"`
	AgentID string `json:"agentId"`
	Balance int64  `json:"balance"`
	PnL     int64  `json:"pnl"`
}

// rankedLocked returns agents ordered by balance, best first. Caller
// holds m.mu.
func (m *Memory) rankedLocked() []*leaderboardEntry {
	out := make([]*leaderboardEntry, 0, len(m.balances))
	for agentID, bal := range m.balances {
		out = append(out, &leaderboardEntry{
			AgentID: agentID,
			Balance: bal,
			PnL:     bal - StartingBalance,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].AgentID < out[j].AgentID
	})
	for i, e := range out {
		e.Rank = i + 1
	}
	return out
}

func (m *Memory) getLeaderboard(call Call) (any, error) {
	limit := limitParam(call.Params, 10, 100)
	m.mu.RLock()
	defer m.mu.RUnlock()
	ranked := m.rankedLocked()
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return map[string]any{"leaderboard": ranked}, nil
}

func (m *Memory) getRank(call Call) (any, error) {
	agentID := strParam(call.Params, "agentId")
	if agentID == "" {
		agentID = call.AgentID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.rankedLocked() {
		if e.AgentID == agentID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no trading activity", ErrAgentNotFound, agentID)
}

// ---- referrals ----

func (m *Memory) referralLocked(agentID string) *Referral {
	r, ok := m.referrals[agentID]
	if !ok {
		r = &Referral{
			AgentID: agentID,
			Code:    genID("ref_"),
		}
		m.referrals[agentID] = r
	}
	return r
}

func (m *Memory) getReferralCode(call Call) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.referralLocked(call.AgentID)
	return map[string]any{"code": r.Code}, nil
}

func (m *Memory) applyReferralCode(call Call) (any, error) {
	code := strParam(call.Params, "code")
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrBadParams)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	self := m.referralLocked(call.AgentID)
	if self.AppliedBy != "" {
		return nil, fmt.Errorf("%w: referral code already applied", ErrBadParams)
	}
	if self.Code == code {
		return nil, fmt.Errorf("%w: cannot apply your own code", ErrBadParams)
	}
	for _, r := range m.referrals {
		if r.Code == code {
			self.AppliedBy = code
			r.Referred = append(r.Referred, call.AgentID)
			return map[string]any{"applied": true, "referrer": r.AgentID}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown referral code", ErrBadParams)
}

func (m *Memory) getReferrals(call Call) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.referralLocked(call.AgentID)
	referred := append([]string{}, r.Referred...)
	return map[string]any{"code": r.Code, "referred": referred}, nil
}

// ---- reputation ----

func (m *Memory) getReputation(call Call) (any, error) {
	agentID := strParam(call.Params, "agentId")
	if agentID == "" {
		agentID = call.AgentID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	score := m.repScores[agentID] + endorsementWeight*float64(len(m.endorse[agentID]))
	return map[string]any{
		"agentId":      agentID,
		"score":        score,
		"endorsements": len(m.endorse[agentID]),
	}, nil
}

func (m *Memory) endorseAgent(call Call) (any, error) {
	target := strParam(call.Params, "agentId")
	if target == "" || target == call.AgentID {
		return nil, fmt.Errorf("%w: cannot endorse yourself", ErrBadParams)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.endorse[target] {
		if e.From == call.AgentID {
			return nil, fmt.Errorf("%w: already endorsed %s", ErrBadParams, target)
		}
	}
	e := &Endorsement{
		ID:        genID("end_"),
		From:      call.AgentID,
		Reason:    strParam(call.Params, "reason"),
		CreatedAt: time.Now(),
	}
	m.endorse[target] = append(m.endorse[target], e)
	return map[string]any{"agentId": target, "endorsements": len(m.endorse[target])}, nil
}

func (m *Memory) getEndorsements(call Call) (any, error) {
	agentID := strParam(call.Params, "agentId")
	if agentID == "" {
		agentID = call.AgentID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.endorse[agentID]
	out := make([]*Endorsement, len(list))
	for i, e := range list {
		cp := *e
		out[i] = &cp
	}
	return map[string]any{"agentId": agentID, "endorsements": out}, nil
}

// ---- trending ----

func (m *Memory) getTrendingMarkets(call Call) (any, error) {
	limit := limitParam(call.Params, 5, 20)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Market, 0, len(m.markets))
	for _, mk := range m.markets {
		cp := *mk
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return map[string]any{"markets": out}, nil
}

func (m *Memory) getTrendingPosts(call Call) (any, error) {
	limit := limitParam(call.Params, 5, 20)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*postView, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p.view())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LikeCount != out[j].LikeCount {
			return out[i].LikeCount > out[j].LikeCount
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return map[string]any{"posts": out}, nil
}

func (m *Memory) getTrendingAgents(call Call) (any, error) {
	limit := limitParam(call.Params, 5, 20)
	m.mu.RLock()
	defer m.mu.RUnlock()
	ranked := m.rankedLocked()
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return map[string]any{"agents": ranked}, nil
}
