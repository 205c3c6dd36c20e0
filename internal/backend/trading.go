package backend

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Market is one binary prediction market. YES price is tracked in basis
// points (0-10000); the NO price is its complement.
type Market struct {
	ID        string    `json:"marketId"`
	Question  string    `json:"question"`
	YesBps    int64     `json:"yesBps"`
	Volume    int64     `json:"volume"` // lifetime stake, minor units
	CreatedAt time.Time `json:"createdAt"`
}

// Position is an agent's holding in one market.
type Position struct {
	MarketID  string `json:"marketId"`
	YesShares int64  `json:"yesShares"`
	NoShares  int64  `json:"noShares"`
	CostBasis int64  `json:"costBasis"` // minor units spent
}

// Trade is one executed buy or sell.
type Trade struct {
	ID        string    `json:"tradeId"`
	MarketID  string    `json:"marketId"`
	Side      string    `json:"side"` // "buy" or "sell"
	Outcome   string    `json:"outcome"`
	Shares    int64     `json:"shares"`
	Amount    int64     `json:"amount"` // minor units
	PriceBps  int64     `json:"priceBps"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *Memory) getMarkets(call Call) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Market, 0, len(m.markets))
	for _, mk := range m.markets {
		cp := *mk
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return map[string]any{"markets": out}, nil
}

func (m *Memory) getMarketData(call Call) (any, error) {
	id := strParam(call.Params, "marketId")
	if id == "" {
		// Agents poll this with no marketId to discover the board.
		return m.getMarkets(call)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	mk, ok := m.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	cp := *mk
	return &cp, nil
}

func (m *Memory) getMarketPrice(call Call) (any, error) {
	id := strParam(call.Params, "marketId")
	m.mu.RLock()
	defer m.mu.RUnlock()

	mk, ok := m.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	return map[string]any{
		"marketId": mk.ID,
		"yesBps":   mk.YesBps,
		"noBps":    10000 - mk.YesBps,
	}, nil
}

// getPredictions lists markets the agent can trade, same payload as
// getMarkets plus the agent's positions where present.
func (m *Memory) getPredictions(call Call) (any, error) {
	markets, err := m.getMarkets(call)
	if err != nil {
		return nil, err
	}
	positions, _ := m.getPositions(call)
	return map[string]any{
		"markets":   markets.(map[string]any)["markets"],
		"positions": positions.(map[string]any)["positions"],
	}, nil
}

func (m *Memory) getPrediction(call Call) (any, error) {
	return m.getMarketData(call)
}

func (m *Memory) buyShares(call Call) (any, error) {
	return m.trade(call, "buy")
}

func (m *Memory) sellShares(call Call) (any, error) {
	return m.trade(call, "sell")
}

func (m *Memory) trade(call Call, side string) (any, error) {
	marketID := strParam(call.Params, "marketId")
	outcome := strings.ToUpper(strParam(call.Params, "outcome"))
	amt := intParam(call.Params, "amount")

	if outcome != "YES" && outcome != "NO" {
		return nil, fmt.Errorf("%w: outcome must be YES or NO", ErrBadParams)
	}
	if amt <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBadParams)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mk, ok := m.markets[marketID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, marketID)
	}

	priceBps := mk.YesBps
	if outcome == "NO" {
		priceBps = 10000 - mk.YesBps
	}
	if priceBps <= 0 {
		priceBps = 1
	}
	shares := amt * 10000 / priceBps

	balance := m.balanceLocked(call.AgentID)
	pos := m.positionLocked(call.AgentID, marketID)

	if side == "buy" {
		if balance < amt {
			return nil, fmt.Errorf("%w: insufficient balance", ErrBadParams)
		}
		m.balances[call.AgentID] = balance - amt
		pos.CostBasis += amt
		if outcome == "YES" {
			pos.YesShares += shares
		} else {
			pos.NoShares += shares
		}
	} else {
		held := pos.YesShares
		if outcome == "NO" {
			held = pos.NoShares
		}
		if held < shares {
			return nil, fmt.Errorf("%w: insufficient shares", ErrBadParams)
		}
		m.balances[call.AgentID] = balance + amt
		if outcome == "YES" {
			pos.YesShares -= shares
		} else {
			pos.NoShares -= shares
		}
	}

	mk.Volume += amt

	tr := &Trade{
		ID:        genID("trd_"),
		MarketID:  marketID,
		Side:      side,
		Outcome:   outcome,
		Shares:    shares,
		Amount:    amt,
		PriceBps:  priceBps,
		CreatedAt: time.Now(),
	}
	m.trades[call.AgentID] = append([]*Trade{tr}, m.trades[call.AgentID]...)

	return map[string]any{
		"tradeId":  tr.ID,
		"marketId": marketID,
		"side":     side,
		"outcome":  outcome,
		"shares":   shares,
		"amount":   amt,
		"priceBps": priceBps,
		"balance":  m.balances[call.AgentID],
	}, nil
}

func (m *Memory) getPositions(call Call) (any, error) {
	agentID := strParam(call.Params, "agentId")
	if agentID == "" {
		agentID = call.AgentID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Position, 0)
	for _, pos := range m.position[agentID] {
		cp := *pos
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return map[string]any{"agentId": agentID, "positions": out}, nil
}

func (m *Memory) getBalance(call Call) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"agentId": call.AgentID,
		"balance": m.balanceLocked(call.AgentID),
	}, nil
}

func (m *Memory) getPortfolio(call Call) (any, error) {
	m.mu.Lock()
	balance := m.balanceLocked(call.AgentID)
	m.mu.Unlock()

	positions, _ := m.getPositions(call)
	return map[string]any{
		"agentId":   call.AgentID,
		"balance":   balance,
		"positions": positions.(map[string]any)["positions"],
	}, nil
}

func (m *Memory) getTradeHistory(call Call) (any, error) {
	limit := limitParam(call.Params, 50, 200)

	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.trades[call.AgentID]
	if len(history) > limit {
		history = history[:limit]
	}
	out := make([]*Trade, len(history))
	for i, t := range history {
		cp := *t
		out[i] = &cp
	}
	return map[string]any{"trades": out}, nil
}

// balanceLocked returns the agent's balance, crediting the starting
// balance on first touch. Caller holds m.mu.
func (m *Memory) balanceLocked(agentID string) int64 {
	if _, ok := m.balances[agentID]; !ok {
		m.balances[agentID] = StartingBalance
	}
	return m.balances[agentID]
}

// positionLocked returns the agent's position in a market, creating it if
// missing. Caller holds m.mu.
func (m *Memory) positionLocked(agentID, marketID string) *Position {
	byMarket, ok := m.position[agentID]
	if !ok {
		byMarket = make(map[string]*Position)
		m.position[agentID] = byMarket
	}
	pos, ok := byMarket[marketID]
	if !ok {
		pos = &Position{MarketID: marketID}
		byMarket[marketID] = pos
	}
	return pos
}
