package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/babylon-market/a2a/internal/audit"
	"github.com/babylon-market/a2a/internal/backend"
	"github.com/babylon-market/a2a/internal/coalition"
	"github.com/babylon-market/a2a/internal/payments"
	"github.com/babylon-market/a2a/internal/session"
	"github.com/babylon-market/a2a/internal/validation"
)

// Server identity reported by getServerInfo.
const (
	serverName      = "babylon-a2a"
	serverVersion   = "1.1.0"
	protocolVersion = "2.0"
)

// callCtx carries one request through a handler.
type callCtx struct {
	agentID string
	conn    *session.AgentConnection // nil when the method is auth-exempt and the agent has no session
	params  map[string]any
}

// handlerFunc is one registry-owned method implementation.
type handlerFunc func(ctx context.Context, call *callCtx) (any, error)

// registerHandlers wires every registry-owned method.
func (r *Router) registerHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"a2a.ping":            r.handlePing,
		"a2a.authenticate":    r.handleAuthenticate,
		"a2a.getCapabilities": r.handleGetCapabilities,
		"a2a.listMethods":     r.handleListMethods,
		"a2a.getServerInfo":   r.handleGetServerInfo,
		"a2a.getAgentInfo":    r.handleGetAgentInfo,

		"a2a.subscribeMarket":      r.handleSubscribeMarket,
		"a2a.unsubscribeMarket":    r.handleUnsubscribeMarket,
		"a2a.getMarketSubscribers": r.handleGetMarketSubscribers,

		"a2a.proposeCoalition":   r.handleProposeCoalition,
		"a2a.joinCoalition":      r.handleJoinCoalition,
		"a2a.leaveCoalition":     r.handleLeaveCoalition,
		"a2a.disbandCoalition":   r.handleDisbandCoalition,
		"a2a.getCoalition":       r.handleGetCoalition,
		"a2a.getAgentCoalitions": r.handleGetAgentCoalitions,

		"a2a.shareAnalysis":     r.handleShareAnalysis,
		"a2a.getSharedAnalyses": r.handleGetSharedAnalyses,

		"a2a.createPaymentRequest": r.handleCreatePaymentRequest,
		"a2a.getPaymentRequest":    r.handleGetPaymentRequest,
		"a2a.cancelPaymentRequest": r.handleCancelPaymentRequest,
		"a2a.submitPaymentProof":   r.handleSubmitPaymentProof,
		"a2a.getPaymentStatus":     r.handleGetPaymentStatus,
		"a2a.getPendingPayments":   r.handleGetPendingPayments,
		"a2a.getPaymentStats":      r.handleGetPaymentStats,
	}
}

// ---- system ----

func (r *Router) handlePing(_ context.Context, _ *callCtx) (any, error) {
	return map[string]any{"pong": true, "timestamp": time.Now().UnixMilli()}, nil
}

func (r *Router) handleAuthenticate(ctx context.Context, call *callCtx) (any, error) {
	address := validation.SanitizeAddress(pStr(call.params, "address"))
	if !validation.IsValidEthAddress(address) {
		return nil, fmt.Errorf("%w: address must be a 0x-prefixed 20-byte hex address", backend.ErrBadParams)
	}
	tokenID := pInt(call.params, "tokenId")

	var caps session.Capabilities
	if raw, ok := call.params["capabilities"]; ok {
		// Round-trip through JSON; the schema already bounded the shape.
		if b, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(b, &caps)
		}
	}

	conn, sessionToken, err := r.sessions.Register(call.agentID, address, tokenID, caps)
	if err != nil {
		return nil, err
	}

	r.record(ctx, &audit.Event{
		AgentID:   call.agentID,
		EventType: audit.EventSessionOpened,
		Method:    "a2a.authenticate",
	})

	return map[string]any{
		"authenticated": true,
		"agentId":       conn.AgentID,
		"sessionToken":  sessionToken,
		"expiresIn":     int64(r.sessionTTL.Seconds()),
	}, nil
}

func (r *Router) handleGetCapabilities(_ context.Context, _ *callCtx) (any, error) {
	return map[string]any{
		"protocol":   protocolVersion,
		"categories": Categories(),
		"features": map[string]bool{
			featureX402:       r.cfg.X402Enabled,
			featureCoalitions: r.cfg.CoalitionsEnabled,
		},
	}, nil
}

func (r *Router) handleListMethods(_ context.Context, _ *callCtx) (any, error) {
	return map[string]any{
		"methods": MethodNames(),
		"count":   MethodCount,
	}, nil
}

func (r *Router) handleGetServerInfo(_ context.Context, _ *callCtx) (any, error) {
	return map[string]any{
		"name":            serverName,
		"version":         serverVersion,
		"protocolVersion": protocolVersion,
		"methodCount":     MethodCount,
		"connections":     r.sessions.Count(),
	}, nil
}

func (r *Router) handleGetAgentInfo(_ context.Context, call *callCtx) (any, error) {
	conn, err := r.sessions.Get(pStr(call.params, "agentId"))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ---- subscriptions ----

func (r *Router) handleSubscribeMarket(_ context.Context, call *callCtx) (any, error) {
	marketID := pStr(call.params, "marketId")
	r.subs.Subscribe(call.agentID, marketID)
	return map[string]any{"subscribed": true, "marketId": marketID}, nil
}

func (r *Router) handleUnsubscribeMarket(_ context.Context, call *callCtx) (any, error) {
	marketID := pStr(call.params, "marketId")
	r.subs.Unsubscribe(call.agentID, marketID)
	return map[string]any{"subscribed": false, "marketId": marketID}, nil
}

func (r *Router) handleGetMarketSubscribers(_ context.Context, call *callCtx) (any, error) {
	marketID := pStr(call.params, "marketId")
	return map[string]any{
		"marketId":    marketID,
		"subscribers": r.subs.Subscribers(marketID),
	}, nil
}

// ---- coalitions ----

func (r *Router) handleProposeCoalition(_ context.Context, call *callCtx) (any, error) {
	c, err := r.coalitions.Propose(call.agentID, coalition.Proposal{
		Name:         pStr(call.params, "name"),
		TargetMarket: pStr(call.params, "targetMarket"),
		Strategy:     pStr(call.params, "strategy"),
		MinMembers:   int(pInt(call.params, "minMembers")),
		MaxMembers:   int(pInt(call.params, "maxMembers")),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"coalitionId": c.ID, "proposal": c}, nil
}

func (r *Router) handleJoinCoalition(_ context.Context, call *callCtx) (any, error) {
	c, err := r.coalitions.Join(call.agentID, pStr(call.params, "coalitionId"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"joined": true, "coalition": c}, nil
}

func (r *Router) handleLeaveCoalition(_ context.Context, call *callCtx) (any, error) {
	if err := r.coalitions.Leave(call.agentID, pStr(call.params, "coalitionId")); err != nil {
		return nil, err
	}
	return map[string]any{"left": true}, nil
}

func (r *Router) handleDisbandCoalition(_ context.Context, call *callCtx) (any, error) {
	if err := r.coalitions.Disband(call.agentID, pStr(call.params, "coalitionId")); err != nil {
		return nil, err
	}
	return map[string]any{"disbanded": true}, nil
}

func (r *Router) handleGetCoalition(_ context.Context, call *callCtx) (any, error) {
	return r.coalitions.Get(pStr(call.params, "coalitionId"))
}

func (r *Router) handleGetAgentCoalitions(_ context.Context, call *callCtx) (any, error) {
	agentID := pStr(call.params, "agentId")
	if agentID == "" {
		agentID = call.agentID
	}
	return map[string]any{"coalitions": r.coalitions.ForAgent(agentID)}, nil
}

// ---- analysis ----

func (r *Router) handleShareAnalysis(_ context.Context, call *callCtx) (any, error) {
	data, _ := call.params["data"].(map[string]any)
	a := r.analyses.Share(call.agentID, pStr(call.params, "marketId"), pStr(call.params, "summary"), data)
	return map[string]any{"shared": true, "analysisId": a.ID}, nil
}

func (r *Router) handleGetSharedAnalyses(_ context.Context, call *callCtx) (any, error) {
	marketID := pStr(call.params, "marketId")
	return map[string]any{
		"marketId": marketID,
		"analyses": r.analyses.ForMarket(marketID),
	}, nil
}

// ---- x402 ----

func (r *Router) handleCreatePaymentRequest(ctx context.Context, call *callCtx) (any, error) {
	from := pStr(call.params, "from")
	if from == "" && call.conn != nil {
		from = call.conn.Address
	}
	metadata, _ := call.params["metadata"].(map[string]any)

	req, err := r.payments.Create(from, pStr(call.params, "to"), pStr(call.params, "amount"), pStr(call.params, "service"), metadata)
	if err != nil {
		return nil, err
	}

	r.record(ctx, &audit.Event{
		AgentID:   call.agentID,
		EventType: audit.EventPaymentCreated,
		Method:    "a2a.createPaymentRequest",
		Reference: req.RequestID,
	})
	return req, nil
}

func (r *Router) handleGetPaymentRequest(_ context.Context, call *callCtx) (any, error) {
	req := r.payments.Get(pStr(call.params, "requestId"))
	// Unknown or expired ids yield a null request, not an error.
	return map[string]any{"request": req}, nil
}

func (r *Router) handleCancelPaymentRequest(ctx context.Context, call *callCtx) (any, error) {
	requestID := pStr(call.params, "requestId")
	cancelled := r.payments.Cancel(requestID)

	r.record(ctx, &audit.Event{
		AgentID:   call.agentID,
		EventType: audit.EventPaymentCancelled,
		Method:    "a2a.cancelPaymentRequest",
		Reference: requestID,
	})
	return map[string]any{"cancelled": cancelled}, nil
}

func (r *Router) handleSubmitPaymentProof(ctx context.Context, call *callCtx) (any, error) {
	proof := payments.Proof{
		RequestID: pStr(call.params, "requestId"),
		TxHash:    pStr(call.params, "txHash"),
		From:      pStr(call.params, "from"),
		To:        pStr(call.params, "to"),
		Amount:    pStr(call.params, "amount"),
		Timestamp: pInt(call.params, "timestamp"),
	}
	if confirmed, ok := call.params["confirmed"].(bool); ok {
		proof.Confirmed = confirmed
	}

	result := r.payments.Verify(ctx, proof)
	if result.Verified && result.Error == "" {
		r.record(ctx, &audit.Event{
			AgentID:   call.agentID,
			EventType: audit.EventPaymentVerified,
			Method:    "a2a.submitPaymentProof",
			Reference: proof.RequestID,
			Detail:    fmt.Sprintf(`{"txHash":%q}`, proof.TxHash),
		})
	}
	return result, nil
}

func (r *Router) handleGetPaymentStatus(_ context.Context, call *callCtx) (any, error) {
	requestID := pStr(call.params, "requestId")
	return map[string]any{
		"requestId": requestID,
		"verified":  r.payments.IsVerified(requestID),
	}, nil
}

func (r *Router) handleGetPendingPayments(_ context.Context, call *callCtx) (any, error) {
	address := pStr(call.params, "address")
	if address == "" && call.conn != nil {
		address = call.conn.Address
	}
	return map[string]any{"payments": r.payments.Pending(address)}, nil
}

func (r *Router) handleGetPaymentStats(_ context.Context, _ *callCtx) (any, error) {
	return r.payments.Statistics(), nil
}

// ---- param helpers ----

func pStr(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func pInt(params map[string]any, key string) int64 {
	switch v := params[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}
