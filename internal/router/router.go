// Package router implements the A2A dispatch core.
//
// Route is the single entry point: it takes the caller's agent identity
// plus a parsed JSON-RPC request and returns exactly one response, with
// the request id echoed verbatim. Precondition order is fixed: rate
// limit, method lookup, parameter validation, authentication, feature
// flags, then dispatch. Handler panics are converted to internal errors;
// nothing escapes to the transport layer.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/babylon-market/a2a/internal/audit"
	"github.com/babylon-market/a2a/internal/backend"
	"github.com/babylon-market/a2a/internal/coalition"
	"github.com/babylon-market/a2a/internal/jsonrpc"
	"github.com/babylon-market/a2a/internal/markets"
	"github.com/babylon-market/a2a/internal/metrics"
	"github.com/babylon-market/a2a/internal/payments"
	"github.com/babylon-market/a2a/internal/ratelimit"
	"github.com/babylon-market/a2a/internal/session"
	"github.com/babylon-market/a2a/internal/traces"
	"github.com/xeipuuv/gojsonschema"
)

// Notifier delivers server-push frames to connected agents. The WebSocket
// hub implements it; HTTP-only deployments may leave it nil.
type Notifier interface {
	Notify(agentIDs []string, note *jsonrpc.Notification)
}

// Config holds the router's feature switches.
type Config struct {
	X402Enabled       bool
	CoalitionsEnabled bool
	SessionTTL        time.Duration
}

// Deps are the injected collaborators. All registries are owned by the
// caller so tests can construct isolated instances.
type Deps struct {
	Sessions   *session.Registry
	Limiter    *ratelimit.Limiter
	Subs       *markets.SubscriptionRegistry
	Analyses   *markets.AnalysisRegistry
	Coalitions *coalition.Registry
	Payments   *payments.Manager
	Backend    backend.Service
	Audit      audit.Recorder
	Notifier   Notifier
	Logger     *slog.Logger
}

// Router dispatches JSON-RPC requests across the protocol surface.
type Router struct {
	cfg        Config
	sessions   *session.Registry
	limiter    *ratelimit.Limiter
	subs       *markets.SubscriptionRegistry
	analyses   *markets.AnalysisRegistry
	coalitions *coalition.Registry
	payments   *payments.Manager
	backend    backend.Service
	audit      audit.Recorder
	notifier   Notifier
	logger     *slog.Logger
	sessionTTL time.Duration

	handlers map[string]handlerFunc
	table    map[string]methodInfo
	schemas  map[string]*gojsonschema.Schema
}

// New builds a router and fails fast on an incomplete dispatch table.
func New(cfg Config, deps Deps) (*Router, error) {
	if deps.Sessions == nil || deps.Limiter == nil || deps.Subs == nil ||
		deps.Analyses == nil || deps.Coalitions == nil || deps.Payments == nil ||
		deps.Backend == nil {
		return nil, errors.New("router: all registries and the backend are required")
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	r := &Router{
		cfg:        cfg,
		sessions:   deps.Sessions,
		limiter:    deps.Limiter,
		subs:       deps.Subs,
		analyses:   deps.Analyses,
		coalitions: deps.Coalitions,
		payments:   deps.Payments,
		backend:    deps.Backend,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		sessionTTL: cfg.SessionTTL,
	}
	r.handlers = r.registerHandlers()

	table, err := newMethodTable(r.handlers)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	r.table = table

	schemas, err := compileSchemas(table)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	r.schemas = schemas
	return r, nil
}

// SetNotifier attaches the push transport after construction; the hub
// needs the router to exist first. Call before serving traffic.
func (r *Router) SetNotifier(n Notifier) {
	r.notifier = n
}

// Route processes one request. It always returns a well-formed response
// echoing the request id; it never panics.
func (r *Router) Route(ctx context.Context, agentID string, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()

	ctx, span := traces.StartSpan(ctx, "a2a.route",
		traces.Method(req.Method), traces.AgentID(agentID))
	defer span.End()

	resp := r.route(ctx, agentID, req)

	outcome := "ok"
	if resp.Error != nil {
		outcome = jsonrpc.CodeName(resp.Error.Code)
	}
	metrics.RequestsTotal.WithLabelValues(req.Method, outcome).Inc()
	metrics.RequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if resp.Error != nil {
		r.logger.Debug("request rejected",
			"agent", agentID,
			"method", req.Method,
			"code", resp.Error.Code,
			"error", resp.Error.Message)
	}
	return resp
}

func (r *Router) route(ctx context.Context, agentID string, req *jsonrpc.Request) *jsonrpc.Response {
	if agentID == "" {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInvalidRequest, "agent id is required")
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonrpc.Version {
		return jsonrpc.Err(req.ID, jsonrpc.CodeInvalidRequest, "unsupported JSON-RPC version")
	}

	// Rejected requests do not count further against an exhausted window.
	if !r.limiter.Allow(agentID) {
		metrics.RateLimitedTotal.Inc()
		return jsonrpc.Err(req.ID, jsonrpc.CodeRateLimitExceeded, "rate limit exceeded")
	}

	info, ok := r.table[req.Method]
	if !ok {
		return jsonrpc.Err(req.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	if schema, has := r.schemas[req.Method]; has {
		if !req.HasParams() {
			return jsonrpc.Err(req.ID, jsonrpc.CodeInvalidParams, "params required")
		}
		if err := validateParams(schema, req.Params); err != nil {
			return jsonrpc.Err(req.ID, jsonrpc.CodeInvalidParams, err.Error())
		}
	}

	var params map[string]any
	if req.HasParams() {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.Err(req.ID, jsonrpc.CodeInvalidParams, "params must be an object")
		}
	}

	call := &callCtx{agentID: agentID, params: params}
	if info.auth {
		conn, err := r.sessions.Get(agentID)
		if err != nil || !conn.Authenticated {
			return jsonrpc.Err(req.ID, jsonrpc.CodeNotAuthenticated, "authentication required")
		}
		call.conn = conn
	}

	switch info.feature {
	case featureX402:
		if !r.cfg.X402Enabled {
			return jsonrpc.Err(req.ID, jsonrpc.CodeFeatureDisabled, "x402 payments are disabled")
		}
	case featureCoalitions:
		if !r.cfg.CoalitionsEnabled {
			return jsonrpc.Err(req.ID, jsonrpc.CodeFeatureDisabled, "coalitions are disabled")
		}
	}

	result, err := r.dispatch(ctx, info, call)
	if err != nil {
		return jsonrpc.ErrFrom(req.ID, r.toError(err))
	}

	if info.auth {
		r.sessions.Touch(agentID)
	}
	r.afterSuccess(ctx, info, call, result)
	return jsonrpc.Result(req.ID, result)
}

// dispatch invokes the handler, converting panics to errors so a broken
// handler can never take down the serving process.
func (r *Router) dispatch(ctx context.Context, info methodInfo, call *callCtx) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic",
				"method", Namespace+info.name,
				"agent", call.agentID,
				"panic", rec,
				"stack", string(debug.Stack()))
			result = nil
			err = &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "internal error"}
		}
	}()

	if info.delegated {
		return r.backend.Execute(ctx, backend.Call{
			AgentID: call.agentID,
			Method:  Namespace + info.name,
			Params:  call.params,
		})
	}
	return r.handlers[Namespace+info.name](ctx, call)
}

// afterSuccess handles side effects of successful dispatch: audit records
// and market fan-out for executed trades.
func (r *Router) afterSuccess(ctx context.Context, info methodInfo, call *callCtx, result any) {
	switch info.name {
	case "buyShares", "sellShares":
		marketID := pStr(call.params, "marketId")
		r.record(ctx, &audit.Event{
			AgentID:   call.agentID,
			EventType: audit.EventTradeExecuted,
			Method:    Namespace + info.name,
			Reference: marketID,
		})
		r.fanOutMarketUpdate(marketID, call.agentID, info.name, result)
	case "createPost":
		r.record(ctx, &audit.Event{
			AgentID:   call.agentID,
			EventType: audit.EventPostCreated,
			Method:    Namespace + info.name,
		})
	}
}

// fanOutMarketUpdate pushes a market.update frame to every agent
// subscribed to the market, excluding the trader.
func (r *Router) fanOutMarketUpdate(marketID, traderID, action string, result any) {
	if r.notifier == nil || marketID == "" {
		return
	}
	subscribers := r.subs.Subscribers(marketID)
	targets := subscribers[:0]
	for _, id := range subscribers {
		if id != traderID {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}
	r.notifier.Notify(targets, jsonrpc.NewNotification("market.update", map[string]any{
		"marketId": marketID,
		"agentId":  traderID,
		"action":   action,
		"trade":    result,
	}))
}

func (r *Router) record(ctx context.Context, event *audit.Event) {
	if err := r.audit.Record(ctx, event); err != nil {
		r.logger.Warn("audit record failed", "type", event.EventType, "error", err)
	}
}

// toError maps domain errors onto the protocol's error-code table.
func (r *Router) toError(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var tooSmall *payments.AmountTooSmallError
	if errors.As(err, &tooSmall) {
		return &jsonrpc.Error{Code: jsonrpc.CodePaymentTooSmall, Message: tooSmall.Error()}
	}

	code := jsonrpc.CodeInternalError
	switch {
	case errors.Is(err, backend.ErrMarketNotFound):
		code = jsonrpc.CodeMarketNotFound
	case errors.Is(err, backend.ErrAgentNotFound), errors.Is(err, session.ErrNotFound):
		code = jsonrpc.CodeAgentNotFound
	case errors.Is(err, backend.ErrPostNotFound):
		code = jsonrpc.CodePostNotFound
	case errors.Is(err, backend.ErrPoolNotFound):
		code = jsonrpc.CodePoolNotFound
	case errors.Is(err, backend.ErrBadParams):
		code = jsonrpc.CodeInvalidParams
	case errors.Is(err, backend.ErrNotImplemented):
		code = jsonrpc.CodeMethodNotFound
	case errors.Is(err, coalition.ErrNotFound):
		code = jsonrpc.CodeCoalitionNotFound
	case errors.Is(err, coalition.ErrFull):
		code = jsonrpc.CodeCoalitionFull
	case errors.Is(err, coalition.ErrNotProposer),
		errors.Is(err, coalition.ErrInvalidLimit),
		errors.Is(err, coalition.ErrEmptyName):
		code = jsonrpc.CodeInvalidParams
	case errors.Is(err, session.ErrTokenExpired):
		code = jsonrpc.CodeSessionExpired
	case errors.Is(err, session.ErrEmptyAgentID),
		errors.Is(err, session.ErrEmptyAddress),
		errors.Is(err, session.ErrInvalidTokID):
		code = jsonrpc.CodeInvalidParams
	case errors.Is(err, payments.ErrInvalidAmount):
		code = jsonrpc.CodeInvalidParams
	}

	msg := err.Error()
	if code == jsonrpc.CodeInternalError {
		// Never leak internals to the wire.
		r.logger.Error("internal dispatch error", "error", err)
		msg = "internal error"
	}
	return &jsonrpc.Error{Code: code, Message: msg}
}
