// Package backend defines the business-logic service behind the A2A router.
//
// The router owns sessions, subscriptions, coalitions, and payments; every
// other method (trading, social, messaging, and so on) is delegated here.
// The Memory implementation in this package is the reference backend used
// by tests and stand-alone deployments; production deployments inject a
// Service backed by the real platform.
package backend

import (
	"context"
	"errors"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrAgentNotFound  = errors.New("agent not found")
	ErrPostNotFound   = errors.New("post not found")
	ErrPoolNotFound   = errors.New("pool not found")
	ErrNotImplemented = errors.New("method not implemented by backend")
	ErrBadParams      = errors.New("invalid parameters")
)

// Call is one delegated method invocation. Params have already passed the
// router's schema validation; handlers may still reject semantic problems.
type Call struct {
	AgentID string
	Method  string // full method name, e.g. "a2a.buyShares"
	Params  map[string]any
}

// Service executes business-logic methods.
type Service interface {
	Execute(ctx context.Context, call Call) (any, error)
}
