// Package audit records completed A2A actions to a write-only store.
//
// The router and payment manager append events; nothing in the serving
// path ever reads them back. Query methods exist for operators and tests
// only.
package audit

import (
	"context"
	"time"
)

// Event types recorded by the core.
const (
	EventSessionOpened    = "session.opened"
	EventSessionClosed    = "session.closed"
	EventTradeExecuted    = "trade.executed"
	EventPostCreated      = "post.created"
	EventPaymentCreated   = "payment.created"
	EventPaymentVerified  = "payment.verified"
	EventPaymentCancelled = "payment.cancelled"
)

// Event is one immutable audit record.
type Event struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agentId"`
	EventType string    `json:"eventType"`
	Method    string    `json:"method,omitempty"`
	Reference string    `json:"reference,omitempty"` // payment/trade/post id
	Detail    string    `json:"detail,omitempty"`    // JSON blob
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder appends audit events. Implementations must be safe for
// concurrent use; Record failures are logged by callers, never surfaced
// to agents.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Nop is a Recorder that drops everything.
type Nop struct{}

func (Nop) Record(context.Context, *Event) error { return nil }
