// Package payments implements the x402 micropayment manager.
//
// A PaymentRequest is a short-lived, minimum-bounded claim that one agent
// owes another an exact amount in minor units. Requests expire after a
// configured timeout; verification delegates to a chain-query capability
// and is monotonic: once verified, a request stays verified and is never
// re-checked against the chain.
//
// All amounts are decimal strings of integer minor units, compared through
// big.Int only. No floating point arithmetic exists in this package.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/babylon-market/a2a/internal/amount"
	"github.com/babylon-market/a2a/internal/idgen"
	"github.com/babylon-market/a2a/internal/metrics"
	"github.com/babylon-market/a2a/internal/validation"
)

var (
	ErrInvalidAmount = errors.New("payments: amount must be a non-negative integer string")
	ErrNoVerifier    = errors.New("payments: chain verifier not configured")
)

// AmountTooSmallError rejects a payment below the configured minimum. The
// message text is part of the external contract.
type AmountTooSmallError struct {
	Min string
}

func (e *AmountTooSmallError) Error() string {
	return fmt.Sprintf("Payment amount must be at least %s", e.Min)
}

// ChainVerifier confirms that a transaction hash corresponds to a transfer
// matching from, to, and amount on-chain. This is the manager's only I/O
// dependency.
type ChainVerifier interface {
	VerifyTransfer(ctx context.Context, txHash, from, to string, amount *big.Int) (bool, error)
}

// PaymentRequest is one requested micropayment, owned exclusively by the Manager.
type PaymentRequest struct {
	RequestID string         `json:"requestId"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Amount    string         `json:"amount"` // integer minor units
	Service   string         `json:"service"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Verified  bool           `json:"verified"`
	TxHash    string         `json:"txHash,omitempty"`
}

// Proof is a client's claim that a payment request was settled on-chain.
type Proof struct {
	RequestID string `json:"requestId"`
	TxHash    string `json:"txHash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	Confirmed bool   `json:"confirmed"`
}

// VerifyResult is the outcome of a verification attempt.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// Stats are computed from the full stored set at call time, never
// incrementally, so the three counts are always mutually consistent.
type Stats struct {
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
	Expired  int `json:"expired"`
}

// Config for the payment manager.
type Config struct {
	// MinAmount is the smallest accepted payment, in minor units.
	MinAmount string
	// Timeout is how long a request stays payable after creation.
	Timeout time.Duration
}

// Manager issues and verifies payment requests.
type Manager struct {
	mu       sync.RWMutex
	requests map[string]*PaymentRequest
	min      *big.Int
	timeout  time.Duration
	verifier ChainVerifier
}

// NewManager creates a payment manager. The verifier may be nil, in which
// case every verification attempt reports a configuration error.
func NewManager(cfg Config, verifier ChainVerifier) (*Manager, error) {
	min, err := amount.Parse(cfg.MinAmount)
	if err != nil {
		return nil, fmt.Errorf("payments: invalid minimum amount %q: %w", cfg.MinAmount, err)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("payments: timeout must be positive, got %v", cfg.Timeout)
	}
	return &Manager{
		requests: make(map[string]*PaymentRequest),
		min:      min,
		timeout:  cfg.Timeout,
		verifier: verifier,
	}, nil
}

// Create issues a new payment request. The amount must parse as a
// non-negative integer string and meet the configured minimum.
func (m *Manager) Create(from, to, amt, service string, metadata map[string]any) (*PaymentRequest, error) {
	v, err := amount.Parse(amt)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	if v.Cmp(m.min) < 0 {
		return nil, &AmountTooSmallError{Min: m.min.String()}
	}

	now := time.Now()
	req := &PaymentRequest{
		RequestID: idgen.WithPrefix("pay_"),
		From:      from,
		To:        to,
		Amount:    amt,
		Service:   service,
		Metadata:  metadata,
		CreatedAt: now,
		ExpiresAt: now.Add(m.timeout),
	}

	m.mu.Lock()
	m.requests[req.RequestID] = req
	m.mu.Unlock()

	metrics.PaymentsCreatedTotal.Inc()
	return req.snapshot(), nil
}

// Get returns the payment request, or nil for unknown or expired IDs.
// Expiry is a predicate: a physically present but elapsed record is
// logically absent.
func (m *Manager) Get(requestID string) *PaymentRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[requestID]
	if !ok || req.expired(time.Now()) {
		return nil
	}
	return req.snapshot()
}

// Cancel removes the request. Idempotent: cancelling an absent ID still
// reports success, since deletion of something already gone is not a
// failure in this design.
func (m *Manager) Cancel(requestID string) bool {
	m.mu.Lock()
	delete(m.requests, requestID)
	m.mu.Unlock()
	return true
}

// Verify checks a payment proof against the stored request and the chain.
//
// The chain call happens outside the manager lock so slow RPC never blocks
// other agents' payment traffic; the terminal transition re-checks state
// under the lock, so two racing verifications of the same request converge
// on a single outcome.
func (m *Manager) Verify(ctx context.Context, proof Proof) VerifyResult {
	m.mu.RLock()
	req, ok := m.requests[proof.RequestID]
	var (
		expired  bool
		verified bool
		from, to string
		amt      string
	)
	if ok {
		expired = req.expired(time.Now())
		verified = req.Verified
		from, to, amt = req.From, req.To, req.Amount
	}
	m.mu.RUnlock()

	if !ok {
		return VerifyResult{Verified: false, Error: "payment request not found or expired"}
	}
	if expired {
		return VerifyResult{Verified: false, Error: "payment request expired"}
	}
	if verified {
		// Monotonic: report the prior outcome without re-checking the chain.
		return VerifyResult{Verified: true, Error: "payment already verified"}
	}
	if !validation.IsValidHex(proof.TxHash) {
		return VerifyResult{Verified: false, Error: "malformed transaction hash"}
	}
	if m.verifier == nil {
		return VerifyResult{Verified: false, Error: ErrNoVerifier.Error()}
	}

	want, err := amount.Parse(amt)
	if err != nil {
		return VerifyResult{Verified: false, Error: ErrInvalidAmount.Error()}
	}

	confirmed, err := m.verifier.VerifyTransfer(ctx, proof.TxHash, from, to, want)
	if err != nil {
		// Infrastructure failure: surfaced, not swallowed. The request
		// persists until expiry so the caller may retry.
		return VerifyResult{Verified: false, Error: err.Error()}
	}
	if !confirmed {
		return VerifyResult{Verified: false, Error: "transaction does not match payment request"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok = m.requests[proof.RequestID]
	if !ok {
		return VerifyResult{Verified: false, Error: "payment request not found or expired"}
	}
	if req.expired(time.Now()) {
		return VerifyResult{Verified: false, Error: "payment request expired"}
	}
	if !req.Verified {
		req.Verified = true
		req.TxHash = proof.TxHash
		metrics.PaymentsVerifiedTotal.Inc()
	}
	return VerifyResult{Verified: true}
}

// IsVerified reports whether a request has been verified. False for
// unknown IDs.
func (m *Manager) IsVerified(requestID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[requestID]
	return ok && req.Verified
}

// Pending returns all unverified, unexpired requests where the address is
// either payer or payee.
func (m *Manager) Pending(address string) []*PaymentRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make([]*PaymentRequest, 0)
	for _, req := range m.requests {
		if req.Verified || req.expired(now) {
			continue
		}
		if req.From == address || req.To == address {
			out = append(out, req.snapshot())
		}
	}
	return out
}

// Statistics counts pending, verified, and expired requests over the full
// stored set.
func (m *Manager) Statistics() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var s Stats
	for _, req := range m.requests {
		switch {
		case req.Verified:
			s.Verified++
		case req.expired(now):
			s.Expired++
		default:
			s.Pending++
		}
	}
	return s
}

// SweepExpired physically removes expired, unverified requests and returns
// how many were dropped. Running the sweep is optional; every read path
// already treats elapsed records as absent.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	dropped := 0
	for id, req := range m.requests {
		if !req.Verified && req.expired(now) {
			delete(m.requests, id)
			dropped++
		}
	}
	if dropped > 0 {
		metrics.PaymentsExpiredTotal.Add(float64(dropped))
	}
	return dropped
}

func (p *PaymentRequest) expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

func (p *PaymentRequest) snapshot() *PaymentRequest {
	cp := *p
	return &cp
}
