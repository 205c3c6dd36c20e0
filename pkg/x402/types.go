// Package x402 holds the client-side types for the A2A micropayment flow.
// This is the foundation for agent SDKs: a payer creates a request via
// a2a.createPaymentRequest, settles it on-chain, then submits a Proof via
// a2a.submitPaymentProof.
package x402

import (
	"fmt"
	"regexp"
	"time"
)

// PaymentRequest is the server's view of a requested micropayment, as
// returned by a2a.createPaymentRequest and a2a.getPaymentRequest.
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

// Expired reports whether the request can no longer be settled.
func (r *PaymentRequest) Expired() bool {
	return time.Now().After(r.ExpiresAt)
}

// Proof claims that a payment request was settled on-chain.
type Proof struct {
	RequestID string `json:"requestId"`
	TxHash    string `json:"txHash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	Confirmed bool   `json:"confirmed"`
}

// VerifyResult is the outcome of a2a.submitPaymentProof.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

var txHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// NewProof builds a proof for a settled request.
func NewProof(req *PaymentRequest, txHash string) (*Proof, error) {
	if req == nil {
		return nil, fmt.Errorf("x402: payment request is required")
	}
	if !txHashRe.MatchString(txHash) {
		return nil, fmt.Errorf("x402: invalid transaction hash %q", txHash)
	}
	return &Proof{
		RequestID: req.RequestID,
		TxHash:    txHash,
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		Timestamp: time.Now().Unix(),
		Confirmed: true,
	}, nil
}

// Params flattens the proof into JSON-RPC params for a2a.submitPaymentProof.
func (p *Proof) Params() map[string]any {
	return map[string]any{
		"requestId": p.RequestID,
		"txHash":    p.TxHash,
		"from":      p.From,
		"to":        p.To,
		"amount":    p.Amount,
		"timestamp": p.Timestamp,
		"confirmed": p.Confirmed,
	}
}
