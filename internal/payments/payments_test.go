package payments

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockVerifier is a scriptable ChainVerifier.
type mockVerifier struct {
	mu        sync.Mutex
	calls     int
	confirmed bool
	err       error
}

func (m *mockVerifier) VerifyTransfer(_ context.Context, _, _, _ string, _ *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.confirmed, m.err
}

func (m *mockVerifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestManager(t *testing.T, verifier ChainVerifier, timeout time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{MinAmount: "1000", Timeout: timeout}, verifier)
	require.NoError(t, err)
	return m
}

const testTxHash = "0x" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12" + "ab12"

func TestCreate(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)

	before := time.Now()
	req, err := m.Create("0xfrom", "0xto", "1500", "signal-feed", map[string]any{"tier": "gold"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(req.RequestID, "pay_"))
	assert.Equal(t, "1500", req.Amount)
	assert.False(t, req.Verified)
	// Expiry sits one timeout after creation.
	assert.WithinDuration(t, before.Add(time.Minute), req.ExpiresAt, time.Second)
	assert.Equal(t, time.Minute, req.ExpiresAt.Sub(req.CreatedAt))
}

func TestCreate_UniqueIDs(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
		require.NoError(t, err)
		assert.False(t, seen[req.RequestID], "duplicate request id %s", req.RequestID)
		seen[req.RequestID] = true
	}
}

func TestCreate_BelowMinimum(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)

	_, err := m.Create("0xfrom", "0xto", "999", "svc", nil)
	var tooSmall *AmountTooSmallError
	require.ErrorAs(t, err, &tooSmall)
	assert.Equal(t, "Payment amount must be at least 1000", tooSmall.Error())

	// Exactly the minimum is accepted.
	_, err = m.Create("0xfrom", "0xto", "1000", "svc", nil)
	require.NoError(t, err)
}

func TestCreate_InvalidAmount(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)

	for _, amt := range []string{"", "1.5", "-5", "0x10", "1e6"} {
		_, err := m.Create("0xfrom", "0xto", amt, "svc", nil)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q", amt)
	}
}

func TestGet_ExpiredIsAbsent(t *testing.T) {
	m := newTestManager(t, nil, 5*time.Millisecond)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)
	assert.NotNil(t, m.Get(req.RequestID))

	time.Sleep(10 * time.Millisecond)
	assert.Nil(t, m.Get(req.RequestID), "elapsed request should read as absent")
	assert.Nil(t, m.Get("pay_unknown"))
}

func TestCancel_Idempotent(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)

	assert.True(t, m.Cancel(req.RequestID))
	assert.Nil(t, m.Get(req.RequestID))
	// Cancelling again, or cancelling an unknown id, still reports success.
	assert.True(t, m.Cancel(req.RequestID))
	assert.True(t, m.Cancel("pay_never_existed"))
}

func TestVerify_Success(t *testing.T) {
	v := &mockVerifier{confirmed: true}
	m := newTestManager(t, v, time.Minute)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)

	res := m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	assert.True(t, res.Verified)
	assert.Empty(t, res.Error)
	assert.True(t, m.IsVerified(req.RequestID))

	got := m.Get(req.RequestID)
	require.NotNil(t, got)
	assert.Equal(t, testTxHash, got.TxHash)
}

func TestVerify_MalformedTxHash(t *testing.T) {
	v := &mockVerifier{confirmed: true}
	m := newTestManager(t, v, time.Minute)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)

	for _, h := range []string{"", "0x", "not-hex", "0xab12zz"} {
		res := m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: h})
		assert.False(t, res.Verified, "hash %q", h)
		assert.Equal(t, "malformed transaction hash", res.Error)
	}
	assert.Zero(t, v.callCount(), "garbage hashes never reach the chain")
}

func TestVerify_Monotonic(t *testing.T) {
	v := &mockVerifier{confirmed: true}
	m := newTestManager(t, v, time.Minute)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)

	res := m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	require.True(t, res.Verified)
	require.Equal(t, 1, v.callCount())

	// A second verification reports the prior outcome without touching
	// the chain again.
	res = m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	assert.True(t, res.Verified)
	assert.Equal(t, "payment already verified", res.Error)
	assert.Equal(t, 1, v.callCount())
}

func TestVerify_UnknownAndExpired(t *testing.T) {
	v := &mockVerifier{confirmed: true}
	m := newTestManager(t, v, 5*time.Millisecond)

	res := m.Verify(context.Background(), Proof{RequestID: "pay_unknown", TxHash: testTxHash})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Error, "not found")

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	res = m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Error, "expired")
	assert.Zero(t, v.callCount(), "expired requests never reach the chain")
}

func TestVerify_Mismatch(t *testing.T) {
	v := &mockVerifier{confirmed: false}
	m := newTestManager(t, v, time.Minute)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)

	res := m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	assert.False(t, res.Verified)
	assert.Equal(t, "transaction does not match payment request", res.Error)
	assert.False(t, m.IsVerified(req.RequestID))
}

func TestVerify_ChainErrorSurfacedAndRetryable(t *testing.T) {
	v := &mockVerifier{err: errors.New("rpc: connection refused")}
	m := newTestManager(t, v, time.Minute)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)

	res := m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Error, "connection refused")

	// The request survives the failure; a retry succeeds.
	v.mu.Lock()
	v.err = nil
	v.confirmed = true
	v.mu.Unlock()

	res = m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	assert.True(t, res.Verified)
}

func TestVerify_NoVerifierConfigured(t *testing.T) {
	m := newTestManager(t, nil, time.Minute)

	req, err := m.Create("0xfrom", "0xto", "1500", "svc", nil)
	require.NoError(t, err)

	res := m.Verify(context.Background(), Proof{RequestID: req.RequestID, TxHash: testTxHash})
	assert.False(t, res.Verified)
	assert.Contains(t, res.Error, "verifier not configured")
}

func TestPending(t *testing.T) {
	v := &mockVerifier{confirmed: true}
	m := newTestManager(t, v, time.Minute)

	r1, err := m.Create("0xalice", "0xbob", "1500", "svc", nil)
	require.NoError(t, err)
	_, err = m.Create("0xbob", "0xcarol", "2000", "svc", nil)
	require.NoError(t, err)
	r3, err := m.Create("0xcarol", "0xalice", "3000", "svc", nil)
	require.NoError(t, err)

	// Pending matches either side of the payment.
	assert.Len(t, m.Pending("0xalice"), 2)
	assert.Len(t, m.Pending("0xbob"), 2)
	assert.Empty(t, m.Pending("0xnobody"))

	// Verified requests drop out of pending.
	res := m.Verify(context.Background(), Proof{RequestID: r1.RequestID, TxHash: testTxHash})
	require.True(t, res.Verified)
	pending := m.Pending("0xalice")
	require.Len(t, pending, 1)
	assert.Equal(t, r3.RequestID, pending[0].RequestID)
}

func TestStatistics_Consistent(t *testing.T) {
	v := &mockVerifier{confirmed: true}
	m := newTestManager(t, v, 50*time.Millisecond)

	r1, err := m.Create("0xa", "0xb", "1500", "svc", nil)
	require.NoError(t, err)
	_, err = m.Create("0xa", "0xb", "2000", "svc", nil)
	require.NoError(t, err)
	_, err = m.Create("0xa", "0xb", "2500", "svc", nil)
	require.NoError(t, err)

	res := m.Verify(context.Background(), Proof{RequestID: r1.RequestID, TxHash: testTxHash})
	require.True(t, res.Verified)

	s := m.Statistics()
	assert.Equal(t, Stats{Pending: 2, Verified: 1, Expired: 0}, s)

	time.Sleep(60 * time.Millisecond)

	// The two unverified requests age into expired; the verified one
	// stays verified. Counts always sum to the stored set.
	s = m.Statistics()
	assert.Equal(t, Stats{Pending: 0, Verified: 1, Expired: 2}, s)
}

func TestSweepExpired(t *testing.T) {
	v := &mockVerifier{confirmed: true}
	m := newTestManager(t, v, 5*time.Millisecond)

	r1, err := m.Create("0xa", "0xb", "1500", "svc", nil)
	require.NoError(t, err)
	_, err = m.Create("0xa", "0xb", "2000", "svc", nil)
	require.NoError(t, err)

	res := m.Verify(context.Background(), Proof{RequestID: r1.RequestID, TxHash: testTxHash})
	require.True(t, res.Verified)

	time.Sleep(10 * time.Millisecond)

	// Only the unverified, elapsed request is dropped.
	assert.Equal(t, 1, m.SweepExpired())
	assert.Equal(t, 0, m.SweepExpired())
	assert.True(t, m.IsVerified(r1.RequestID))
}
