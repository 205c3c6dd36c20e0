package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(time.Hour, 10)

	conn, tok, err := r.Register("84532:1", "0xabc", 1, Capabilities{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, "sess_"))
	assert.True(t, conn.Authenticated)
	assert.Equal(t, "84532:1", conn.AgentID)

	got, err := r.Get("84532:1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.Address)

	_, err = r.Get("84532:999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry(time.Hour, 10)

	_, _, err := r.Register("", "0xabc", 1, Capabilities{})
	assert.ErrorIs(t, err, ErrEmptyAgentID)

	_, _, err = r.Register("84532:1", "", 1, Capabilities{})
	assert.ErrorIs(t, err, ErrEmptyAddress)

	_, _, err = r.Register("84532:1", "0xabc", -1, Capabilities{})
	assert.ErrorIs(t, err, ErrInvalidTokID)
}

func TestRegistry_ReRegisterRefreshes(t *testing.T) {
	r := NewRegistry(time.Hour, 1)

	_, tok1, err := r.Register("84532:1", "0xabc", 1, Capabilities{})
	require.NoError(t, err)

	// Re-registering the same agent does not hit the capacity cap and
	// issues a fresh token; the old one stays valid until it expires.
	_, tok2, err := r.Register("84532:1", "0xdef", 1, Capabilities{})
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)
	assert.Equal(t, 1, r.Count())

	conn, err := r.ValidateToken(tok1)
	require.NoError(t, err)
	assert.Equal(t, "0xdef", conn.Address)
}

func TestRegistry_AtCapacity(t *testing.T) {
	r := NewRegistry(time.Hour, 2)

	_, _, err := r.Register("84532:1", "0xa", 1, Capabilities{})
	require.NoError(t, err)
	_, _, err = r.Register("84532:2", "0xb", 2, Capabilities{})
	require.NoError(t, err)

	_, _, err = r.Register("84532:3", "0xc", 3, Capabilities{})
	assert.ErrorIs(t, err, ErrAtCapacity)

	// Room opens up after a disconnect.
	r.Disconnect("84532:1")
	_, _, err = r.Register("84532:3", "0xc", 3, Capabilities{})
	require.NoError(t, err)
}

func TestRegistry_ValidateToken(t *testing.T) {
	r := NewRegistry(time.Hour, 10)

	_, tok, err := r.Register("84532:1", "0xabc", 1, Capabilities{})
	require.NoError(t, err)

	conn, err := r.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "84532:1", conn.AgentID)

	_, err = r.ValidateToken("sess_deadbeef")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRegistry_TokenExpiry(t *testing.T) {
	r := NewRegistry(time.Millisecond, 10)

	_, tok, err := r.Register("84532:1", "0xabc", 1, Capabilities{})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = r.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Expired tokens are deleted on first use; a second check reports
	// invalid rather than expired.
	_, err = r.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRegistry_SweepIdle(t *testing.T) {
	r := NewRegistry(time.Hour, 10)

	_, _, err := r.Register("84532:1", "0xa", 1, Capabilities{})
	require.NoError(t, err)
	_, _, err = r.Register("84532:2", "0xb", 2, Capabilities{})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	r.Touch("84532:2")

	dropped := r.SweepIdle(2 * time.Millisecond)
	assert.Equal(t, []string{"84532:1"}, dropped)
	assert.Equal(t, 1, r.Count())

	_, err = r.Get("84532:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	r := NewRegistry(time.Hour, 10)
	_, _, err := r.Register("84532:1", "0xabc", 1, Capabilities{})
	require.NoError(t, err)

	got, err := r.Get("84532:1")
	require.NoError(t, err)
	got.Address = "0xmutated"

	again, err := r.Get("84532:1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", again.Address)
}
