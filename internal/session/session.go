// Package session tracks authenticated agent connections.
//
// One AgentConnection exists per authenticated session. The registry owns
// connection state exclusively: it is created on handshake, touched on every
// routed call, and removed on disconnect or idle timeout. Agent identity is
// stable across reconnects; registries that reference agents do so by ID and
// are never cascade-cleaned when a connection goes away.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/babylon-market/a2a/internal/idgen"
	"github.com/babylon-market/a2a/internal/metrics"
)

var (
	ErrNotFound     = errors.New("session: agent not connected")
	ErrTokenInvalid = errors.New("session: invalid session token")
	ErrTokenExpired = errors.New("session: session token expired")
	ErrAtCapacity   = errors.New("session: connection limit reached")
	ErrEmptyAgentID = errors.New("session: agent id must not be empty")
	ErrInvalidTokID = errors.New("session: token id must be non-negative")
	ErrEmptyAddress = errors.New("session: address must not be empty")
)

// Capabilities declares what an agent can do, sent during the handshake.
type Capabilities struct {
	Strategies []string `json:"strategies,omitempty"`
	Markets    []string `json:"markets,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	Version    string   `json:"version,omitempty"`
}

// AgentConnection is one authenticated session.
type AgentConnection struct {
	AgentID       string       `json:"agentId"`
	Address       string       `json:"address"`
	TokenID       int64        `json:"tokenId"`
	Capabilities  Capabilities `json:"capabilities"`
	Authenticated bool         `json:"authenticated"`
	ConnectedAt   time.Time    `json:"connectedAt"`
	LastActivity  time.Time    `json:"lastActivity"`
}

type token struct {
	agentID   string
	expiresAt time.Time
}

// Registry is the process-wide connection table.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*AgentConnection // by agent ID
	tokens   map[string]token            // session token -> agent
	tokenTTL time.Duration
	maxConns int
}

// NewRegistry creates a registry. tokenTTL bounds both session-token lifetime
// and the idle-disconnect cutoff; maxConns caps concurrent sessions.
func NewRegistry(tokenTTL time.Duration, maxConns int) *Registry {
	return &Registry{
		conns:    make(map[string]*AgentConnection),
		tokens:   make(map[string]token),
		tokenTTL: tokenTTL,
		maxConns: maxConns,
	}
}

// Register records a successful handshake and issues a session token.
// Re-registering an already-connected agent refreshes its session rather
// than failing: agents reconnect and resume.
func (r *Registry) Register(agentID, address string, tokenID int64, caps Capabilities) (*AgentConnection, string, error) {
	if agentID == "" {
		return nil, "", ErrEmptyAgentID
	}
	if address == "" {
		return nil, "", ErrEmptyAddress
	}
	if tokenID < 0 {
		return nil, "", ErrInvalidTokID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, online := r.conns[agentID]; !online && len(r.conns) >= r.maxConns {
		return nil, "", ErrAtCapacity
	}

	now := time.Now()
	conn := &AgentConnection{
		AgentID:       agentID,
		Address:       address,
		TokenID:       tokenID,
		Capabilities:  caps,
		Authenticated: true,
		ConnectedAt:   now,
		LastActivity:  now,
	}
	r.conns[agentID] = conn

	sessionToken := idgen.WithPrefix("sess_")
	r.tokens[sessionToken] = token{agentID: agentID, expiresAt: now.Add(r.tokenTTL)}

	metrics.ActiveConnections.Set(float64(len(r.conns)))
	snapshot := *conn
	return &snapshot, sessionToken, nil
}

// Get returns a snapshot of the connection for an agent, or ErrNotFound.
// Callers get a copy; the registry-owned record is only mutated under its lock.
func (r *Registry) Get(agentID string) (*AgentConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *conn
	return &snapshot, nil
}

// Touch updates lastActivity for an agent. Missing agents are ignored.
func (r *Registry) Touch(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[agentID]; ok {
		conn.LastActivity = time.Now()
	}
}

// ValidateToken resolves a session token to its agent connection.
func (r *Registry) ValidateToken(sessionToken string) (*AgentConnection, error) {
	r.mu.RLock()
	tok, ok := r.tokens[sessionToken]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTokenInvalid
	}
	if time.Now().After(tok.expiresAt) {
		r.mu.Lock()
		delete(r.tokens, sessionToken)
		r.mu.Unlock()
		return nil, ErrTokenExpired
	}
	return r.Get(tok.agentID)
}

// Disconnect removes an agent's connection. Session tokens survive so the
// agent can reconnect without a fresh handshake until the token expires.
func (r *Registry) Disconnect(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, agentID)
	metrics.ActiveConnections.Set(float64(len(r.conns)))
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SweepIdle disconnects agents idle past the cutoff and prunes expired
// tokens. Returns the agent IDs disconnected.
func (r *Registry) SweepIdle(idleCutoff time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var dropped []string
	for id, conn := range r.conns {
		if now.Sub(conn.LastActivity) > idleCutoff {
			delete(r.conns, id)
			dropped = append(dropped, id)
		}
	}
	for t, tok := range r.tokens {
		if now.After(tok.expiresAt) {
			delete(r.tokens, t)
		}
	}
	metrics.ActiveConnections.Set(float64(len(r.conns)))
	return dropped
}
