// Package realtime provides the WebSocket transport for the A2A protocol.
//
// Agents hold a persistent connection, send JSON-RPC request frames, and
// receive responses plus server-push notification frames (market updates).
// One agent may hold several connections; pushes go to all of them.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/babylon-market/a2a/internal/jsonrpc"
	"github.com/babylon-market/a2a/internal/metrics"
	"github.com/babylon-market/a2a/internal/router"
	"github.com/babylon-market/a2a/internal/session"
	"github.com/babylon-market/a2a/internal/validation"
	"github.com/gorilla/websocket"
)

// normalCloseCodes are WebSocket close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// Client is one WebSocket connection bound to an agent identity.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	agentID string

	// Dispatch goroutines may still be replying when the hub drops the
	// client; sendMu/closed keep them off the closed channel.
	sendMu sync.Mutex
	closed bool
}

// closeSend closes the send channel exactly once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.sendMu.Unlock()
}

// trySend queues a payload unless the client is closed or backed up.
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// MaxClients is the maximum number of concurrent WebSocket connections.
const MaxClients = 10000

// push is a targeted server-initiated frame.
type push struct {
	agentIDs []string
	payload  []byte
}

// Hub manages all WebSocket connections and dispatches inbound frames
// through the router.
type Hub struct {
	clients    map[*Client]bool
	byAgent    map[string]map[*Client]bool
	pushes     chan push
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	router     *router.Router
	sessions   *session.Registry
	logger     *slog.Logger
	runCtx     context.Context
	done       chan struct{} // closed when Run exits; prevents upgrade race
	maxClients int

	totalFrames  atomic.Int64
	totalClients atomic.Int64
	peakClients  atomic.Int64
}

// NewHub creates a hub that routes inbound frames through rt. Upgrades
// may authenticate with a session token issued by sessions instead of
// the identity header.
func NewHub(rt *router.Router, sessions *session.Registry, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byAgent:    make(map[string]map[*Client]bool),
		pushes:     make(chan push, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		router:     rt,
		sessions:   sessions,
		logger:     logger,
		done:       make(chan struct{}),
		maxClients: MaxClients,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	h.runCtx = ctx
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub shutting down, closing client connections")
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend() // writePump sends CloseMessage on closed channel
				h.dropLocked(client)
			}
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(0)
			h.logger.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			conns, ok := h.byAgent[client.agentID]
			if !ok {
				conns = make(map[*Client]bool)
				h.byAgent[client.agentID] = conns
			}
			conns[client] = true
			h.totalClients.Add(1)
			if current := int64(len(h.clients)); current > h.peakClients.Load() {
				h.peakClients.Store(current)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Info("agent connected", "agent", client.agentID, "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				client.closeSend()
				h.dropLocked(client)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Info("agent disconnected", "agent", client.agentID, "total", n)

		case p := <-h.pushes:
			h.mu.RLock()
			var slow []*Client
			for _, agentID := range p.agentIDs {
				for client := range h.byAgent[agentID] {
					if !client.trySend(p.payload) {
						slow = append(slow, client)
					}
				}
			}
			h.mu.RUnlock()
			// Remove slow clients under write lock
			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						client.closeSend()
						h.dropLocked(client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// dropLocked removes a client from both indexes. Caller holds m.mu.
func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	if conns, ok := h.byAgent[client.agentID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.byAgent, client.agentID)
		}
	}
}

// Notify delivers a server-push frame to every connection of the listed
// agents. Implements the router's Notifier.
func (h *Hub) Notify(agentIDs []string, note *jsonrpc.Notification) {
	if len(agentIDs) == 0 {
		return
	}
	payload, err := json.Marshal(note)
	if err != nil {
		h.logger.Error("notification marshal failed", "method", note.Method, "error", err)
		return
	}
	select {
	case h.pushes <- push{agentIDs: agentIDs, payload: payload}:
	default:
		h.logger.Warn("push channel full, dropping notification", "method", note.Method)
	}
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]any{
		"connectedClients": len(h.clients),
		"totalFrames":      h.totalFrames.Load(),
		"totalClients":     h.totalClients.Load(),
		"peakClients":      h.peakClients.Load(),
	}
}

// HandleWebSocket upgrades HTTP to WebSocket. The agent identity comes
// from the x-agent-id header or, failing that, a session token in the
// Authorization header.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Reject upgrades after the hub has stopped to prevent orphaned connections.
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	agentID := r.Header.Get("x-agent-id")
	if agentID == "" {
		if tok := validation.BearerToken(r.Header.Get("Authorization")); tok != "" && h.sessions != nil {
			if conn, err := h.sessions.ValidateToken(tok); err == nil {
				agentID = conn.AgentID
			}
		}
	}
	if agentID == "" {
		http.Error(w, "agent identity required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		agentID: agentID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump reads JSON-RPC frames and dispatches each in its own goroutine,
// so a slow handler never blocks the connection's other requests.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Warn("websocket read error", "agent", c.agentID, "error", err)
			}
			break
		}
		c.hub.totalFrames.Add(1)

		var req jsonrpc.Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(jsonrpc.Err(nil, jsonrpc.CodeParseError, "parse error"))
			continue
		}

		go func() {
			ctx := c.hub.runCtx
			if ctx == nil {
				ctx = context.Background()
			}
			c.reply(c.hub.router.Route(ctx, c.agentID, &req))
		}()
	}
}

// reply marshals a response onto the send channel, dropping it if the
// connection is backed up.
func (c *Client) reply(resp *jsonrpc.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.hub.logger.Error("response marshal failed", "agent", c.agentID, "error", err)
		return
	}
	if !c.trySend(payload) {
		c.hub.logger.Warn("send buffer full, dropping response", "agent", c.agentID)
	}
}

// writePump writes messages to the WebSocket.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write error", "agent", c.agentID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("websocket ping failed", "agent", c.agentID, "error", err)
				return
			}
		}
	}
}
