// Package mcpbridge exposes the A2A protocol as MCP tools for LLM agents.
//
// The bridge is a thin JSON-RPC client over the server's HTTP transport;
// it authenticates once on first use and re-authenticates when the
// session lapses.
package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/babylon-market/a2a/internal/jsonrpc"
)

// Config holds the connection settings for the A2A server.
type Config struct {
	APIURL  string // Base URL, e.g. "http://localhost:8090"
	AgentID string // "<chainId>:<tokenId>"
	Address string // agent's chain account, "0x..."
	TokenID int64  // identity-registry token id
}

// Client is a JSON-RPC client for the A2A HTTP transport.
type Client struct {
	cfg        Config
	httpClient *http.Client
	nextID     atomic.Int64

	mu            sync.Mutex
	authenticated bool
}

// NewClient creates a client for the A2A server.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Call sends one JSON-RPC request and returns the result, establishing a
// session first for methods that need one.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if err := c.ensureSession(ctx, method); err != nil {
		return nil, err
	}
	return c.call(ctx, method, params)
}

// authExempt lists the methods callable without a session.
var authExempt = map[string]bool{
	"a2a.ping":            true,
	"a2a.authenticate":    true,
	"a2a.getCapabilities": true,
	"a2a.listMethods":     true,
	"a2a.getServerInfo":   true,
}

func (c *Client) ensureSession(ctx context.Context, method string) error {
	if authExempt[method] {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authenticated {
		return nil
	}
	_, err := c.call(ctx, "a2a.authenticate", map[string]any{
		"address": c.cfg.Address,
		"tokenId": c.cfg.TokenID,
		"capabilities": map[string]any{
			"actions": []string{"trade", "post", "pay"},
			"version": "1.0",
		},
	})
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	c.authenticated = true
	return nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	id, _ := json.Marshal(c.nextID.Add(1))
	envelope := map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  method,
		"id":      json.RawMessage(id),
	}
	if params != nil {
		envelope["params"] = params
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/api/a2a", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-agent-id", c.cfg.AgentID)
	req.Header.Set("x-agent-address", c.cfg.Address)
	req.Header.Set("x-agent-token-id", fmt.Sprintf("%d", c.cfg.TokenID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *jsonrpc.Error  `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Code == jsonrpc.CodeNotAuthenticated || rpcResp.Error.Code == jsonrpc.CodeSessionExpired {
			c.mu.Lock()
			c.authenticated = false
			c.mu.Unlock()
		}
		return nil, fmt.Errorf("%s: %s", jsonrpc.CodeName(rpcResp.Error.Code), rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
