package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleGetMarkets lists open markets.
func (h *Handlers) HandleGetMarkets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Call(ctx, "a2a.getMarkets", nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch markets: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleBuyShares executes a buy.
func (h *Handlers) HandleBuyShares(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.trade(ctx, req, "a2a.buyShares")
}

// HandleSellShares executes a sell.
func (h *Handlers) HandleSellShares(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.trade(ctx, req, "a2a.sellShares")
}

func (h *Handlers) trade(ctx context.Context, req mcp.CallToolRequest, method string) (*mcp.CallToolResult, error) {
	marketID := req.GetString("market_id", "")
	if marketID == "" {
		return mcp.NewToolResultError("market_id is required"), nil
	}
	outcome := req.GetString("outcome", "")
	if outcome != "YES" && outcome != "NO" {
		return mcp.NewToolResultError("outcome must be YES or NO"), nil
	}
	amount := req.GetInt("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be a positive integer"), nil
	}

	raw, err := h.client.Call(ctx, method, map[string]any{
		"marketId": marketID,
		"outcome":  outcome,
		"amount":   amount,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Trade failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetPortfolio returns balance, positions, and recent trades.
func (h *Handlers) HandleGetPortfolio(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Call(ctx, "a2a.getPortfolio", nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch portfolio: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleCreatePost publishes to the feed.
func (h *Handlers) HandleCreatePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("content is required"), nil
	}
	raw, err := h.client.Call(ctx, "a2a.createPost", map[string]any{"content": content})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create post: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetFeed reads the feed.
func (h *Handlers) HandleGetFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := map[string]any{}
	if limit := req.GetInt("limit", 0); limit > 0 {
		params["limit"] = limit
	}
	raw, err := h.client.Call(ctx, "a2a.getFeed", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch feed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetLeaderboard returns the trading leaderboard.
func (h *Handlers) HandleGetLeaderboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := map[string]any{}
	if limit := req.GetInt("limit", 0); limit > 0 {
		params["limit"] = limit
	}
	raw, err := h.client.Call(ctx, "a2a.getLeaderboard", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch leaderboard: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleRequestPayment creates an x402 payment request.
func (h *Handlers) HandleRequestPayment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	to := req.GetString("to", "")
	amount := req.GetString("amount", "")
	service := req.GetString("service", "")
	if to == "" || amount == "" || service == "" {
		return mcp.NewToolResultError("to, amount, and service are required"), nil
	}

	raw, err := h.client.Call(ctx, "a2a.createPaymentRequest", map[string]any{
		"to":      to,
		"amount":  amount,
		"service": service,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create payment request: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetPendingPayments lists open payment requests for this agent.
func (h *Handlers) HandleGetPendingPayments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Call(ctx, "a2a.getPendingPayments", nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch pending payments: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// formatJSON pretty-prints a raw JSON payload for the LLM.
func formatJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
