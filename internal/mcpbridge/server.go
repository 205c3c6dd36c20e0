package mcpbridge

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all A2A tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("babylon-a2a", "1.0.0")
	client := NewClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetMarkets, h.HandleGetMarkets)
	s.AddTool(ToolBuyShares, h.HandleBuyShares)
	s.AddTool(ToolSellShares, h.HandleSellShares)
	s.AddTool(ToolGetPortfolio, h.HandleGetPortfolio)
	s.AddTool(ToolCreatePost, h.HandleCreatePost)
	s.AddTool(ToolGetFeed, h.HandleGetFeed)
	s.AddTool(ToolGetLeaderboard, h.HandleGetLeaderboard)
	s.AddTool(ToolRequestPayment, h.HandleRequestPayment)
	s.AddTool(ToolGetPendingPayments, h.HandleGetPendingPayments)

	return s
}
