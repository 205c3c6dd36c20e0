// Babylon A2A MCP bridge - exposes the A2A protocol as MCP tools for LLMs
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/babylon-market/a2a/internal/mcpbridge"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	tokenID, err := strconv.ParseInt(envOrDefault("A2A_AGENT_TOKEN_ID", "0"), 10, 64)
	if err != nil || tokenID < 0 {
		fmt.Fprintln(os.Stderr, "A2A_AGENT_TOKEN_ID must be a non-negative integer")
		os.Exit(1)
	}

	cfg := mcpbridge.Config{
		APIURL:  envOrDefault("A2A_API_URL", "http://localhost:8090"),
		AgentID: os.Getenv("A2A_AGENT_ID"),
		Address: os.Getenv("A2A_AGENT_ADDRESS"),
		TokenID: tokenID,
	}

	if cfg.AgentID == "" {
		fmt.Fprintln(os.Stderr, "A2A_AGENT_ID is required (format <chainId>:<tokenId>)")
		os.Exit(1)
	}
	if cfg.Address == "" {
		fmt.Fprintln(os.Stderr, "A2A_AGENT_ADDRESS is required")
		os.Exit(1)
	}

	s := mcpbridge.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
