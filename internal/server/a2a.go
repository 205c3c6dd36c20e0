package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/babylon-market/a2a/internal/jsonrpc"
	"github.com/babylon-market/a2a/internal/logging"
	"github.com/babylon-market/a2a/internal/validation"
	"github.com/gin-gonic/gin"
)

// Identity headers sent by agent clients on the HTTP transport.
const (
	headerAgentID      = "x-agent-id"
	headerAgentAddress = "x-agent-address"
	headerAgentTokenID = "x-agent-token-id"
)

// handleA2A serves one JSON-RPC request per HTTP POST. Every outcome,
// including malformed input, is a well-formed JSON-RPC envelope with
// HTTP status 200; transport-level failures are the only exception.
func (s *Server) handleA2A(c *gin.Context) {
	agentID := s.agentIdentity(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, jsonrpc.Err(nil, jsonrpc.CodeParseError, "unable to read request body"))
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusOK, jsonrpc.Err(nil, jsonrpc.CodeParseError, "parse error"))
		return
	}

	ctx := logging.WithAgentID(c.Request.Context(), agentID)
	resp := s.rt.Route(ctx, agentID, &req)
	c.JSON(http.StatusOK, resp)
}

// agentIdentity resolves the caller's agent ID. The explicit ID header
// wins; an Authorization bearer token resolves through the session
// registry; last, "<chainId>:<tokenId>" is derived from the token-id
// header. Malformed values are treated as no identity.
func (s *Server) agentIdentity(c *gin.Context) string {
	if raw := strings.TrimSpace(c.GetHeader(headerAgentID)); raw != "" {
		chainID, tokenID, err := validation.ParseAgentID(raw)
		if err != nil {
			return ""
		}
		return validation.FormatAgentID(chainID, tokenID)
	}
	if tok := validation.BearerToken(c.GetHeader("Authorization")); tok != "" {
		if conn, err := s.sessions.ValidateToken(tok); err == nil {
			return conn.AgentID
		}
		return ""
	}
	if raw := strings.TrimSpace(c.GetHeader(headerAgentTokenID)); raw != "" {
		if tokenID, err := strconv.ParseInt(raw, 10, 64); err == nil && tokenID >= 0 {
			return validation.FormatAgentID(s.cfg.ChainID, tokenID)
		}
	}
	return ""
}
