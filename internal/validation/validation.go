// Package validation provides input validation for the A2A API.
package validation

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

var (
	// ethAddressRegex validates Ethereum addresses
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// hexRegex validates hex strings (for tx hashes, signatures)
	hexRegex = regexp.MustCompile(`^(0x)?[a-fA-F0-9]+$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidEthAddress checks if a string is a valid Ethereum address
func IsValidEthAddress(addr string) bool {
	return ethAddressRegex.MatchString(addr)
}

// IsValidHex checks if a string is valid hex
func IsValidHex(s string) bool {
	return hexRegex.MatchString(s)
}

// SanitizeString trims whitespace, strips null bytes, and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// SanitizeAddress normalizes an Ethereum address
func SanitizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.ToLower(addr)
	if !strings.HasPrefix(addr, "0x") && len(addr) == 40 {
		addr = "0x" + addr
	}
	return addr
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Empty when the header is absent or uses another scheme.
func BearerToken(header string) string {
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}

// ParseAgentID splits a "<chainId>:<tokenId>" agent identifier.
func ParseAgentID(agentID string) (chainID, tokenID int64, err error) {
	left, right, ok := strings.Cut(agentID, ":")
	if !ok {
		return 0, 0, fmt.Errorf("agent id must be <chainId>:<tokenId>, got %q", agentID)
	}
	chainID, err = strconv.ParseInt(left, 10, 64)
	if err != nil || chainID < 0 {
		return 0, 0, fmt.Errorf("invalid chain id in agent id %q", agentID)
	}
	tokenID, err = strconv.ParseInt(right, 10, 64)
	if err != nil || tokenID < 0 {
		return 0, 0, fmt.Errorf("invalid token id in agent id %q", agentID)
	}
	return chainID, tokenID, nil
}

// FormatAgentID builds the canonical "<chainId>:<tokenId>" identifier.
func FormatAgentID(chainID, tokenID int64) string {
	return fmt.Sprintf("%d:%d", chainID, tokenID)
}
