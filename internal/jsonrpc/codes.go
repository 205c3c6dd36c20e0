package jsonrpc

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// A2A server error codes (-32000 class). MARKET_NOT_FOUND (-32003) and
// RATE_LIMIT_EXCEEDED (-32006) are fixed by the external contract; the
// remaining values are assigned here and must not be reused.
const (
	CodeNotAuthenticated  = -32000
	CodeAgentNotFound     = -32001
	CodeSessionExpired    = -32002
	CodeMarketNotFound    = -32003
	CodeCoalitionNotFound = -32004
	CodeCoalitionFull     = -32005
	CodeRateLimitExceeded = -32006
	CodePaymentNotFound   = -32007
	CodePaymentExpired    = -32008
	CodePaymentTooSmall   = -32009
	CodeFeatureDisabled   = -32010
	CodePostNotFound      = -32011
	CodePoolNotFound      = -32012
)

// codeNames maps error codes to their stable symbolic names.
var codeNames = map[int]string{
	CodeParseError:        "PARSE_ERROR",
	CodeInvalidRequest:    "INVALID_REQUEST",
	CodeMethodNotFound:    "METHOD_NOT_FOUND",
	CodeInvalidParams:     "INVALID_PARAMS",
	CodeInternalError:     "INTERNAL_ERROR",
	CodeNotAuthenticated:  "NOT_AUTHENTICATED",
	CodeAgentNotFound:     "AGENT_NOT_FOUND",
	CodeSessionExpired:    "SESSION_EXPIRED",
	CodeMarketNotFound:    "MARKET_NOT_FOUND",
	CodeCoalitionNotFound: "COALITION_NOT_FOUND",
	CodeCoalitionFull:     "COALITION_FULL",
	CodeRateLimitExceeded: "RATE_LIMIT_EXCEEDED",
	CodePaymentNotFound:   "PAYMENT_NOT_FOUND",
	CodePaymentExpired:    "PAYMENT_EXPIRED",
	CodePaymentTooSmall:   "PAYMENT_TOO_SMALL",
	CodeFeatureDisabled:   "FEATURE_DISABLED",
	CodePostNotFound:      "POST_NOT_FOUND",
	CodePoolNotFound:      "POOL_NOT_FOUND",
}

// CodeName returns the symbolic name for a code, or "UNKNOWN".
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}
