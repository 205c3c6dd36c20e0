// Package jsonrpc implements the JSON-RPC 2.0 envelope used by the A2A protocol.
//
// Requests carry a flat namespaced method string ("a2a.buyShares"), an
// optional params object, and a string or numeric id that is echoed back
// verbatim on the response. Every response carries exactly one of result
// or error.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the only protocol version the server speaks.
const Version = "2.0"

// Request is a parsed JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// HasParams reports whether the request carries a non-null params object.
func (r *Request) HasParams() bool {
	if len(r.Params) == 0 {
		return false
	}
	return string(r.Params) != "null"
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Notification is a server-initiated frame with no id (market fan-out).
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewNotification builds a server-push frame.
func NewNotification(method string, params any) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Result builds a success response echoing the request id.
func Result(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, Result: result, ID: id}
}

// Err builds an error response echoing the request id.
func Err(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: Version, Error: &Error{Code: code, Message: message}, ID: id}
}

// ErrFrom builds an error response from an existing *Error, preserving data.
func ErrFrom(id json.RawMessage, e *Error) *Response {
	return &Response{JSONRPC: Version, Error: e, ID: id}
}
