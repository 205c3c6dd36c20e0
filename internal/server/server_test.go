package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/babylon-market/a2a/internal/config"
	"github.com/babylon-market/a2a/internal/jsonrpc"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "development",
		LogLevel:          "error",
		MaxConnections:    100,
		RateLimit:         10_000,
		RateWindow:        time.Minute,
		AuthTimeout:       time.Hour,
		X402Enabled:       false,
		CoalitionsEnabled: true,
		MinPayment:        "1000",
		PaymentTimeout:    5 * time.Minute,
		ChainID:           84532,
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := New(testConfig(), opts...)
	require.NoError(t, err)
	return s
}

func postA2A(t *testing.T, s *Server, agentID string, body string) (*httptest.ResponseRecorder, *jsonrpc.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/a2a", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if agentID != "" {
		req.Header.Set("x-agent-id", agentID)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	resp := &jsonrpc.Response{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp))
	return w, resp
}

func TestHandleA2APing(t *testing.T) {
	s := newTestServer(t)

	w, resp := postA2A(t, s, "84532:1", `{"jsonrpc":"2.0","method":"a2a.ping","id":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, resp.Error)
	assert.Equal(t, json.RawMessage(`1`), resp.ID)

	result := resp.Result.(map[string]any)
	assert.Equal(t, true, result["pong"])
}

func TestHandleA2AParseError(t *testing.T) {
	s := newTestServer(t)

	// Malformed input still gets HTTP 200 with a JSON-RPC envelope.
	w, resp := postA2A(t, s, "84532:1", `{"jsonrpc":`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeParseError, resp.Error.Code)
}

func TestHandleA2AMissingIdentity(t *testing.T) {
	s := newTestServer(t)

	_, resp := postA2A(t, s, "", `{"jsonrpc":"2.0","method":"a2a.ping","id":1}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, "agent id is required", resp.Error.Message)
}

func TestAgentIdentityTokenFallback(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/a2a",
		bytes.NewBufferString(`{"jsonrpc":"2.0","method":"a2a.authenticate","id":1,"params":{"address":"0xabababababababababababababababababababab","tokenId":17}}`))
	req.Header.Set("x-agent-token-id", "17")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	resp := &jsonrpc.Response{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp))
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, "84532:17", result["agentId"])
}

func TestAgentIdentityMalformedHeader(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"agent-1", "84532", "x:1", "84532:y"} {
		_, resp := postA2A(t, s, id, `{"jsonrpc":"2.0","method":"a2a.ping","id":1}`)
		require.NotNil(t, resp.Error, "id %q", id)
		assert.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
		assert.Equal(t, "agent id is required", resp.Error.Message)
	}
}

func TestSessionTokenAuthorizesRequest(t *testing.T) {
	s := newTestServer(t)

	_, resp := postA2A(t, s, "84532:9", `{"jsonrpc":"2.0","method":"a2a.authenticate","id":1,"params":{"address":"0x`+strings.Repeat("ef", 20)+`","tokenId":9}}`)
	require.Nil(t, resp.Error)
	token := resp.Result.(map[string]any)["sessionToken"].(string)
	require.NotEmpty(t, token)

	// The bearer token alone carries the identity on later requests.
	req := httptest.NewRequest(http.MethodPost, "/api/a2a",
		strings.NewReader(`{"jsonrpc":"2.0","method":"a2a.getAgentInfo","id":2,"params":{"agentId":"84532:9"}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	out := &jsonrpc.Response{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	require.Nil(t, out.Error)
	assert.Equal(t, "84532:9", out.Result.(map[string]any)["agentId"])

	// An untracked token resolves to no identity.
	req = httptest.NewRequest(http.MethodPost, "/api/a2a",
		strings.NewReader(`{"jsonrpc":"2.0","method":"a2a.ping","id":3}`))
	req.Header.Set("Authorization", "Bearer sess_bogus")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	require.NotNil(t, out.Error)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, out.Error.Code)
}

func TestEndToEndTradeOverHTTP(t *testing.T) {
	s := newTestServer(t)

	_, resp := postA2A(t, s, "84532:1", `{"jsonrpc":"2.0","method":"a2a.authenticate","id":1,"params":{"address":"0xcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcd","tokenId":1}}`)
	require.Nil(t, resp.Error)

	_, resp = postA2A(t, s, "84532:1", `{"jsonrpc":"2.0","method":"a2a.buyShares","id":2,"params":{"marketId":"m-btc-100k","outcome":"YES","amount":1000}}`)
	require.Nil(t, resp.Error)
	trade := resp.Result.(map[string]any)
	assert.Equal(t, "m-btc-100k", trade["marketId"])
}

func TestLivenessHandler(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadinessBeforeStartup(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"starting"}`, w.Body.String())
}

func TestReadinessWhenReady(t *testing.T) {
	s := newTestServer(t)
	s.ready.Store(true)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Zero(t, body.Connections)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	// Generated when absent.
	w, _ := postA2A(t, s, "84532:1", `{"jsonrpc":"2.0","method":"a2a.ping","id":1}`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// Echoed when supplied upstream.
	req := httptest.NewRequest(http.MethodPost, "/api/a2a", strings.NewReader(`{"jsonrpc":"2.0","method":"a2a.ping","id":1}`))
	req.Header.Set("x-agent-id", "84532:1")
	req.Header.Set("X-Request-ID", "lb-123")
	w2 := httptest.NewRecorder()
	s.Router().ServeHTTP(w2, req)
	assert.Equal(t, "lb-123", w2.Header().Get("X-Request-ID"))
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestMaskDSN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"postgres://user:secret@db:5432/a2a", "postgres://user@db:5432/a2a"},
		{"postgres://db:5432/a2a", "postgres://db:5432/a2a"},
		{"://bad", "***"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, maskDSN(tc.in))
	}
}
