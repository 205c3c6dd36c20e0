package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_EchoesIDVerbatim(t *testing.T) {
	// String and numeric ids round-trip byte-for-byte.
	for _, id := range []string{`"req-1"`, `42`, `"0"`} {
		resp := Result(json.RawMessage(id), map[string]any{"pong": true})
		data, err := json.Marshal(resp)
		require.NoError(t, err)

		var out struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
		}
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, "2.0", out.JSONRPC)
		assert.Equal(t, id, string(out.ID))
	}
}

func TestErr_CarriesExactlyError(t *testing.T) {
	resp := Err(json.RawMessage(`7`), CodeMethodNotFound, "Method not found: a2a.nope")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "error")
	assert.NotContains(t, out, "result")
	assert.Equal(t, "7", string(out["id"]))
}

func TestResult_OmitsErrorMember(t *testing.T) {
	resp := Result(json.RawMessage(`"a"`), "ok")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "result")
	assert.NotContains(t, out, "error")
}

func TestRequest_HasParams(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"a2a.ping","id":1}`), &req))
	assert.False(t, req.HasParams())

	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"a2a.ping","params":null,"id":1}`), &req))
	assert.False(t, req.HasParams())

	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"a2a.ping","params":{},"id":1}`), &req))
	assert.True(t, req.HasParams())
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "MARKET_NOT_FOUND", CodeName(CodeMarketNotFound))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", CodeName(CodeRateLimitExceeded))
	assert.Equal(t, "PARSE_ERROR", CodeName(CodeParseError))
	assert.Equal(t, "UNKNOWN", CodeName(-99999))
}

func TestNewNotification(t *testing.T) {
	n := NewNotification("market.update", map[string]any{"marketId": "m-1"})
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotContains(t, out, "id")
	assert.Equal(t, `"market.update"`, string(out["method"]))
}
