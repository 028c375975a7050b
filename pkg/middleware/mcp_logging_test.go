package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveMCP(t *testing.T, reqBody, respBody string) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, reqBody, string(body), "body must be restored for the MCP server")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respBody))
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
	MCPRequestLogger(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)
	return logs
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("logs successful tool call", func(t *testing.T) {
		logs := serveMCP(t,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask_site_data","arguments":{"question":"how many posts?"}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`)

		require.Equal(t, 2, logs.Len(), "Should log request and response")

		requestLog := logs.All()[0]
		assert.Equal(t, "MCP request", requestLog.Message)
		assert.Equal(t, "tools/call", requestLog.ContextMap()["method"])
		assert.Equal(t, "ask_site_data", requestLog.ContextMap()["tool"])
		assert.NotNil(t, requestLog.ContextMap()["arguments"])

		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response success", responseLog.Message)
		assert.Equal(t, false, responseLog.ContextMap()["tool_error"])
	})

	t.Run("logs tool error result", func(t *testing.T) {
		logs := serveMCP(t,
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"ask_site_data","arguments":{}}}`,
			`{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"{}"}],"isError":true}}`)

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, true, logs.All()[1].ContextMap()["tool_error"])
	})

	t.Run("logs JSON-RPC error", func(t *testing.T) {
		logs := serveMCP(t,
			`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"missing_tool"}}`,
			`{"jsonrpc":"2.0","id":3,"error":{"code":-32602,"message":"tool not found"}}`)

		require.Equal(t, 2, logs.Len())
		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response error", responseLog.Message)
		assert.Equal(t, int64(-32602), responseLog.ContextMap()["error_code"])
		assert.Equal(t, "tool not found", responseLog.ContextMap()["error_message"])
	})

	t.Run("invalid request JSON still reaches the server", func(t *testing.T) {
		logs := serveMCP(t, `not json`, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`)

		assert.Equal(t, 1, logs.FilterMessage("Failed to parse MCP request JSON").Len())
		assert.Equal(t, 1, logs.FilterMessage("MCP response error").Len())
	})

	t.Run("nil logger passes through", func(t *testing.T) {
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
		MCPRequestLogger(nil)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mcp", nil))
		assert.True(t, called)
	})
}

func TestSanitizeArguments(t *testing.T) {
	assert.Nil(t, sanitizeArguments(nil))

	got := sanitizeArguments(map[string]any{
		"question":           strings.Repeat("q", 250),
		"confirmation_token": "signed.token",
		"api_key":            "sk-123",
		"confirmed":          true,
	})

	assert.Equal(t, "[REDACTED]", got["confirmation_token"])
	assert.Equal(t, "[REDACTED]", got["api_key"])
	assert.Equal(t, true, got["confirmed"])
	assert.Equal(t, strings.Repeat("q", 200)+"...", got["question"])
}
