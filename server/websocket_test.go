package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mobile-next/mobilesync/commands"
	"github.com/mobile-next/mobilesync/feedback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, handler http.Handler) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, request string) JSONRPCResponse {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(request)))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp JSONRPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWebSocketRequests(t *testing.T) {
	setupTestEnv(t)
	_, wsURL := setupTestServer(t, NewWebSocketHandler(false))
	conn := dial(t, wsURL)

	tests := []struct {
		name       string
		request    string
		expectCode int
		expectData string
		expectID   interface{}
	}{
		{name: "Valid request", request: `{"jsonrpc":"2.0","method":"devices","id":1}`, expectID: float64(1)},
		{name: "Missing jsonrpc version", request: `{"method":"devices","id":2}`, expectCode: ErrCodeInvalidRequest, expectData: errMsgInvalidJSONRPC, expectID: float64(2)},
		{name: "Missing id", request: `{"jsonrpc":"2.0","method":"devices"}`, expectCode: ErrCodeInvalidRequest, expectData: errMsgIDRequired},
		{name: "Missing method", request: `{"jsonrpc":"2.0","id":"abc"}`, expectCode: ErrCodeInvalidRequest, expectData: errMsgMethodRequired, expectID: "abc"},
		{name: "Invalid JSON", request: `{not json`, expectCode: ErrCodeParseError, expectData: errMsgParseError},
		{name: "Unknown method", request: `{"jsonrpc":"2.0","method":"screenshot","id":3}`, expectCode: ErrCodeMethodNotFound, expectData: "Method 'screenshot' not found", expectID: float64(3)},
	}

	// requests share one connection, in order
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := roundTrip(t, conn, tt.request)
			assert.Equal(t, "2.0", resp.JSONRPC)
			assert.Equal(t, tt.expectID, resp.ID)

			if tt.expectCode == 0 {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Result)
				return
			}

			errMap, ok := resp.Error.(map[string]interface{})
			require.True(t, ok, "Expected error to be map, got %T", resp.Error)
			assert.Equal(t, float64(tt.expectCode), errMap["code"])
			assert.Equal(t, tt.expectData, errMap["data"])
		})
	}
}

func TestWebSocketRejectsBinaryMessages(t *testing.T) {
	setupTestEnv(t)
	_, wsURL := setupTestServer(t, NewWebSocketHandler(false))
	conn := dial(t, wsURL)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"jsonrpc":"2.0","method":"devices","id":1}`)))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp JSONRPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Nil(t, resp.ID)
	assert.Equal(t, float64(ErrCodeInvalidRequest), resp.Error.(map[string]interface{})["code"])
}

func TestWebSocketSyncRejected(t *testing.T) {
	setupTestEnv(t)
	_, wsURL := setupTestServer(t, NewWebSocketHandler(false))
	conn := dial(t, wsURL)

	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"sync_gesture","params":{"kind":"key","key":"BACK"},"id":1}`)
	errMap := resp.Error.(map[string]interface{})
	assert.Equal(t, float64(ErrCodeSyncRejected), errMap["code"])
	assert.Equal(t, errTitleSyncRejected, errMap["message"])
}

func TestValidateJSONRPCRequest(t *testing.T) {
	tests := []struct {
		name string
		req  JSONRPCRequest
		want string
	}{
		{name: "valid", req: JSONRPCRequest{JSONRPC: "2.0", Method: "devices", ID: 1}},
		{name: "wrong version", req: JSONRPCRequest{JSONRPC: "1.0", Method: "devices", ID: 1}, want: errMsgInvalidJSONRPC},
		{name: "no id", req: JSONRPCRequest{JSONRPC: "2.0", Method: "devices"}, want: errMsgIDRequired},
		{name: "no method", req: JSONRPCRequest{JSONRPC: "2.0", ID: "x"}, want: errMsgMethodRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJSONRPCRequest(tt.req)
			if tt.want == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, ErrCodeInvalidRequest, err.code)
			assert.Equal(t, errTitleInvalidReq, err.message)
			assert.Equal(t, tt.want, err.data)
		})
	}
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{name: "no origin header", host: "localhost:12000", want: true},
		{name: "same host", origin: "http://localhost:12000", host: "localhost:12000", want: true},
		{name: "other host", origin: "http://evil.example", host: "localhost:12000", want: false},
		{name: "other port", origin: "http://localhost:3000", host: "localhost:12000", want: false},
		{name: "unparseable origin", origin: "://bad", host: "localhost:12000", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, isSameOrigin(r))
		})
	}
}

func TestNewUpgraderCORS(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Host = "localhost:12000"
	r.Header.Set("Origin", "http://elsewhere:8080")

	assert.True(t, newUpgrader(true).CheckOrigin(r))
	assert.False(t, newUpgrader(false).CheckOrigin(r))
}

func TestWebSocketCrossOriginRefused(t *testing.T) {
	setupTestEnv(t)
	_, wsURL := setupTestServer(t, NewWebSocketHandler(false))

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEventsWithoutEngine(t *testing.T) {
	commands.SetEngine(nil)
	server, _ := setupTestServer(t, NewEventsHandler(false))

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEventsStream(t *testing.T) {
	f := setupTestEnv(t)
	_, wsURL := setupTestServer(t, NewEventsHandler(false))
	conn := dial(t, wsURL)

	hub := commands.GetEngine().Hub()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	_, err := Execute(ctx, "sync_enable", json.RawMessage(`{"primary":"primary","secondaries":["secondary"]}`))
	require.NoError(t, err)
	_, err = Execute(ctx, "sync_gesture", json.RawMessage(`{"kind":"tap","x":100,"y":200}`))
	require.NoError(t, err)
	require.Len(t, f.inputCalls("secondary"), 1)

	var kinds []feedback.Kind
	for len(kinds) < 4 {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev feedback.Event
		require.NoError(t, conn.ReadJSON(&ev))
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, []feedback.Kind{feedback.KindInfo, feedback.KindSync, feedback.KindResult, feedback.KindStats}, kinds)
}
