package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mobile-next/mobilesync/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsChild(t *testing.T) {
	t.Setenv(DaemonEnvVar, "")
	assert.False(t, IsChild())

	t.Setenv(DaemonEnvVar, "1")
	assert.True(t, IsChild())
}

// rpcServer answers every request with reply and records the method called
func rpcServer(t *testing.T, status int, reply string) (string, <-chan string) {
	t.Helper()
	methods := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc", r.URL.Path)
		var req server.JSONRPCRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		methods <- req.Method

		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://"), methods
}

func TestKillServerSendsShutdown(t *testing.T) {
	addr, method := rpcServer(t, http.StatusOK, `{"jsonrpc":"2.0","result":{"status":"ok"},"id":1}`)

	require.NoError(t, KillServer(addr))
	assert.Equal(t, "server.shutdown", <-method)
}

func TestServerStatus(t *testing.T) {
	addr, method := rpcServer(t, http.StatusOK, `{"jsonrpc":"2.0","result":{"bound":true},"id":1}`)

	result, err := ServerStatus(addr)
	require.NoError(t, err)
	assert.Equal(t, "sync_status", <-method)
	assert.JSONEq(t, `{"bound":true}`, string(result))
}

func TestCallReportsRPCError(t *testing.T) {
	addr, _ := rpcServer(t, http.StatusOK, `{"jsonrpc":"2.0","error":{"code":-32000,"message":"Server error","data":"sync engine not initialized"},"id":1}`)

	_, err := ServerStatus(addr)
	assert.EqualError(t, err, "Server error (-32000): sync engine not initialized")
}

func TestCallErrorStatus(t *testing.T) {
	addr, _ := rpcServer(t, http.StatusInternalServerError, "")

	err := KillServer(addr)
	assert.ErrorContains(t, err, "server returned error")
}

func TestCallInvalidAddress(t *testing.T) {
	assert.Error(t, KillServer("localhost:notaport"))
}
