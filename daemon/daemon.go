package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mobile-next/mobilesync/server"
	"github.com/mobile-next/mobilesync/utils"
	"github.com/sevlyar/go-daemon"
)

const (
	// DaemonEnvVar is the environment variable that marks a daemon child process
	DaemonEnvVar = "MOBILESYNC_DAEMON_CHILD"

	// requestID is the JSON-RPC request ID used for control calls
	requestID = 1

	clientTimeout = 10 * time.Second
)

// Daemonize detaches the process and returns the child process handle
// If the returned process is nil, this is the child process
// If the returned process is non-nil, this is the parent process
func Daemonize() (*os.Process, error) {
	// the server logs through logrus on its own, no log file
	ctx := &daemon.Context{
		WorkDir: "/",
		Umask:   027,
		Args:    os.Args,
		Env:     append(os.Environ(), fmt.Sprintf("%s=1", DaemonEnvVar)),
	}

	child, err := ctx.Reborn()
	if err != nil {
		return nil, fmt.Errorf("failed to daemonize: %w", err)
	}

	return child, nil
}

// IsChild returns true if this is the daemon child process
func IsChild() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// KillServer asks a running server to shut down gracefully
func KillServer(addr string) error {
	_, err := call(addr, "server.shutdown")
	return err
}

// ServerStatus returns the sync status reported by a running server
func ServerStatus(addr string) (json.RawMessage, error) {
	return call(addr, "sync_status")
}

// call sends one parameterless JSON-RPC request to the server at addr
func call(addr, method string) (json.RawMessage, error) {
	addr, err := utils.NormalizeListenAddress(addr)
	if err != nil {
		return nil, err
	}
	url := "http://" + addr + "/rpc"

	jsonData, err := json.Marshal(server.JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		ID:      requestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	client := &http.Client{Timeout: clientTimeout}
	resp, err := client.Post(url, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return nil, fmt.Errorf("server is not running on %s", addr)
		}
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned error: %s", resp.Status)
	}

	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    string `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}

	if reply.Error != nil {
		return nil, fmt.Errorf("%s (%d): %s", reply.Error.Message, reply.Error.Code, reply.Error.Data)
	}

	return reply.Result, nil
}
