package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mobile-next/mobilesync/commands"
	"github.com/mobile-next/mobilesync/input"
	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
)

const (
	// Parse error: Invalid JSON was received by the server
	ErrCodeParseError = -32700

	// Invalid Request: The JSON sent is not a valid Request object
	ErrCodeInvalidRequest = -32600

	// Method not found: The method does not exist / is not available
	ErrCodeMethodNotFound = -32601

	// Server error: Internal JSON-RPC error
	ErrCodeServerError = -32000

	// Sync rejected: the gesture was refused by the guard (busy, debounced, disabled)
	ErrCodeSyncRejected = -32001

	// Invalid params: Invalid method parameters
	ErrCodeInvalidParams = -32602

	// Internal error: Internal JSON-RPC error
	ErrCodeInternalError = -32603
)

const (
	errTitleParseError     = "Parse error"
	errTitleInvalidReq     = "Invalid Request"
	errTitleMethodNotFound = "Method not found"
	errTitleServerError    = "Server error"
	errTitleSyncRejected   = "Sync rejected"

	errMsgParseError     = "expecting jsonrpc payload"
	errMsgInvalidJSONRPC = "'jsonrpc' must be '2.0'"
	errMsgIDRequired     = "'id' field is required"
	errMsgMethodRequired = "'method' is required"
)

// Server timeouts
const (
	ReadTimeout  = 10 * time.Second
	WriteTimeout = 60 * time.Second
	IdleTimeout  = 120 * time.Second

	shutdownTimeout = 5 * time.Second
)

const shutdownMethod = "server.shutdown"

// events queued by input_push before the pump drops them
const inputQueueSize = 256

var okResponse = map[string]interface{}{"status": "ok"}

type JSONRPCRequest struct {
	// these fields are all omitempty, so we can report back to client if they are missing
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	code    int
	message string
	data    string
}

// validateJSONRPCRequest checks the envelope shared by HTTP and WebSocket requests
func validateJSONRPCRequest(req JSONRPCRequest) *rpcError {
	if req.JSONRPC != "2.0" {
		return &rpcError{code: ErrCodeInvalidRequest, message: errTitleInvalidReq, data: errMsgInvalidJSONRPC}
	}

	if req.ID == nil {
		return &rpcError{code: ErrCodeInvalidRequest, message: errTitleInvalidReq, data: errMsgIDRequired}
	}

	if req.Method == "" {
		return &rpcError{code: ErrCodeInvalidRequest, message: errTitleInvalidReq, data: errMsgMethodRequired}
	}

	return nil
}

var syncRejections = []error{types.ErrSyncBusy, types.ErrDebounced, types.ErrSyncDisabled}

// errorFor classifies a handler error into a JSON-RPC error. Command
// responses carry errors as text, so sentinels are matched on their message.
func errorFor(err error) *rpcError {
	for _, rejection := range syncRejections {
		if errors.Is(err, rejection) || strings.Contains(err.Error(), rejection.Error()) {
			return &rpcError{code: ErrCodeSyncRejected, message: errTitleSyncRejected, data: err.Error()}
		}
	}
	return &rpcError{code: ErrCodeServerError, message: errTitleServerError, data: err.Error()}
}

var (
	shutdownOnce sync.Once
	shutdownCh   = make(chan struct{})
)

// requestShutdown asks a running StartServer to stop gracefully
func requestShutdown() {
	shutdownOnce.Do(func() {
		close(shutdownCh)
	})
}

// corsMiddleware handles CORS preflight requests and adds CORS headers to responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewHandler builds the HTTP routes: banner, JSON-RPC over HTTP and
// WebSocket, and the feedback event stream
func NewHandler(enableCORS bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", sendBanner)
	mux.HandleFunc("/rpc", handleJSONRPC)
	mux.Handle("/ws", NewWebSocketHandler(enableCORS))
	mux.Handle("/events", NewEventsHandler(enableCORS))

	if enableCORS {
		return corsMiddleware(mux)
	}
	return mux
}

// StartServer serves until a server.shutdown request arrives or ctx is done.
// The sync engine's periodic checks and its input pump, fed by input_push,
// run for the lifetime of the server.
func StartServer(ctx context.Context, addr string, enableCORS bool) error {
	addr, err := utils.NormalizeListenAddress(addr)
	if err != nil {
		return err
	}

	if err := utils.CheckListenAddress(addr); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      NewHandler(enableCORS),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if e := commands.GetEngine(); e != nil {
		queue := input.NewPushSource(inputQueueSize)
		commands.SetInputQueue(queue)
		defer commands.SetInputQueue(nil)

		go func() {
			if err := e.Run(ctx, queue); err != nil {
				utils.Error("sync engine stopped: %v", err)
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCh:
			utils.Info("Shutdown requested")
		}

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.Warn("server shutdown: %v", err)
		}
	}()

	utils.Info("Starting server on http://%s...", server.Addr)
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONRPCError(w, nil, ErrCodeParseError, errTitleParseError, errMsgParseError)
		return
	}

	if rpcErr := validateJSONRPCRequest(req); rpcErr != nil {
		sendJSONRPCError(w, req.ID, rpcErr.code, rpcErr.message, rpcErr.data)
		return
	}

	utils.Info("Request ID: %v, Method: %s, Params: %s", req.ID, req.Method, string(req.Params))

	result, rpcErr := invoke(r.Context(), req)
	if rpcErr != nil {
		sendJSONRPCError(w, req.ID, rpcErr.code, rpcErr.message, rpcErr.data)
		return
	}

	sendJSONRPCResponse(w, req.ID, result)
}

// invoke runs a validated request through the method registry
func invoke(ctx context.Context, req JSONRPCRequest) (interface{}, *rpcError) {
	if req.Method == shutdownMethod {
		requestShutdown()
		return okResponse, nil
	}

	handler, exists := GetMethodRegistry()[req.Method]
	if !exists {
		return nil, &rpcError{code: ErrCodeMethodNotFound, message: errTitleMethodNotFound, data: fmt.Sprintf("Method '%s' not found", req.Method)}
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		utils.Verbose("Error executing method %s: %v", req.Method, err)
		return nil, errorFor(err)
	}

	return result, nil
}

func sendJSONRPCResponse(w http.ResponseWriter, id interface{}, result interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
		ID: id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(okResponse)
}
