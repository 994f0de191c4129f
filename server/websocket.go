package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mobile-next/mobilesync/commands"
	"github.com/mobile-next/mobilesync/utils"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	writeWait    = 10 * time.Second

	eventsBuffer = 64
)

type wsConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newUpgrader(enableCORS bool) *websocket.Upgrader {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	if enableCORS {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	} else {
		upgrader.CheckOrigin = isSameOrigin
	}

	return &upgrader
}

func isSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return originURL.Host == r.Host
}

// NewWebSocketHandler serves JSON-RPC requests over a WebSocket, one text
// message per request
func NewWebSocketHandler(enableCORS bool) http.Handler {
	upgrader := newUpgrader(enableCORS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			utils.Warn("WebSocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		wsConn := &wsConnection{conn: conn}
		stop := wsConn.keepAlive()
		defer stop()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				// connection closed or error
				utils.Verbose("WebSocket connection closed: %v", err)
				return
			}

			if messageType != websocket.TextMessage {
				_ = wsConn.sendError(nil, ErrCodeInvalidRequest, errTitleInvalidReq, "only text messages accepted for requests")
				continue
			}

			wsConn.handleMessage(r, message)
		}
	})
}

func (wsc *wsConnection) handleMessage(r *http.Request, message []byte) {
	var req JSONRPCRequest
	if err := json.Unmarshal(message, &req); err != nil {
		_ = wsc.sendError(nil, ErrCodeParseError, errTitleParseError, errMsgParseError)
		return
	}

	if rpcErr := validateJSONRPCRequest(req); rpcErr != nil {
		_ = wsc.sendError(req.ID, rpcErr.code, rpcErr.message, rpcErr.data)
		return
	}

	utils.Info("WebSocket Request ID: %v, Method: %s, Params: %s", req.ID, req.Method, string(req.Params))

	result, rpcErr := invoke(r.Context(), req)
	if rpcErr != nil {
		_ = wsc.sendError(req.ID, rpcErr.code, rpcErr.message, rpcErr.data)
		return
	}

	_ = wsc.sendResponse(req.ID, result)
}

// keepAlive pings the peer and extends the read deadline on every pong
func (wsc *wsConnection) keepAlive() func() {
	_ = wsc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wsc.conn.SetPongHandler(func(string) error {
		return wsc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				wsc.writeMu.Lock()
				err := wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				wsc.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (wsc *wsConnection) sendResponse(id interface{}, result interface{}) error {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return wsc.sendJSON(response)
}

func (wsc *wsConnection) sendError(id interface{}, code int, message string, data interface{}) error {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
		ID: id,
	}
	return wsc.sendJSON(response)
}

func (wsc *wsConnection) sendJSON(v interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(v)
}

// NewEventsHandler streams sync feedback events to a WebSocket client as
// JSON text messages. Anything the client sends is ignored.
func NewEventsHandler(enableCORS bool) http.Handler {
	upgrader := newUpgrader(enableCORS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e := commands.GetEngine()
		if e == nil {
			http.Error(w, "sync engine not initialized", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			utils.Warn("WebSocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		events, unsubscribe := e.Hub().Subscribe(eventsBuffer)
		defer unsubscribe()

		wsConn := &wsConnection{conn: conn}
		stop := wsConn.keepAlive()
		defer stop()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				utils.Verbose("events subscriber disconnected")
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := wsConn.sendJSON(ev); err != nil {
					utils.Verbose("failed to send event: %v", err)
					return
				}
			}
		}
	})
}
