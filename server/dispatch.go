package server

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandlerFunc is the signature for JSON-RPC method handlers
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// GetMethodRegistry returns a map of method names to handler functions
// This is used by both the HTTP and the WebSocket endpoint
func GetMethodRegistry() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"devices":            handleDevicesList,
		"device_info":        handleDeviceInfo,
		"io_tap":             handleIoTap,
		"io_longpress":       handleIoLongPress,
		"io_text":            handleIoText,
		"io_button":          handleIoButton,
		"io_swipe":           handleIoSwipe,
		"io_orientation_get": handleIoOrientationGet,
		"sync_enable":        handleSyncEnable,
		"sync_disable":       handleSyncDisable,
		"sync_rebuild":       handleSyncRebuild,
		"sync_stats":         handleSyncStats,
		"sync_status":        handleSyncStatus,
		"sync_gesture":       handleSyncGesture,
		"input_event":        handleInputEvent,
		"input_push":         handleInputPush,
	}
}

// Execute dispatches a method call using the registry
// This is the main entry point for embedded clients
func Execute(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	registry := GetMethodRegistry()

	handler, exists := registry[method]
	if !exists {
		return nil, fmt.Errorf("method not found: %s", method)
	}

	return handler(ctx, params)
}
